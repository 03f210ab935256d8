package rest

import (
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/fingerprint"
	"github.com/certanchor/certanchor/internal/config"
	"github.com/certanchor/certanchor/internal/domain"
	"github.com/certanchor/certanchor/internal/interface/rest/middleware"
	"github.com/certanchor/certanchor/internal/interface/rest/presenter"
	"github.com/certanchor/certanchor/internal/usecase"
)

// AnchorSubscriber exposes the anchor event stream to the watch endpoint.
type AnchorSubscriber interface {
	Subscribe(ctx context.Context) (<-chan certanchor.AnchorEvent, func() error)
}

type Handler struct {
	record     *usecase.RecordUsecase
	verify     *usecase.VerifyUsecase
	lifecycle  *usecase.LifecycleUsecase
	auth       *middleware.AuthMiddleware
	subscriber AnchorSubscriber
	nodeInfo   config.NodeInfo
	upgrader   websocket.Upgrader
}

func NewHandler(
	nodeInfo config.NodeInfo,
	record *usecase.RecordUsecase,
	verify *usecase.VerifyUsecase,
	lifecycle *usecase.LifecycleUsecase,
	auth *middleware.AuthMiddleware,
	subscriber AnchorSubscriber,
) *Handler {
	return &Handler{
		record:     record,
		verify:     verify,
		lifecycle:  lifecycle,
		auth:       auth,
		subscriber: subscriber,
		nodeInfo:   nodeInfo,
		upgrader:   websocket.Upgrader{},
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Use(h.auth.IdentifyActor)

	e.GET("/.well-known/certanchor", h.handleWellKnown)
	e.GET("/api/v1/verify", h.handleVerify)
	e.GET("/api/v1/stats", h.handleStats)
	e.GET("/api/v1/anchors/watch", h.handleAnchorWatch)

	e.POST("/api/v1/records", h.handleIntake, h.auth.RequireAdmin)
	e.GET("/api/v1/records", h.handleList, h.auth.RequireAdmin)
	e.GET("/api/v1/records/:id/qr", h.handleQR, h.auth.RequireAdmin)
	e.POST("/api/v1/records/:id/status", h.handleStatus, h.auth.RequireAdmin)
	e.POST("/api/v1/issuers", h.handleAuthorizeIssuer, h.auth.RequireAdmin)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := certanchor.WellKnownCertanchor{
		Version: "1.0",
		Domain:  h.nodeInfo.FQDN,
		Issuer:  h.nodeInfo.IssuerName,
		Endpoints: map[string]string{
			"net.certanchor.verify":        "/api/v1/verify",
			"net.certanchor.records":       "/api/v1/records",
			"net.certanchor.anchors.watch": "/api/v1/anchors/watch",
			"net.certanchor.stats":         "/api/v1/stats",
		},
	}
	return presenter.OK(c, wellknown)
}

type intakeRequest struct {
	Content       string `json:"content"`
	ContentBase64 string `json:"contentBase64"`
	SubjectName   string `json:"subjectName"`
	Program       string `json:"program"`
	IssueDate     string `json:"issueDate"`
	Grade         string `json:"grade"`
	IssuerName    string `json:"issuerName"`
	IssuerContact string `json:"issuerContact"`
}

type intakeResponse struct {
	ID                string `json:"id"`
	FingerprintPrefix string `json:"fingerprintPrefix"`
	Status            string `json:"status"`
}

func (h *Handler) handleIntake(c echo.Context) error {
	ctx := c.Request().Context()

	var req intakeRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	content := []byte(req.Content)
	if req.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			return presenter.BadRequestMessage(c, "contentBase64 is not valid base64")
		}
		content = decoded
	}

	record, err := h.record.Intake(ctx, usecase.IntakeInput{
		Content: content,
		Metadata: domain.Metadata{
			SubjectName: req.SubjectName,
			Program:     req.Program,
			IssueDate:   req.IssueDate,
			Grade:       req.Grade,
		},
		IssuerName:    req.IssuerName,
		IssuerContact: req.IssuerContact,
		Actor:         middleware.ActorFromContext(ctx),
	})
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.Accepted(c, intakeResponse{
		ID:                record.ID,
		FingerprintPrefix: certanchor.FingerprintPrefix(record.Fingerprint),
		Status:            string(record.Status),
	})
}

func (h *Handler) handleVerify(c echo.Context) error {
	ctx := c.Request().Context()

	query := usecase.VerifyQuery{
		ID:          c.QueryParam("id"),
		Fingerprint: c.QueryParam("fingerprint"),
	}
	if query.ID == "" && query.Fingerprint == "" {
		return presenter.BadRequestMessage(c, "id or fingerprint is required")
	}
	if query.Fingerprint != "" && !fingerprint.IsFingerprint(query.Fingerprint) {
		// Shape check only; an unknown-but-well-formed fingerprint still
		// yields a NotFound verdict rather than an error.
		return presenter.OK(c, certanchor.Verdict{Status: certanchor.VerdictNotFound})
	}

	return presenter.OK(c, h.verify.Verify(ctx, query))
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()

	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	record, err := h.lifecycle.Transition(
		ctx,
		c.Param("id"),
		domain.Status(req.Status),
		req.Reason,
		middleware.ActorFromContext(ctx),
	)
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, record)
}

func (h *Handler) handleList(c echo.Context) error {
	ctx := c.Request().Context()

	filter := domain.ListFilter{
		Recent: c.QueryParam("recent") == "true",
	}

	if statusParam := c.QueryParam("status"); statusParam != "" {
		status := domain.Status(statusParam)
		if !status.IsKnown() {
			return presenter.BadRequestMessage(c, "unknown status filter")
		}
		filter.Status = &status
	}

	since, err := parseTimeParam(c.QueryParam("since"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid since parameter")
	}
	filter.Since = since

	until, err := parseTimeParam(c.QueryParam("until"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid until parameter")
	}
	filter.Until = until

	if limitParam := c.QueryParam("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 0 {
			return presenter.BadRequestMessage(c, "invalid limit parameter")
		}
		filter.Limit = limit
	}

	records, err := h.record.List(ctx, filter)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, records)
}

func (h *Handler) handleQR(c echo.Context) error {
	ctx := c.Request().Context()

	record, err := h.record.Get(ctx, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	payload, err := certanchor.ComposeQRPayload(
		record.ID,
		record.Fingerprint,
		fmt.Sprintf("https://%s/api/v1/verify", h.nodeInfo.FQDN),
	)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	code, err := qr.Encode(string(payload), qr.M, qr.Auto)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	code, err = barcode.Scale(code, 256, 256)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "image/png")
	c.Response().WriteHeader(http.StatusOK)
	return png.Encode(c.Response(), code)
}

func (h *Handler) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.record.Stats(ctx)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, stats)
}

type authorizeIssuerRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

func (h *Handler) handleAuthorizeIssuer(c echo.Context) error {
	ctx := c.Request().Context()

	var req authorizeIssuerRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	already, err := h.record.AuthorizeIssuer(ctx, req.Address, req.Name)
	if err != nil {
		return presenter.FromError(c, err)
	}

	if already {
		c.Logger().Infof("issuer %s (%s) was already authorized", req.Name, req.Address)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "alreadyAuthorized": already})
}

func (h *Handler) handleAnchorWatch(c echo.Context) error {
	if h.subscriber == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "anchor events are not configured"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events, closeSub := h.subscriber.Subscribe(ctx)
	defer closeSub()

	// Reads only surface client disconnects; no inbound messages expected.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(event); err != nil {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		t := time.Unix(unix, 0).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
