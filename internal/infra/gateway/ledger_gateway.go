package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/client"
	"github.com/certanchor/certanchor/internal/domain"
	"github.com/certanchor/certanchor/internal/usecase"
)

const lookupCacheTTL = 30 // seconds, shared tier

// LedgerGateway talks to an external ledger node over HTTP. Anchor and
// authorization submissions are signed with the node's issuer key so the
// ledger can attribute them; lookups are read-only. A memcached tier, when
// configured, shares lookup results between nodes.
type LedgerGateway struct {
	client     *client.Client
	mc         *memcache.Client
	privateKey string
}

func NewLedgerGateway(cl *client.Client, mc *memcache.Client, privateKey string) *LedgerGateway {
	return &LedgerGateway{
		client:     cl,
		mc:         mc,
		privateKey: privateKey,
	}
}

type anchorRequest struct {
	ID            string `json:"id"`
	Fingerprint   string `json:"fingerprint"`
	IssuerName    string `json:"issuerName"`
	IssuerContact string `json:"issuerContact,omitempty"`
	Signature     string `json:"signature"`
}

type anchorResponse struct {
	Ref   string `json:"ref"`
	Error string `json:"error,omitempty"`
}

type authorizeRequest struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

type authorizeResponse struct {
	AlreadyAuthorized bool   `json:"alreadyAuthorized"`
	Error             string `json:"error,omitempty"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func (g *LedgerGateway) AuthorizeIssuer(ctx context.Context, address, name string) (bool, error) {

	payload := authorizeRequest{Address: address, Name: name}
	signature, err := g.sign(payload.Address + "|" + payload.Name)
	if err != nil {
		return false, errors.Wrap(err, "failed to sign authorization")
	}
	payload.Signature = signature

	var resp authorizeResponse
	status, err := g.client.JSON(ctx, http.MethodPost, "/issuers", payload, &resp)
	if err != nil {
		return false, domain.LedgerUnavailableError{Cause: err}
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return resp.AlreadyAuthorized, nil
	case status == http.StatusConflict:
		return true, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return false, domain.UnauthorizedError{Actor: address}
	case status >= http.StatusInternalServerError:
		return false, domain.LedgerUnavailableError{Cause: errors.Errorf("ledger returned status %d", status)}
	default:
		return false, errors.Errorf("unexpected ledger status %d: %s", status, resp.Error)
	}
}

func (g *LedgerGateway) AnchorRecord(ctx context.Context, id, fingerprint, issuerName, issuerContact string) (string, error) {

	payload := anchorRequest{
		ID:            id,
		Fingerprint:   fingerprint,
		IssuerName:    issuerName,
		IssuerContact: issuerContact,
	}
	signature, err := g.sign(id + "|" + fingerprint + "|" + issuerName)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign anchor")
	}
	payload.Signature = signature

	var resp anchorResponse
	status, err := g.client.JSON(ctx, http.MethodPost, "/anchors", payload, &resp)
	if err != nil {
		return "", domain.LedgerUnavailableError{Cause: err}
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		g.invalidateLookup(fingerprint)
		return resp.Ref, nil
	case status == http.StatusConflict:
		return "", domain.DuplicateFingerprintError{Fingerprint: fingerprint}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "", domain.IssuerNotAuthorizedError{Issuer: issuerName}
	case status >= http.StatusInternalServerError:
		return "", domain.LedgerUnavailableError{Cause: errors.Errorf("ledger returned status %d", status)}
	default:
		return "", errors.Errorf("unexpected ledger status %d: %s", status, resp.Error)
	}
}

func (g *LedgerGateway) LookupRecord(ctx context.Context, fingerprint string) (certanchor.LedgerAnchor, error) {

	if anchor, found := g.lookupShared(fingerprint); found {
		return anchor, nil
	}

	var anchor certanchor.LedgerAnchor
	status, err := g.client.GetCached(ctx, lookupPath(fingerprint), &anchor)
	if err != nil {
		return certanchor.LedgerAnchor{}, domain.LedgerUnavailableError{Cause: err}
	}

	switch {
	case status == http.StatusOK:
		g.storeShared(fingerprint, anchor)
		return anchor, nil
	case status == http.StatusNotFound:
		return certanchor.LedgerAnchor{}, domain.NotFoundError{Resource: "anchor"}
	case status >= http.StatusInternalServerError:
		return certanchor.LedgerAnchor{}, domain.LedgerUnavailableError{Cause: errors.Errorf("ledger returned status %d", status)}
	default:
		return certanchor.LedgerAnchor{}, errors.Errorf("unexpected ledger status %d", status)
	}
}

func (g *LedgerGateway) RecordCount(ctx context.Context) (int64, error) {

	var resp countResponse
	status, err := g.client.JSON(ctx, http.MethodGet, "/anchors/count", nil, &resp)
	if err != nil {
		return 0, domain.LedgerUnavailableError{Cause: err}
	}
	if status != http.StatusOK {
		return 0, domain.LedgerUnavailableError{Cause: errors.Errorf("ledger returned status %d", status)}
	}
	return resp.Count, nil
}

func (g *LedgerGateway) sign(material string) (string, error) {
	signature, err := certanchor.SignBytes([]byte(material), g.privateKey)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(signature), nil
}

func lookupPath(fingerprint string) string {
	return "/anchors/" + url.PathEscape(fingerprint)
}

func (g *LedgerGateway) lookupShared(fingerprint string) (certanchor.LedgerAnchor, bool) {
	if g.mc == nil {
		return certanchor.LedgerAnchor{}, false
	}
	item, err := g.mc.Get("anchor:" + fingerprint)
	if err != nil {
		return certanchor.LedgerAnchor{}, false
	}
	var anchor certanchor.LedgerAnchor
	if err := json.Unmarshal(item.Value, &anchor); err != nil {
		return certanchor.LedgerAnchor{}, false
	}
	return anchor, true
}

func (g *LedgerGateway) storeShared(fingerprint string, anchor certanchor.LedgerAnchor) {
	if g.mc == nil {
		return
	}
	raw, err := json.Marshal(anchor)
	if err != nil {
		return
	}
	// Best effort; a cold cache only costs a ledger round trip.
	_ = g.mc.Set(&memcache.Item{
		Key:        "anchor:" + fingerprint,
		Value:      raw,
		Expiration: lookupCacheTTL,
	})
}

func (g *LedgerGateway) invalidateLookup(fingerprint string) {
	g.client.Invalidate(lookupPath(fingerprint))
	if g.mc != nil {
		_ = g.mc.Delete("anchor:" + fingerprint)
	}
}

var _ usecase.LedgerGateway = (*LedgerGateway)(nil)
