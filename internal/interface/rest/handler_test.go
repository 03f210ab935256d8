package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/internal/config"
	"github.com/certanchor/certanchor/internal/domain"
	"github.com/certanchor/certanchor/internal/infra/gateway"
	"github.com/certanchor/certanchor/internal/infra/repository"
	"github.com/certanchor/certanchor/internal/interface/rest/middleware"
	"github.com/certanchor/certanchor/internal/usecase"
)

const (
	testAdminToken = "test-admin-token"
	testIssuer     = "Acme University"
)

type testServer struct {
	e      *echo.Echo
	record *usecase.RecordUsecase
	ledger *gateway.MemoryLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := repository.NewMemoryRecordRepository()
	ledger := gateway.NewMemoryLedger()
	if _, err := ledger.AuthorizeIssuer(context.Background(), "0xissuer", testIssuer); err != nil {
		t.Fatalf("authorize issuer: %v", err)
	}

	record := usecase.NewRecordUsecase(repo, ledger, nil)
	record.AnchorInitialInterval = time.Millisecond
	record.AnchorMaxRetries = 2

	verify := usecase.NewVerifyUsecase(repo, ledger)
	lifecycle := usecase.NewLifecycleUsecase(repo, nil)

	auth := middleware.NewAuthMiddleware([]config.Admin{
		{Name: "ops", Token: testAdminToken},
	})

	nodeInfo := config.NodeInfo{
		FQDN:       "anchor.example.edu",
		IssuerName: testIssuer,
	}

	e := echo.New()
	handler := NewHandler(nodeInfo, record, verify, lifecycle, auth, nil)
	handler.RegisterRoutes(e)

	return &testServer{e: e, record: record, ledger: ledger}
}

func (s *testServer) do(method, target, body string, admin bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) intake(t *testing.T, content string) intakeResponse {
	t.Helper()

	body := `{"content":` + jsonString(content) + `,"issuerName":"` + testIssuer + `","issuerContact":"registrar@example.edu","subjectName":"Jordan Doe","program":"BSc Physics","issueDate":"2026-06-30","grade":"A"}`
	rec := s.do(http.MethodPost, "/api/v1/records", body, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("intake status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp intakeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode intake response: %v", err)
	}
	return resp
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// waitSettled polls until the background anchor attempt moves the record out
// of pending.
func (s *testServer) waitSettled(t *testing.T, id string) domain.Record {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, err := s.record.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get record: %v", err)
		}
		if record.Status != domain.StatusPending {
			return record
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("record %s never left pending", id)
	return domain.Record{}
}

func TestWellKnown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/.well-known/certanchor", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var wellknown certanchor.WellKnownCertanchor
	if err := json.Unmarshal(rec.Body.Bytes(), &wellknown); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if wellknown.Domain != "anchor.example.edu" {
		t.Errorf("domain = %q", wellknown.Domain)
	}
	if wellknown.Endpoints["net.certanchor.verify"] != "/api/v1/verify" {
		t.Errorf("verify endpoint missing from %v", wellknown.Endpoints)
	}
}

func TestIntakeRequiresAdmin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/records", `{"content":"x"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestIntakeReturnsPendingWithRedactedFingerprint(t *testing.T) {
	s := newTestServer(t)

	resp := s.intake(t, "Certificate of Graduation: Jordan Doe")
	if resp.Status != string(domain.StatusPending) {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if len(resp.FingerprintPrefix) != certanchor.FingerprintPrefixLen {
		t.Errorf("fingerprint prefix length = %d, want %d", len(resp.FingerprintPrefix), certanchor.FingerprintPrefixLen)
	}

	record := s.waitSettled(t, resp.ID)
	if record.Status != domain.StatusValid {
		t.Errorf("settled status = %s, reason %q", record.Status, record.StatusReason)
	}
}

func TestIntakeRejectsEmptyContent(t *testing.T) {
	s := newTestServer(t)

	body := `{"content":"","issuerName":"` + testIssuer + `"}`
	rec := s.do(http.MethodPost, "/api/v1/records", body, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

func TestVerifyRequiresQuery(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/verify", "", false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyMalformedFingerprintYieldsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/verify?fingerprint=nothex", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var verdict certanchor.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if verdict.Status != certanchor.VerdictNotFound {
		t.Errorf("verdict = %s, want NotFound", verdict.Status)
	}
}

func TestVerifyAnchoredRecord(t *testing.T) {
	s := newTestServer(t)

	resp := s.intake(t, "Certificate of Graduation: Jordan Doe")
	record := s.waitSettled(t, resp.ID)

	rec := s.do(http.MethodGet, "/api/v1/verify?id="+record.ID, "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var verdict certanchor.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if verdict.Status != certanchor.VerdictValid {
		t.Fatalf("verdict = %s, reason %q", verdict.Status, verdict.Reason)
	}
	if verdict.Record == nil {
		t.Fatal("verdict carries no record view")
	}
	if len(verdict.Record.FingerprintPrefix) != certanchor.FingerprintPrefixLen {
		t.Errorf("record view leaks fingerprint: %q", verdict.Record.FingerprintPrefix)
	}
}

func TestStatusTransition(t *testing.T) {
	s := newTestServer(t)

	resp := s.intake(t, "Certificate of Graduation: Jordan Doe")
	s.waitSettled(t, resp.ID)

	rec := s.do(http.MethodPost, "/api/v1/records/"+resp.ID+"/status", `{"status":"suspended","reason":"issuance under review"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var record domain.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Status != domain.StatusSuspended {
		t.Errorf("status = %s", record.Status)
	}
	if record.UpdatedBy != "admin:ops" {
		t.Errorf("updatedBy = %q", record.UpdatedBy)
	}
}

func TestStatusTransitionRejectsMissingReason(t *testing.T) {
	s := newTestServer(t)

	resp := s.intake(t, "Certificate of Graduation: Jordan Doe")
	s.waitSettled(t, resp.ID)

	rec := s.do(http.MethodPost, "/api/v1/records/"+resp.ID+"/status", `{"status":"suspended"}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

func TestStatusTransitionUnknownRecord(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/records/ca000000000000000000000000/status", `{"status":"suspended","reason":"x"}`, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListRejectsUnknownStatusFilter(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/records?status=bogus", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	s := newTestServer(t)

	first := s.intake(t, "certificate one")
	second := s.intake(t, "certificate two")
	s.waitSettled(t, first.ID)
	s.waitSettled(t, second.ID)

	rec := s.do(http.MethodGet, "/api/v1/records?status=valid", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var records []domain.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestQRReturnsPNG(t *testing.T) {
	s := newTestServer(t)

	resp := s.intake(t, "Certificate of Graduation: Jordan Doe")
	s.waitSettled(t, resp.ID)

	rec := s.do(http.MethodGet, "/api/v1/records/"+resp.ID+"/qr", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
		t.Errorf("content-type = %q", ct)
	}
	// PNG signature.
	if body := rec.Body.Bytes(); len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Error("body is not a PNG image")
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t)

	resp := s.intake(t, "Certificate of Graduation: Jordan Doe")
	s.waitSettled(t, resp.ID)

	rec := s.do(http.MethodGet, "/api/v1/stats", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats usecase.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Ledger != 1 {
		t.Errorf("ledger count = %d, want 1", stats.Ledger)
	}
	if stats.Local[domain.StatusValid] != 1 {
		t.Errorf("local valid count = %d, want 1", stats.Local[domain.StatusValid])
	}
}

func TestAuthorizeIssuerIdempotent(t *testing.T) {
	s := newTestServer(t)

	body := `{"address":"0xabc","name":"Beta College"}`

	rec := s.do(http.MethodPost, "/api/v1/issuers", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodPost, "/api/v1/issuers", body, true)
	var resp struct {
		AlreadyAuthorized bool `json:"alreadyAuthorized"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.AlreadyAuthorized {
		t.Error("second authorization not reported as already authorized")
	}
}
