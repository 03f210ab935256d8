package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/client"
	"github.com/certanchor/certanchor/internal/domain"
)

const testPrivateKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func newTestGateway(t *testing.T, handler http.Handler) (*LedgerGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewLedgerGateway(client.New(server.URL), nil, testPrivateKey), server
}

func TestLedgerGatewayAnchorSuccess(t *testing.T) {
	var received anchorRequest
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/anchors" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("bad body: %v", err)
		}
		json.NewEncoder(w).Encode(anchorResponse{Ref: "txn-42"})
	}))

	ref, err := gw.AnchorRecord(context.Background(), "rec-1", "abc123", "Acme University", "registrar@acme.edu")
	if err != nil {
		t.Fatalf("anchor failed: %v", err)
	}
	if ref != "txn-42" {
		t.Fatalf("expected txn-42 got %s", ref)
	}
	if received.Signature == "" {
		t.Fatalf("anchor submission was not signed")
	}
}

func TestLedgerGatewayClassifiesAnchorFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"conflict is duplicate fingerprint", http.StatusConflict, domain.ErrDuplicateFingerprint.Is},
		{"forbidden is issuer not authorized", http.StatusForbidden, domain.ErrIssuerNotAuthorized.Is},
		{"server error is transient", http.StatusBadGateway, domain.IsTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))

			_, err := gw.AnchorRecord(context.Background(), "rec-1", "abc123", "Acme University", "")
			if err == nil || !tc.check(err) {
				t.Fatalf("misclassified error: %v", err)
			}
		})
	}
}

func TestLedgerGatewayAnchorUnreachableIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on

	gw := NewLedgerGateway(client.New(server.URL), nil, testPrivateKey)

	_, err := gw.AnchorRecord(context.Background(), "rec-1", "abc123", "Acme University", "")
	if !domain.IsTransient(err) {
		t.Fatalf("network failure must classify as transient, got %v", err)
	}
}

func TestLedgerGatewayLookup(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anchors/abc123" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(certanchor.LedgerAnchor{
			ID: "rec-1", Fingerprint: "abc123", IssuerName: "Acme University", Ref: "txn-42",
		})
	}))

	anchor, err := gw.LookupRecord(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if anchor.ID != "rec-1" || anchor.Ref != "txn-42" {
		t.Fatalf("unexpected anchor %+v", anchor)
	}

	_, err = gw.LookupRecord(context.Background(), "missing")
	if !domain.ErrNotFound.Is(err) {
		t.Fatalf("expected NotFoundError got %v", err)
	}
}

func TestLedgerGatewayRecordCount(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anchors/count" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(countResponse{Count: 7})
	}))

	count, err := gw.RecordCount(context.Background())
	if err != nil || count != 7 {
		t.Fatalf("expected 7 got %d err=%v", count, err)
	}
}
