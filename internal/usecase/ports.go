package usecase

import (
	"context"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/internal/domain"
)

// RecordRepository defines the record store contract. Any backend must keep
// ids unique, fingerprints unique, and serialize status mutation per id.
type RecordRepository interface {
	Create(ctx context.Context, record domain.Record) error
	GetByID(ctx context.Context, id string) (domain.Record, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (domain.Record, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, reason, actor string) (domain.Record, error)
	SetAnchor(ctx context.Context, id, anchorRef, actor string) (domain.Record, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Record, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}

// LedgerGateway is the capability interface over the external append-only
// ledger. The ledger is the source of truth for the anchoring fact only;
// metadata and administrative status live in the record store.
type LedgerGateway interface {
	// AuthorizeIssuer grants anchoring permission. already reports an
	// idempotent re-authorization, which is not an error but must stay
	// distinguishable in logs.
	AuthorizeIssuer(ctx context.Context, address, name string) (already bool, err error)
	AnchorRecord(ctx context.Context, id, fingerprint, issuerName, issuerContact string) (string, error)
	LookupRecord(ctx context.Context, fingerprint string) (certanchor.LedgerAnchor, error)
	RecordCount(ctx context.Context) (int64, error)
}

// AnchorSignaler publishes anchor completion events so callers can subscribe
// instead of polling.
type AnchorSignaler interface {
	Publish(ctx context.Context, event certanchor.AnchorEvent) error
}
