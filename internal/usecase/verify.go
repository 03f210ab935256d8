package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/internal/domain"
)

// VerifyQuery addresses a record either by id or by fingerprint. Exactly one
// field should be set; id wins when both are.
type VerifyQuery struct {
	ID          string
	Fingerprint string
}

type VerifyUsecase struct {
	repo   RecordRepository
	ledger LedgerGateway

	// LookupMaxRetries bounds retries of transient ledger lookups.
	LookupMaxRetries uint64
	// LookupInitialInterval seeds the backoff between lookup retries.
	LookupInitialInterval time.Duration
}

func NewVerifyUsecase(repo RecordRepository, ledger LedgerGateway) *VerifyUsecase {
	return &VerifyUsecase{
		repo:   repo,
		ledger: ledger,

		LookupMaxRetries:      2,
		LookupInitialInterval: 200 * time.Millisecond,
	}
}

// Verify reconciles the local record store with the ledger and always
// produces a verdict, never an error. Where the two disagree, the ledger is
// authoritative for the anchoring fact, but the discrepancy is surfaced
// explicitly instead of silently preferring either source.
func (uc *VerifyUsecase) Verify(ctx context.Context, query VerifyQuery) certanchor.Verdict {
	ctx, span := tracer.Start(ctx, "Verify.Usecase.Verify")
	defer span.End()

	record, err := uc.lookupLocal(ctx, query)
	if err != nil {
		if domain.ErrNotFound.Is(err) {
			return uc.verdictWithoutLocalRecord(ctx, query)
		}
		span.RecordError(err)
		return certanchor.Verdict{
			Status:     certanchor.VerdictPending,
			Reason:     "record store lookup failed",
			Diagnostic: err.Error(),
		}
	}

	span.SetAttributes(attribute.String("RecordId", record.ID))

	view := record.PublicView()

	switch record.Status {
	case domain.StatusInvalid, domain.StatusSuspended:
		return certanchor.Verdict{
			Status: certanchor.VerdictInvalid,
			Record: &view,
			Reason: record.StatusReason,
		}

	case domain.StatusPending:
		return certanchor.Verdict{
			Status: certanchor.VerdictPending,
			Record: &view,
			Reason: record.StatusReason,
		}
	}

	// Locally valid. A record without an anchor reference can only have been
	// approved administratively; that path must stay distinguishable from
	// ledger-backed validity.
	if !record.Anchored() {
		return certanchor.Verdict{
			Status: certanchor.VerdictPending,
			Record: &view,
			Reason: "locally approved but not ledger-anchored",
		}
	}

	anchor, err := uc.lookupLedger(ctx, record.Fingerprint)
	if err != nil {
		if domain.ErrNotFound.Is(err) {
			return certanchor.Verdict{
				Status: certanchor.VerdictInvalid,
				Record: &view,
				Reason: "local record is marked valid but the ledger holds no anchor for its fingerprint",
			}
		}
		span.RecordError(err)
		return certanchor.Verdict{
			Status:     certanchor.VerdictPending,
			Record:     &view,
			Reason:     "ledger unavailable, anchoring fact unconfirmed",
			Diagnostic: err.Error(),
		}
	}

	if anchor.ID != record.ID {
		return certanchor.Verdict{
			Status: certanchor.VerdictInvalid,
			Record: &view,
			Reason: fmt.Sprintf("fingerprint is anchored under a different id (%s), possible tampering", anchor.ID),
		}
	}

	if anchor.IssuerName != record.IssuerIdentity {
		return certanchor.Verdict{
			Status: certanchor.VerdictInvalid,
			Record: &view,
			Reason: fmt.Sprintf("ledger issuer %q does not match locally recorded issuer %q", anchor.IssuerName, record.IssuerIdentity),
		}
	}

	return certanchor.Verdict{
		Status:    certanchor.VerdictValid,
		Record:    &view,
		AnchorRef: anchor.Ref,
	}
}

func (uc *VerifyUsecase) lookupLocal(ctx context.Context, query VerifyQuery) (domain.Record, error) {
	if query.ID != "" {
		return uc.repo.GetByID(ctx, query.ID)
	}
	if query.Fingerprint != "" {
		return uc.repo.GetByFingerprint(ctx, query.Fingerprint)
	}
	return domain.Record{}, domain.NotFoundError{Resource: "record"}
}

// verdictWithoutLocalRecord handles queries that miss the record store. A
// fingerprint query still consults the ledger directly, since a fingerprint
// might have been anchored by a process that bypassed local intake.
func (uc *VerifyUsecase) verdictWithoutLocalRecord(ctx context.Context, query VerifyQuery) certanchor.Verdict {
	if query.Fingerprint == "" {
		return certanchor.Verdict{Status: certanchor.VerdictNotFound}
	}

	anchor, err := uc.lookupLedger(ctx, query.Fingerprint)
	if err != nil {
		if domain.ErrNotFound.Is(err) {
			return certanchor.Verdict{Status: certanchor.VerdictNotFound}
		}
		return certanchor.Verdict{
			Status:     certanchor.VerdictPending,
			Reason:     "ledger unavailable, fingerprint could not be checked",
			Diagnostic: err.Error(),
		}
	}

	view := certanchor.RecordView{
		ID:                anchor.ID,
		FingerprintPrefix: certanchor.FingerprintPrefix(anchor.Fingerprint),
		IssuerIdentity:    anchor.IssuerName,
		Status:            string(domain.StatusPending),
		CreatedAt:         anchor.AnchoredAt,
	}
	return certanchor.Verdict{
		Status:    certanchor.VerdictPending,
		Record:    &view,
		Reason:    "fingerprint is anchored on the ledger but unknown to this registry",
		AnchorRef: anchor.Ref,
	}
}

func (uc *VerifyUsecase) lookupLedger(ctx context.Context, fingerprint string) (certanchor.LedgerAnchor, error) {
	operation := func() (certanchor.LedgerAnchor, error) {
		anchor, err := uc.ledger.LookupRecord(ctx, fingerprint)
		if err != nil && !domain.IsTransient(err) {
			return certanchor.LedgerAnchor{}, backoff.Permanent(err)
		}
		return anchor, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = uc.LookupInitialInterval

	return backoff.RetryWithData(operation, backoff.WithMaxRetries(policy, uc.LookupMaxRetries))
}
