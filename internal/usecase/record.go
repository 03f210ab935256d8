package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/cdid"
	"github.com/certanchor/certanchor/fingerprint"
	"github.com/certanchor/certanchor/internal/domain"
)

var tracer = otel.Tracer("usecase")

// IntakeInput is the fully-specified input for record creation. The core
// always recomputes the fingerprint; intake collaborators must not supply one.
type IntakeInput struct {
	Content       []byte
	Metadata      domain.Metadata
	IssuerName    string
	IssuerContact string
	Actor         string
}

type RecordUsecase struct {
	repo   RecordRepository
	ledger LedgerGateway
	signal AnchorSignaler

	// MaxContentBytes bounds accepted certificate content.
	MaxContentBytes int
	// AnchorMaxRetries bounds retries of transient anchor failures.
	AnchorMaxRetries uint64
	// AnchorInitialInterval seeds the exponential backoff between retries.
	AnchorInitialInterval time.Duration
}

func NewRecordUsecase(repo RecordRepository, ledger LedgerGateway, signal AnchorSignaler) *RecordUsecase {
	return &RecordUsecase{
		repo:   repo,
		ledger: ledger,
		signal: signal,

		MaxContentBytes:       fingerprint.DefaultMaxContentBytes,
		AnchorMaxRetries:      5,
		AnchorInitialInterval: 500 * time.Millisecond,
	}
}

// Intake computes the fingerprint, creates the record in pending status and
// starts the asynchronous anchor attempt. The record is returned immediately;
// anchoring settles later and is observable through the signal channel.
func (uc *RecordUsecase) Intake(ctx context.Context, input IntakeInput) (domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Record.Usecase.Intake")
	defer span.End()

	fp, err := fingerprint.Compute(input.Content, uc.MaxContentBytes)
	if err != nil {
		span.RecordError(err)
		return domain.Record{}, domain.InvalidInputError{Reason: err.Error()}
	}

	if input.IssuerName == "" {
		return domain.Record{}, domain.InvalidInputError{Reason: "issuer name is required"}
	}

	id, err := cdid.Generate()
	if err != nil {
		span.RecordError(err)
		return domain.Record{}, errors.Wrap(err, "failed to generate record id")
	}

	actor := input.Actor
	if actor == "" {
		actor = domain.ActorSystem
	}

	now := time.Now().UTC()
	record := domain.Record{
		ID:             id,
		Fingerprint:    fp,
		IssuerIdentity: input.IssuerName,
		IssuerContact:  input.IssuerContact,
		Metadata:       input.Metadata,
		Status:         domain.StatusPending,
		StatusReason:   "awaiting ledger anchor",
		CreatedAt:      now,
		LastUpdated:    now,
		UpdatedBy:      actor,
	}

	err = uc.repo.Create(ctx, record)
	if err != nil {
		span.RecordError(err)
		return domain.Record{}, err
	}

	// The anchor attempt outlives the request; once submitted it runs to
	// completion regardless of the caller abandoning the wait.
	go uc.Anchor(context.WithoutCancel(ctx), record)

	return record, nil
}

// Anchor submits the record's fingerprint to the ledger, retrying transient
// failures with exponential backoff. On success the anchor reference is
// assigned and the record becomes valid; a permanent failure moves it to
// invalid rather than leaving it pending forever.
func (uc *RecordUsecase) Anchor(ctx context.Context, record domain.Record) {
	ctx, span := tracer.Start(ctx, "Record.Usecase.Anchor")
	defer span.End()

	operation := func() (string, error) {
		ref, err := uc.ledger.AnchorRecord(ctx, record.ID, record.Fingerprint, record.IssuerIdentity, record.IssuerContact)
		if err != nil && !domain.IsTransient(err) {
			return "", backoff.Permanent(err)
		}
		return ref, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = uc.AnchorInitialInterval

	ref, err := backoff.RetryWithData(operation, backoff.WithMaxRetries(policy, uc.AnchorMaxRetries))
	if err != nil {
		span.RecordError(errors.Wrap(err, "anchoring failed"))
		uc.settleFailedAnchor(ctx, record, err)
		return
	}

	updated, err := uc.repo.SetAnchor(ctx, record.ID, ref, domain.ActorSystem)
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to persist anchor reference"))
		return
	}

	// An administrator may have suspended or invalidated the record while the
	// anchor was in flight; only a still-pending record auto-promotes.
	final := updated.Status
	if updated.Status == domain.StatusPending {
		promoted, err := uc.repo.UpdateStatus(ctx, record.ID, domain.StatusValid, "ledger anchor confirmed", domain.ActorSystem)
		if err != nil {
			span.RecordError(errors.Wrap(err, "failed to mark record valid"))
			return
		}
		final = promoted.Status
	}

	uc.publish(ctx, certanchor.AnchorEvent{
		RecordID:  record.ID,
		Status:    string(final),
		AnchorRef: ref,
	})
}

func (uc *RecordUsecase) settleFailedAnchor(ctx context.Context, record domain.Record, cause error) {
	reason := "anchoring failed: " + cause.Error()

	_, err := uc.repo.UpdateStatus(ctx, record.ID, domain.StatusInvalid, reason, domain.ActorSystem)
	if err != nil {
		// The record stays pending; the failure is still visible in the event.
		reason = reason + " (status update failed: " + err.Error() + ")"
	}

	uc.publish(ctx, certanchor.AnchorEvent{
		RecordID: record.ID,
		Status:   string(domain.StatusInvalid),
		Reason:   reason,
	})
}

func (uc *RecordUsecase) publish(ctx context.Context, event certanchor.AnchorEvent) {
	if uc.signal == nil {
		return
	}
	if err := uc.signal.Publish(ctx, event); err != nil {
		trace.SpanFromContext(ctx).RecordError(errors.Wrap(err, "failed to publish anchor event"))
	}
}

// AuthorizeIssuer grants an issuer anchoring permission on the ledger.
func (uc *RecordUsecase) AuthorizeIssuer(ctx context.Context, address, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Record.Usecase.AuthorizeIssuer")
	defer span.End()

	if address == "" || name == "" {
		return false, domain.InvalidInputError{Reason: "issuer address and name are required"}
	}

	already, err := uc.ledger.AuthorizeIssuer(ctx, address, name)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return already, nil
}

// List exposes the record store listing to the boundary layer.
func (uc *RecordUsecase) List(ctx context.Context, filter domain.ListFilter) ([]domain.Record, error) {
	return uc.repo.List(ctx, filter)
}

// Get fetches a single record by id.
func (uc *RecordUsecase) Get(ctx context.Context, id string) (domain.Record, error) {
	return uc.repo.GetByID(ctx, id)
}

// Stats aggregates local status counts with the ledger's total anchor count.
type Stats struct {
	Local  map[domain.Status]int64 `json:"local"`
	Ledger int64                   `json:"ledger"`
}

func (uc *RecordUsecase) Stats(ctx context.Context) (Stats, error) {
	ctx, span := tracer.Start(ctx, "Record.Usecase.Stats")
	defer span.End()

	local, err := uc.repo.CountByStatus(ctx)
	if err != nil {
		span.RecordError(err)
		return Stats{}, err
	}

	count, err := uc.ledger.RecordCount(ctx)
	if err != nil {
		span.RecordError(err)
		return Stats{}, err
	}

	return Stats{Local: local, Ledger: count}, nil
}
