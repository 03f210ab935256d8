package usecase

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/internal/domain"
)

// LifecycleUsecase governs administrative status transitions. The transition
// rules themselves live in domain.ValidateTransition and are enforced by the
// record store inside its per-id critical section; this layer adds tracing
// and completion signalling.
type LifecycleUsecase struct {
	repo   RecordRepository
	signal AnchorSignaler
}

func NewLifecycleUsecase(repo RecordRepository, signal AnchorSignaler) *LifecycleUsecase {
	return &LifecycleUsecase{repo: repo, signal: signal}
}

func (uc *LifecycleUsecase) Transition(ctx context.Context, id string, to domain.Status, reason, actor string) (domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Lifecycle.Usecase.Transition")
	defer span.End()

	span.SetAttributes(
		attribute.String("RecordId", id),
		attribute.String("TargetStatus", string(to)),
		attribute.String("Actor", actor),
	)

	record, err := uc.repo.UpdateStatus(ctx, id, to, reason, actor)
	if err != nil {
		span.RecordError(err)
		return domain.Record{}, err
	}

	if uc.signal != nil {
		event := certanchor.AnchorEvent{
			RecordID:  record.ID,
			Status:    string(record.Status),
			AnchorRef: record.LedgerAnchorRef,
			Reason:    record.StatusReason,
		}
		if err := uc.signal.Publish(ctx, event); err != nil {
			span.RecordError(err)
		}
	}

	return record, nil
}
