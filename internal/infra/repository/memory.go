package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/certanchor/certanchor/internal/domain"
	"github.com/certanchor/certanchor/internal/usecase"
	"github.com/certanchor/certanchor/internal/utils"
)

// MemoryRecordRepository keeps records in process memory. It backs standalone
// deployments without Postgres and doubles as the test repository; it honors
// the same contract, including per-id serialization of status mutation.
type MemoryRecordRepository struct {
	mu          sync.RWMutex
	byID        map[string]domain.Record
	fingerprint map[string]string // fingerprint -> id
	order       []string          // insertion order
	locks       *utils.KeyedMutex
}

func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{
		byID:        map[string]domain.Record{},
		fingerprint: map[string]string{},
		locks:       utils.NewKeyedMutex(),
	}
}

func (r *MemoryRecordRepository) Create(ctx context.Context, record domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[record.ID]; ok {
		return domain.DuplicateIDError{ID: record.ID}
	}
	if _, ok := r.fingerprint[record.Fingerprint]; ok {
		return domain.DuplicateFingerprintError{Fingerprint: record.Fingerprint}
	}

	r.byID[record.ID] = record
	r.fingerprint[record.Fingerprint] = record.ID
	r.order = append(r.order, record.ID)
	return nil
}

func (r *MemoryRecordRepository) GetByID(ctx context.Context, id string) (domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.byID[id]
	if !ok {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}
	return record, nil
}

func (r *MemoryRecordRepository) GetByFingerprint(ctx context.Context, fingerprint string) (domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.fingerprint[fingerprint]
	if !ok {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}
	return r.byID[id], nil
}

func (r *MemoryRecordRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, reason, actor string) (domain.Record, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byID[id]
	if !ok {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}

	if err := domain.ValidateTransition(record.Status, status, reason, actor); err != nil {
		return domain.Record{}, err
	}

	record.Status = status
	record.StatusReason = reason
	record.UpdatedBy = actor
	record.LastUpdated = time.Now().UTC()
	r.byID[id] = record
	return record, nil
}

func (r *MemoryRecordRepository) SetAnchor(ctx context.Context, id, anchorRef, actor string) (domain.Record, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byID[id]
	if !ok {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}

	if record.LedgerAnchorRef == "" {
		record.LedgerAnchorRef = anchorRef
		record.UpdatedBy = actor
		record.LastUpdated = time.Now().UTC()
		r.byID[id] = record
	}
	return record, nil
}

func (r *MemoryRecordRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := []domain.Record{}
	for _, id := range r.order {
		record := r.byID[id]
		if filter.Status != nil && record.Status != *filter.Status {
			continue
		}
		if filter.Since != nil && record.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && !record.CreatedAt.Before(*filter.Until) {
			continue
		}
		records = append(records, record)
	}

	if filter.Recent {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		})
	}
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

func (r *MemoryRecordRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[domain.Status]int64{}
	for _, record := range r.byID {
		counts[record.Status]++
	}
	return counts, nil
}

var _ usecase.RecordRepository = (*MemoryRecordRepository)(nil)
