package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/internal/domain"
)

// memRepo is a minimal in-memory RecordRepository for usecase tests.
type memRepo struct {
	mu      sync.Mutex
	records map[string]domain.Record
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]domain.Record{}}
}

func (m *memRepo) Create(ctx context.Context, record domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; ok {
		return domain.DuplicateIDError{ID: record.ID}
	}
	for _, existing := range m.records {
		if existing.Fingerprint == record.Fingerprint {
			return domain.DuplicateFingerprintError{Fingerprint: record.Fingerprint}
		}
	}
	m.records[record.ID] = record
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id string) (domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}
	return record, nil
}

func (m *memRepo) GetByFingerprint(ctx context.Context, fp string) (domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.Fingerprint == fp {
			return record, nil
		}
	}
	return domain.Record{}, domain.NotFoundError{Resource: "record"}
}

func (m *memRepo) UpdateStatus(ctx context.Context, id string, status domain.Status, reason, actor string) (domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
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
	m.records[id] = record
	return record, nil
}

func (m *memRepo) SetAnchor(ctx context.Context, id, anchorRef, actor string) (domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}
	record.LedgerAnchorRef = anchorRef
	record.UpdatedBy = actor
	record.LastUpdated = time.Now().UTC()
	m.records[id] = record
	return record, nil
}

func (m *memRepo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Record{}
	for _, record := range m.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[domain.Status]int64{}
	for _, record := range m.records {
		counts[record.Status]++
	}
	return counts, nil
}

// scriptedLedger replays a queue of anchor responses and records calls.
type scriptedLedger struct {
	mu sync.Mutex

	anchorErrs   []error
	anchorRef    string
	anchorCalls  int
	lookupAnchor certanchor.LedgerAnchor
	lookupErr    error
	lookupCalls  int
	authorized   map[string]bool
	count        int64
}

func newScriptedLedger() *scriptedLedger {
	return &scriptedLedger{
		anchorRef:  "txn-0001",
		authorized: map[string]bool{},
		lookupErr:  domain.NotFoundError{Resource: "anchor"},
	}
}

func (l *scriptedLedger) AuthorizeIssuer(ctx context.Context, address, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.authorized[address] {
		return true, nil
	}
	l.authorized[address] = true
	return false, nil
}

func (l *scriptedLedger) AnchorRecord(ctx context.Context, id, fp, issuerName, issuerContact string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.anchorCalls++
	if len(l.anchorErrs) > 0 {
		err := l.anchorErrs[0]
		l.anchorErrs = l.anchorErrs[1:]
		if err != nil {
			return "", err
		}
	}
	l.count++
	l.lookupAnchor = certanchor.LedgerAnchor{
		ID:          id,
		Fingerprint: fp,
		IssuerName:  issuerName,
		Ref:         l.anchorRef,
		AnchoredAt:  time.Now().UTC(),
	}
	l.lookupErr = nil
	return l.anchorRef, nil
}

func (l *scriptedLedger) LookupRecord(ctx context.Context, fp string) (certanchor.LedgerAnchor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookupCalls++
	if l.lookupErr != nil {
		return certanchor.LedgerAnchor{}, l.lookupErr
	}
	if l.lookupAnchor.Fingerprint != fp {
		return certanchor.LedgerAnchor{}, domain.NotFoundError{Resource: "anchor"}
	}
	return l.lookupAnchor, nil
}

func (l *scriptedLedger) RecordCount(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count, nil
}

// chanSignaler delivers published events to a channel so tests can wait for
// the asynchronous anchor pipeline to settle.
type chanSignaler struct {
	events chan certanchor.AnchorEvent
}

func newChanSignaler() *chanSignaler {
	return &chanSignaler{events: make(chan certanchor.AnchorEvent, 16)}
}

func (s *chanSignaler) Publish(ctx context.Context, event certanchor.AnchorEvent) error {
	s.events <- event
	return nil
}

func (s *chanSignaler) wait(timeout time.Duration) (certanchor.AnchorEvent, bool) {
	select {
	case event := <-s.events:
		return event, true
	case <-time.After(timeout):
		return certanchor.AnchorEvent{}, false
	}
}
