package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/certanchor/certanchor"
	"github.com/certanchor/certanchor/internal/domain"
	"github.com/certanchor/certanchor/internal/usecase"
)

// MemoryLedger is an in-process ledger satisfying the same capability
// interface as a real node. It backs standalone deployments and tests.
// Append-only: anchors are never removed or overwritten.
type MemoryLedger struct {
	mu      sync.RWMutex
	anchors map[string]certanchor.LedgerAnchor // fingerprint -> anchor
	issuers map[string]string                  // address -> name
	seq     int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		anchors: map[string]certanchor.LedgerAnchor{},
		issuers: map[string]string{},
	}
}

func (l *MemoryLedger) AuthorizeIssuer(ctx context.Context, address, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.issuers[address]; ok {
		return true, nil
	}
	l.issuers[address] = name
	return false, nil
}

func (l *MemoryLedger) AnchorRecord(ctx context.Context, id, fingerprint, issuerName, issuerContact string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.issuerAuthorized(issuerName) {
		return "", domain.IssuerNotAuthorizedError{Issuer: issuerName}
	}

	if existing, ok := l.anchors[fingerprint]; ok {
		if existing.ID == id {
			// Idempotent resubmission of the same tuple.
			return existing.Ref, nil
		}
		return "", domain.DuplicateFingerprintError{Fingerprint: fingerprint}
	}

	l.seq++
	anchor := certanchor.LedgerAnchor{
		ID:            id,
		Fingerprint:   fingerprint,
		IssuerName:    issuerName,
		IssuerContact: issuerContact,
		Ref:           fmt.Sprintf("mem-%06d", l.seq),
		AnchoredAt:    time.Now().UTC(),
	}
	l.anchors[fingerprint] = anchor
	return anchor.Ref, nil
}

func (l *MemoryLedger) LookupRecord(ctx context.Context, fingerprint string) (certanchor.LedgerAnchor, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	anchor, ok := l.anchors[fingerprint]
	if !ok {
		return certanchor.LedgerAnchor{}, domain.NotFoundError{Resource: "anchor"}
	}
	return anchor, nil
}

func (l *MemoryLedger) RecordCount(ctx context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.anchors)), nil
}

func (l *MemoryLedger) issuerAuthorized(name string) bool {
	for _, issuer := range l.issuers {
		if issuer == name {
			return true
		}
	}
	return false
}

var _ usecase.LedgerGateway = (*MemoryLedger)(nil)
