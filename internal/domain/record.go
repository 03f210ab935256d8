package domain

import (
	"time"

	"github.com/certanchor/certanchor"
)

// Status is the administrative lifecycle state of a record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusValid     Status = "valid"
	StatusInvalid   Status = "invalid"
	StatusSuspended Status = "suspended"
)

func (s Status) IsKnown() bool {
	switch s {
	case StatusPending, StatusValid, StatusInvalid, StatusSuspended:
		return true
	}
	return false
}

// Metadata carries the human-meaningful certificate fields. These change only
// through explicit administrative correction, never through verification.
type Metadata struct {
	SubjectName string `json:"subjectName"`
	Program     string `json:"program"`
	IssueDate   string `json:"issueDate"`
	Grade       string `json:"grade"`
}

// Record is the local, audit-tracked representation of a certificate.
// ID, Fingerprint and the issuer fields are immutable once assigned; a change
// to certificate content produces a new Record, not a mutation.
type Record struct {
	ID             string    `json:"id"`
	Fingerprint    string    `json:"fingerprint"`
	IssuerIdentity string    `json:"issuerIdentity"`
	IssuerContact  string    `json:"issuerContact"`
	Metadata       Metadata  `json:"metadata"`
	Status         Status    `json:"status"`
	StatusReason   string    `json:"statusReason"`
	LedgerAnchorRef string   `json:"ledgerAnchorRef,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastUpdated    time.Time `json:"lastUpdated"`
	UpdatedBy      string    `json:"updatedBy"`
}

// Anchored reports whether the record carries a ledger anchor reference.
func (r Record) Anchored() bool {
	return r.LedgerAnchorRef != ""
}

// PublicView redacts the record down to what the presentation layer may show.
func (r Record) PublicView() certanchor.RecordView {
	return certanchor.RecordView{
		ID:                r.ID,
		FingerprintPrefix: certanchor.FingerprintPrefix(r.Fingerprint),
		IssuerIdentity:    r.IssuerIdentity,
		SubjectName:       r.Metadata.SubjectName,
		Program:           r.Metadata.Program,
		IssueDate:         r.Metadata.IssueDate,
		Grade:             r.Metadata.Grade,
		Status:            string(r.Status),
		CreatedAt:         r.CreatedAt,
	}
}

// ListFilter narrows List results. Zero value means no filtering, insertion
// order. Recent flips ordering to newest-first.
type ListFilter struct {
	Status *Status
	Since  *time.Time
	Until  *time.Time
	Recent bool
	Limit  int
}
