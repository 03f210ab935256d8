package certanchor

import (
	"time"
)

// VerdictStatus classifies the outcome of a verification query.
type VerdictStatus string

const (
	VerdictValid    VerdictStatus = "Valid"
	VerdictInvalid  VerdictStatus = "Invalid"
	VerdictPending  VerdictStatus = "PendingLedgerConfirmation"
	VerdictNotFound VerdictStatus = "NotFound"
)

// RecordView is the public-safe subset of a record. The full fingerprint is
// never exposed here, only a short prefix, so the ledger cannot be enumerated
// through the verification surface.
type RecordView struct {
	ID                string    `json:"id"`
	FingerprintPrefix string    `json:"fingerprintPrefix"`
	IssuerIdentity    string    `json:"issuerIdentity"`
	SubjectName       string    `json:"subjectName,omitempty"`
	Program           string    `json:"program,omitempty"`
	IssueDate         string    `json:"issueDate,omitempty"`
	Grade             string    `json:"grade,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Verdict is the wire encoding handed to the presentation layer. Verification
// always produces one of these, never a bare error.
type Verdict struct {
	Status     VerdictStatus `json:"status"`
	Record     *RecordView   `json:"record,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	AnchorRef  string        `json:"anchorRef,omitempty"`
	Diagnostic string        `json:"diagnostic,omitempty"`
}

// LedgerAnchor is the ledger's view of an anchored fingerprint.
type LedgerAnchor struct {
	ID            string    `json:"id"`
	Fingerprint   string    `json:"fingerprint"`
	IssuerName    string    `json:"issuerName"`
	IssuerContact string    `json:"issuerContact,omitempty"`
	IssuerAddress string    `json:"issuerAddress,omitempty"`
	Ref           string    `json:"ref"`
	AnchoredAt    time.Time `json:"anchoredAt"`
}

// AnchorEvent is published when an asynchronous anchor attempt settles.
type AnchorEvent struct {
	RecordID  string `json:"recordId"`
	Status    string `json:"status"`
	AnchorRef string `json:"anchorRef,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// QRPayload is the structured payload embedded in a scannable verification
// code. Any client must be able to extract id and fingerprint from it and
// resubmit them to the verify endpoint.
type QRPayload struct {
	ID             string `json:"id"`
	Fingerprint    string `json:"fingerprint"`
	VerifyEndpoint string `json:"verifyEndpoint"`
}

type WellKnownCertanchor struct {
	Version   string            `json:"version"`
	Domain    string            `json:"domain"`
	Issuer    string            `json:"issuer,omitempty"`
	Endpoints map[string]string `json:"endpoints"`
}
