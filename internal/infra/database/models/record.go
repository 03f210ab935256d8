package models

import (
	"time"
)

// Record is the durable representation of a certificate record. Records are
// never hard-deleted; a fraudulent record becomes invalid, preserving the
// audit trail.
type Record struct {
	ID              string    `json:"id" gorm:"primaryKey;type:text"`
	Fingerprint     string    `json:"fingerprint" gorm:"type:text;uniqueIndex:record_fingerprint"`
	IssuerIdentity  string    `json:"issuerIdentity" gorm:"type:text;not null"`
	IssuerContact   string    `json:"issuerContact" gorm:"type:text"`
	SubjectName     string    `json:"subjectName" gorm:"type:text"`
	Program         string    `json:"program" gorm:"type:text"`
	IssueDate       string    `json:"issueDate" gorm:"type:text"`
	Grade           string    `json:"grade" gorm:"type:text"`
	Status          string    `json:"status" gorm:"type:text;not null;index"`
	StatusReason    string    `json:"statusReason" gorm:"type:text"`
	LedgerAnchorRef *string   `json:"ledgerAnchorRef" gorm:"type:text"`
	CDate           time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;index"`
	MDate           time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null"`
	UpdatedBy       string    `json:"updatedBy" gorm:"type:text;not null"`
}
