// Package models defines the server-side entities persisted in PostgreSQL:
// auth challenges, fraud reports, ledger transactions, and reputation
// profiles.
package models

import "time"

// Category classifies the kind of fraud being reported.
type Category string

const (
	CategoryPhishing      Category = "phishing"
	CategoryScam          Category = "scam"
	CategoryMalware       Category = "malware"
	CategoryFakeStore     Category = "fake_store"
	CategoryImpersonation Category = "impersonation"
	CategoryCryptoScam    Category = "crypto_scam"
	CategoryOther         Category = "other"
)

// Valid reports whether c is a recognized category value.
func (c Category) Valid() bool {
	switch c {
	case CategoryPhishing, CategoryScam, CategoryMalware, CategoryFakeStore,
		CategoryImpersonation, CategoryCryptoScam, CategoryOther:
		return true
	}
	return false
}

// ReportStatus is the report state machine position. Reports never move
// backward: there is no path from a terminal or confirmed state to pending.
type ReportStatus string

const (
	StatusDraft          ReportStatus = "draft"
	StatusSubmitted      ReportStatus = "submitted"
	StatusBroadcasting   ReportStatus = "broadcasting"
	StatusOnChainPending ReportStatus = "on_chain_pending"
	StatusConfirmed      ReportStatus = "confirmed"
	StatusAbandoned      ReportStatus = "abandoned"
	StatusVerified       ReportStatus = "verified"
	StatusRejected       ReportStatus = "rejected"
)

// Terminal reports whether no further transition can leave s.
func (s ReportStatus) Terminal() bool {
	switch s {
	case StatusAbandoned, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// MaxLedgerRetries is the number of failed ledger submissions after which a
// report is abandoned and must be resubmitted as a new report.
const MaxLedgerRetries = 3

// Report is the authoritative off-chain record of a fraud report. Ledger
// confirmation is applied to it asynchronously by the reconciliation poller.
type Report struct {
	ID               string       `json:"id"`
	TargetRaw        string       `json:"targetRaw"`
	TargetNormalized string       `json:"target"`
	TargetHash       string       `json:"targetHash"`
	ReporterAddress  string       `json:"reporterAddress"`
	Category         Category     `json:"category"`
	Description      string       `json:"description"`
	EvidenceRefs     []string     `json:"evidenceRefs"`
	Signature        string       `json:"-"`
	SignedMessage    string       `json:"-"`
	Status           ReportStatus `json:"status"`
	LedgerTxHash     string       `json:"ledgerTxHash,omitempty"`
	RetryCount       int          `json:"retryCount"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}
