package models

import "time"

// LedgerTxStatus mirrors the finality states reported by the ledger node.
type LedgerTxStatus string

const (
	TxPending   LedgerTxStatus = "pending"
	TxConfirmed LedgerTxStatus = "confirmed"
	TxFailed    LedgerTxStatus = "failed"
)

// Terminal reports whether the ledger considers s final.
func (s LedgerTxStatus) Terminal() bool {
	return s == TxConfirmed || s == TxFailed
}

// LedgerTransaction tracks a broadcast report submission until the ledger
// reaches finality. The hash is immutable; status is mutable until terminal.
type LedgerTransaction struct {
	Hash       string         `json:"hash"`
	ReportID   string         `json:"reportId"`
	Status     LedgerTxStatus `json:"status"`
	GasFee     string         `json:"gasFee,omitempty"`
	ObservedAt time.Time      `json:"observedAt"`
	CreatedAt  time.Time      `json:"createdAt"`
}
