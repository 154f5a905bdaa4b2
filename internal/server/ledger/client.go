// Package ledger defines the port to the external distributed ledger that
// anchors verified fraud reports, plus a JSON-RPC adapter for an EVM-style
// node hosting the fraud registry contract.
//
// The ledger provides eventual finality only: submissions return a
// transaction hash immediately, and the reconciliation poller discovers the
// terminal outcome later via TransactionStatus.
package ledger

import (
	"context"

	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

// TxReceipt is the observed finality state of a broadcast transaction.
type TxReceipt struct {
	Status models.LedgerTxStatus
	GasFee string
}

// WebsiteState is the on-chain aggregate for a target hash.
type WebsiteState int

const (
	WebsiteStateUnknown WebsiteState = iota
	WebsiteStateSafe
	WebsiteStateFraudulent
)

// Client is the contract surface consumed by the server. Implementations
// must treat all calls as suspending operations honoring ctx cancellation.
type Client interface {
	// ReportWebsite broadcasts a new report and returns the transaction hash.
	ReportWebsite(ctx context.Context, targetHash string, category, description, evidenceHash string) (string, error)

	// CheckWebsite returns the registry's current aggregate for the target.
	CheckWebsite(ctx context.Context, targetHash string) (WebsiteState, error)

	// GetReports returns the on-chain report ids recorded for the target.
	GetReports(ctx context.Context, targetHash string) ([]string, error)

	// VerifyReport records a governance decision on-chain.
	VerifyReport(ctx context.Context, reportID string, isValid bool) (string, error)

	// GetReporterReputation returns the contract-side score for an address.
	GetReporterReputation(ctx context.Context, address string) (int64, error)

	// TransactionStatus reports the finality of a broadcast transaction.
	// A transaction the node no longer knows is pending until the caller's
	// own timeout policy declares it dropped.
	TransactionStatus(ctx context.Context, txHash string) (TxReceipt, error)
}
