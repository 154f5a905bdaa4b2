package reports

import (
	"context"

	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

// Tally is the replayed outcome history for one reporter address.
type Tally struct {
	Submitted int // all non-abandoned reports ever created
	Verified  int
	Rejected  int
}

// Repository persists fraud reports. All status changes are compare-and-swap
// on the expected current status: a transition against a stale status is
// rejected (returns false), never queued.
type Repository interface {
	Create(ctx context.Context, r *models.Report) (*models.Report, error)
	Get(ctx context.Context, id string) (*models.Report, error)
	ListByReporter(ctx context.Context, address string) ([]*models.Report, error)
	ListByTargetHash(ctx context.Context, hash string) ([]*models.Report, error)
	ListByStatus(ctx context.Context, status models.ReportStatus) ([]*models.Report, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Report, error)

	// TransitionStatus moves the report from one status to another.
	TransitionStatus(ctx context.Context, id string, from, to models.ReportStatus) (bool, error)

	// AttachLedgerTx records the broadcast transaction hash while moving the
	// report from one status to another.
	AttachLedgerTx(ctx context.Context, id string, from, to models.ReportStatus, txHash string) (bool, error)

	// FailLedgerAttempt clears the transaction reference, increments the
	// retry counter, and moves the report out of on_chain_pending.
	FailLedgerAttempt(ctx context.Context, id string, to models.ReportStatus) (bool, error)

	// TallyByReporter replays the address's report history for reputation
	// recomputation.
	TallyByReporter(ctx context.Context, address string) (Tally, error)
}
