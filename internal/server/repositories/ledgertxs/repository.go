package ledgertxs

import (
	"context"

	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

// Repository persists ledger transaction watches. The hash is immutable;
// status may only move from pending to a terminal value, once.
type Repository interface {
	Create(ctx context.Context, tx *models.LedgerTransaction) error
	Get(ctx context.Context, hash string) (*models.LedgerTransaction, error)
	GetByReport(ctx context.Context, reportID string) (*models.LedgerTransaction, error)

	// MarkTerminal records the observed terminal ledger state. It applies
	// only while the stored status is still pending, so repeated polls
	// observing the same terminal state drive at most one change.
	MarkTerminal(ctx context.Context, hash string, status models.LedgerTxStatus, gasFee string) (bool, error)
}
