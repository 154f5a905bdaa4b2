package challenges

import (
	"context"
	"time"

	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

// Repository persists pending auth challenges. Consume must be atomic:
// for any nonce, at most one concurrent caller may receive the challenge.
type Repository interface {
	Create(ctx context.Context, c *models.Challenge) error

	// FindLatestByAddress returns the most recently issued challenge for the
	// address, expired or redeemed or not. common.ErrorNotFound if none
	// exists.
	FindLatestByAddress(ctx context.Context, address string) (*models.Challenge, error)

	// Consume marks the challenge with the given nonce as redeemed and
	// returns it. common.ErrorNotFound means the nonce was never issued or
	// was already consumed by another redeemer. The redeemed row is kept
	// until its window expires, so replays remain detectable.
	Consume(ctx context.Context, nonce string) (*models.Challenge, error)

	// DeleteExpired removes challenges whose window closed before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}
