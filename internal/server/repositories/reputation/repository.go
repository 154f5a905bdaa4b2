package reputation

import (
	"context"

	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

// Repository stores derived reputation profiles. Rows are always written
// whole via Upsert after replaying the reporter's history, never incremented
// in place.
type Repository interface {
	Get(ctx context.Context, address string) (*models.ReputationProfile, error)
	Upsert(ctx context.Context, p *models.ReputationProfile) error
}
