package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/server/config"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/repomanager"
)

const maxScore = 100

// ReputationService derives reporter trust scores from governance outcomes.
// A profile is always rebuilt by replaying the reporter's report history, so
// the stored row can never drift from its source reports.
type ReputationService struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	verifiedWeight int
	rejectedWeight int
	tokenReward    int
}

// NewReputationService constructs a ReputationService with the configured
// policy weights.
func NewReputationService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *ReputationService {
	return &ReputationService{
		db:             db,
		repomanager:    m,
		verifiedWeight: cfg.VerifiedWeight,
		rejectedWeight: cfg.RejectedWeight,
		tokenReward:    cfg.TokenReward,
	}
}

// Recompute replays the address's report history and upserts the derived
// profile. It is idempotent: recomputing twice yields the same row.
func (s *ReputationService) Recompute(ctx context.Context, address string) (*models.ReputationProfile, error) {
	address = strings.ToLower(address)

	tally, err := s.repomanager.Reports(s.db).TallyByReporter(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("error replaying report history: %v", err)
	}

	repo := s.repomanager.Reputation(s.db)

	// Upvotes arrive from the community endpoints, not from report replay;
	// carry the current counter through.
	upvotes := 0
	if existing, err := repo.Get(ctx, address); err == nil {
		upvotes = existing.UpvotesReceived
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error loading profile: %v", err)
	}

	p := &models.ReputationProfile{
		Address:          address,
		ReportsSubmitted: tally.Submitted,
		ReportsVerified:  tally.Verified,
		ReportsRejected:  tally.Rejected,
		UpvotesReceived:  upvotes,
		Score:            s.score(tally.Verified, tally.Rejected),
		Tokens:           tally.Verified * s.tokenReward,
		UpdatedAt:        time.Now().UTC(),
	}

	if err := repo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("error storing profile: %v", err)
	}

	return p, nil
}

// Profile returns the stored profile for an address, deriving a fresh one if
// none has been computed yet.
func (s *ReputationService) Profile(ctx context.Context, address string) (*models.ReputationProfile, error) {
	p, err := s.repomanager.Reputation(s.db).Get(ctx, strings.ToLower(address))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.Recompute(ctx, address)
		}
		return nil, fmt.Errorf("error loading profile: %v", err)
	}

	return p, nil
}

// score is monotonic in the verified count, floored at 0 and capped at
// maxScore. The weights are policy parameters, not structure.
func (s *ReputationService) score(verified, rejected int) int {
	v := verified*s.verifiedWeight - rejected*s.rejectedWeight
	if v < 0 {
		return 0
	}
	if v > maxScore {
		return maxScore
	}
	return v
}
