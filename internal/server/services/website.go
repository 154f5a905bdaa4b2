package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/normalize"
	"github.com/fraudwatch/fraudwatch/internal/server/ledger"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/repomanager"
)

// dangerConfirmedThreshold: this many confirmed-but-undecided reports mark a
// target dangerous even before governance weighs in.
const dangerConfirmedThreshold = 3

// WebsiteService aggregates a target's reports into a safe/danger/unknown
// verdict. When local records are inconclusive it consults the on-chain
// registry, which may know about reports anchored by other deployments.
type WebsiteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	ledger      ledger.Client
}

func NewWebsiteService(db *sql.DB, m repomanager.RepositoryManager, lc ledger.Client) *WebsiteService {
	return &WebsiteService{db: db, repomanager: m, ledger: lc}
}

// Check normalizes rawURL and derives the current verdict for its target.
func (s *WebsiteService) Check(ctx context.Context, rawURL string) (*models.WebsiteVerdict, error) {
	target, err := normalize.Normalize(rawURL)
	if err != nil {
		return nil, common.NewValidationError("url", "identifier is empty")
	}

	reps, err := s.repomanager.Reports(s.db).ListByTargetHash(ctx, target.Hash)
	if err != nil {
		return nil, fmt.Errorf("error loading reports: %v", err)
	}

	verdict := &models.WebsiteVerdict{
		Target:      target.Normalized,
		TargetHash:  target.Hash,
		Status:      s.aggregate(reps),
		ReportCount: len(reps),
		Threats:     threats(reps),
		CheckedAt:   time.Now().UTC(),
	}

	if verdict.Status == models.WebsiteUnknown && s.ledger != nil {
		// Best effort: a ledger hiccup must not fail a status check.
		if state, err := s.ledger.CheckWebsite(ctx, target.Hash); err == nil {
			switch state {
			case ledger.WebsiteStateFraudulent:
				verdict.Status = models.WebsiteDanger
			case ledger.WebsiteStateSafe:
				verdict.Status = models.WebsiteSafe
			}
		}
		// Reports anchored by other deployments are visible only on chain.
		if verdict.ReportCount == 0 {
			if ids, err := s.ledger.GetReports(ctx, target.Hash); err == nil {
				verdict.ReportCount = len(ids)
			}
		}
	}

	return verdict, nil
}

// Recent returns verdicts for the most recently decided targets.
func (s *WebsiteService) Recent(ctx context.Context) ([]*models.WebsiteVerdict, error) {
	reps, err := s.repomanager.Reports(s.db).ListRecent(ctx, recentReportsLimit)
	if err != nil {
		return nil, fmt.Errorf("error loading reports: %v", err)
	}

	// One verdict per target, newest first.
	seen := make(map[string]bool)
	var out []*models.WebsiteVerdict
	for _, rep := range reps {
		if seen[rep.TargetHash] {
			continue
		}
		seen[rep.TargetHash] = true

		v, err := s.Check(ctx, rep.TargetNormalized)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}

func (s *WebsiteService) aggregate(reps []*models.Report) models.WebsiteStatus {
	var verified, confirmed, rejected int
	for _, rep := range reps {
		switch rep.Status {
		case models.StatusVerified:
			verified++
		case models.StatusConfirmed:
			confirmed++
		case models.StatusRejected:
			rejected++
		}
	}

	switch {
	case verified > 0 || confirmed >= dangerConfirmedThreshold:
		return models.WebsiteDanger
	case len(reps) > 0 && rejected == len(reps):
		return models.WebsiteSafe
	default:
		return models.WebsiteUnknown
	}
}

func threats(reps []*models.Report) []models.Category {
	seen := make(map[models.Category]bool)
	var out []models.Category
	for _, rep := range reps {
		if rep.Status != models.StatusVerified && rep.Status != models.StatusConfirmed {
			continue
		}
		if seen[rep.Category] {
			continue
		}
		seen[rep.Category] = true
		out = append(out, rep.Category)
	}
	return out
}
