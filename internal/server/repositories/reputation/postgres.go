package reputation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/dbx"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, address string) (*models.ReputationProfile, error) {
	query :=
		`SELECT address, reports_submitted, reports_verified, reports_rejected,
			upvotes_received, score, tokens, updated_at
		 FROM reputation_profiles
		 WHERE lower(address) = lower($1)
		 `

	p := &models.ReputationProfile{}
	err := r.db.QueryRowContext(ctx, query, address).
		Scan(&p.Address, &p.ReportsSubmitted, &p.ReportsVerified, &p.ReportsRejected,
			&p.UpvotesReceived, &p.Score, &p.Tokens, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *models.ReputationProfile) error {
	query :=
		`INSERT INTO reputation_profiles
			(address, reports_submitted, reports_verified, reports_rejected,
			 upvotes_received, score, tokens, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (address) DO UPDATE SET
			reports_submitted = EXCLUDED.reports_submitted,
			reports_verified  = EXCLUDED.reports_verified,
			reports_rejected  = EXCLUDED.reports_rejected,
			upvotes_received  = EXCLUDED.upvotes_received,
			score             = EXCLUDED.score,
			tokens            = EXCLUDED.tokens,
			updated_at        = now()
		 `

	_, err := r.db.ExecContext(ctx, query,
		p.Address, p.ReportsSubmitted, p.ReportsVerified, p.ReportsRejected,
		p.UpvotesReceived, p.Score, p.Tokens)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
