package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, c *models.Challenge) error {
	query :=
		`INSERT INTO challenges (nonce, address, message, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query,
		c.Nonce, c.Address, c.Message, c.IssuedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) FindLatestByAddress(ctx context.Context, address string) (*models.Challenge, error) {
	query :=
		`SELECT nonce, address, message, issued_at, expires_at, redeemed_at FROM challenges
		 WHERE address = $1
		 ORDER BY issued_at DESC
		 LIMIT 1
		 `

	c := &models.Challenge{}
	var redeemed sql.NullTime
	err := r.db.QueryRowContext(ctx, query, address).
		Scan(&c.Nonce, &c.Address, &c.Message, &c.IssuedAt, &c.ExpiresAt, &redeemed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if redeemed.Valid {
		c.RedeemedAt = &redeemed.Time
	}

	return c, nil
}

// Consume stamps the row as redeemed and returns it in one statement. The
// redeemed_at IS NULL guard makes the row a tombstone: of any number of
// concurrent redeemers exactly one sees the challenge, and later lookups
// still find the consumed nonce.
func (r *PostgresRepository) Consume(ctx context.Context, nonce string) (*models.Challenge, error) {
	query :=
		`UPDATE challenges
		 SET redeemed_at = $2
		 WHERE nonce = $1 AND redeemed_at IS NULL
		 RETURNING nonce, address, message, issued_at, expires_at
		 `

	now := time.Now().UTC()
	c := &models.Challenge{}
	err := r.db.QueryRowContext(ctx, query, nonce, now).
		Scan(&c.Nonce, &c.Address, &c.Message, &c.IssuedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.RedeemedAt = &now

	return c, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	query := `DELETE FROM challenges WHERE expires_at < $1`

	if _, err := r.db.ExecContext(ctx, query, cutoff); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
