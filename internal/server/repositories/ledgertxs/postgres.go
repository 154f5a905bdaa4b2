package ledgertxs

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

func (r *PostgresRepository) Create(ctx context.Context, tx *models.LedgerTransaction) error {
	query :=
		`INSERT INTO ledger_transactions (hash, report_id, status, gas_fee)
		 VALUES ($1, $2, $3, $4)
		 `

	_, err := r.db.ExecContext(ctx, query, tx.Hash, tx.ReportID, tx.Status, tx.GasFee)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, hash string) (*models.LedgerTransaction, error) {
	query :=
		`SELECT hash, report_id, status, gas_fee, observed_at, created_at
		 FROM ledger_transactions
		 WHERE hash = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, hash))
}

func (r *PostgresRepository) GetByReport(ctx context.Context, reportID string) (*models.LedgerTransaction, error) {
	query :=
		`SELECT hash, report_id, status, gas_fee, observed_at, created_at
		 FROM ledger_transactions
		 WHERE report_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, reportID))
}

func (r *PostgresRepository) MarkTerminal(ctx context.Context, hash string, status models.LedgerTxStatus, gasFee string) (bool, error) {
	query :=
		`UPDATE ledger_transactions SET status = $2, gas_fee = $3, observed_at = now()
		 WHERE hash = $1 AND status = $4
		 `

	res, err := r.db.ExecContext(ctx, query, hash, status, gasFee, models.TxPending)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.LedgerTransaction, error) {
	tx := &models.LedgerTransaction{}
	err := row.Scan(&tx.Hash, &tx.ReportID, &tx.Status, &tx.GasFee, &tx.ObservedAt, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tx, nil
}
