package reports

import (
	"context"
	"database/sql"
	"encoding/json"
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

const reportColumns = `id, target_raw, target_normalized, target_hash, reporter_address,
	category, description, evidence_refs, signature, signed_message,
	status, ledger_tx_hash, retry_count, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, rep *models.Report) (*models.Report, error) {
	refs, err := json.Marshal(rep.EvidenceRefs)
	if err != nil {
		return nil, fmt.Errorf("evidence refs encode error: %w", err)
	}

	query :=
		`INSERT INTO reports (id, target_raw, target_normalized, target_hash, reporter_address,
			category, description, evidence_refs, signature, signed_message, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		rep.ID, rep.TargetRaw, rep.TargetNormalized, rep.TargetHash, rep.ReporterAddress,
		rep.Category, rep.Description, string(refs), rep.Signature, rep.SignedMessage,
		rep.Status).Scan(&rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rep, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	rep, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rep, nil
}

func (r *PostgresRepository) ListByReporter(ctx context.Context, address string) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + `
		 FROM reports
		 WHERE lower(reporter_address) = lower($1)
		 ORDER BY created_at DESC`

	return r.queryReports(ctx, query, address)
}

func (r *PostgresRepository) ListByTargetHash(ctx context.Context, hash string) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + `
		 FROM reports
		 WHERE target_hash = $1
		 ORDER BY created_at DESC`

	return r.queryReports(ctx, query, hash)
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status models.ReportStatus) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + `
		 FROM reports
		 WHERE status = $1
		 ORDER BY updated_at`

	return r.queryReports(ctx, query, status)
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + `
		 FROM reports
		 ORDER BY created_at DESC
		 LIMIT $1`

	return r.queryReports(ctx, query, limit)
}

func (r *PostgresRepository) TransitionStatus(ctx context.Context, id string, from, to models.ReportStatus) (bool, error) {
	query :=
		`UPDATE reports SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2
		 `

	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return oneRowAffected(res)
}

func (r *PostgresRepository) AttachLedgerTx(ctx context.Context, id string, from, to models.ReportStatus, txHash string) (bool, error) {
	query :=
		`UPDATE reports SET status = $3, ledger_tx_hash = $4, updated_at = now()
		 WHERE id = $1 AND status = $2
		 `

	res, err := r.db.ExecContext(ctx, query, id, from, to, txHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return oneRowAffected(res)
}

func (r *PostgresRepository) FailLedgerAttempt(ctx context.Context, id string, to models.ReportStatus) (bool, error) {
	query :=
		`UPDATE reports SET status = $2, ledger_tx_hash = NULL, retry_count = retry_count + 1, updated_at = now()
		 WHERE id = $1 AND status = $3
		 `

	res, err := r.db.ExecContext(ctx, query, id, to, models.StatusOnChainPending)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return oneRowAffected(res)
}

func (r *PostgresRepository) TallyByReporter(ctx context.Context, address string) (Tally, error) {
	query :=
		`SELECT
			count(*) FILTER (WHERE status <> $2),
			count(*) FILTER (WHERE status = $3),
			count(*) FILTER (WHERE status = $4)
		 FROM reports
		 WHERE lower(reporter_address) = lower($1)
		 `

	var t Tally
	err := r.db.QueryRowContext(ctx, query, address,
		models.StatusAbandoned, models.StatusVerified, models.StatusRejected).
		Scan(&t.Submitted, &t.Verified, &t.Rejected)
	if err != nil {
		return Tally{}, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) queryReports(ctx context.Context, query string, args ...any) ([]*models.Report, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	rep := &models.Report{}
	var refs string
	var txHash sql.NullString

	err := row.Scan(&rep.ID, &rep.TargetRaw, &rep.TargetNormalized, &rep.TargetHash,
		&rep.ReporterAddress, &rep.Category, &rep.Description, &refs,
		&rep.Signature, &rep.SignedMessage, &rep.Status, &txHash,
		&rep.RetryCount, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(refs), &rep.EvidenceRefs); err != nil {
		return nil, fmt.Errorf("evidence refs decode error: %w", err)
	}
	rep.LedgerTxHash = txHash.String

	return rep, nil
}

func oneRowAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
