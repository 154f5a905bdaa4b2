package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/fraudwatch/fraudwatch/internal/dbx"
	"github.com/fraudwatch/fraudwatch/internal/server/migrations"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/challenges"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/ledgertxs"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/reports"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/reputation"
)

type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

func (m *PostgresRepositoryManager) Challenges(db dbx.DBTX) challenges.Repository {
	return challenges.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Reports(db dbx.DBTX) reports.Repository {
	return reports.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) LedgerTxs(db dbx.DBTX) ledgertxs.Repository {
	return ledgertxs.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Reputation(db dbx.DBTX) reputation.Repository {
	return reputation.NewPostgresRepository(db)
}
