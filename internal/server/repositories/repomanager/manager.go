// Package repomanager hands out repositories bound to a database handle.
// Passing a transactional dbx.DBTX lets services compose several repository
// calls into one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/fraudwatch/fraudwatch/internal/dbx"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/challenges"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/ledgertxs"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/reports"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/reputation"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Challenges(db dbx.DBTX) challenges.Repository
	Reports(db dbx.DBTX) reports.Repository
	LedgerTxs(db dbx.DBTX) ledgertxs.Repository
	Reputation(db dbx.DBTX) reputation.Repository
}
