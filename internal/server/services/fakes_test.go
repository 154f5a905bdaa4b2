package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/dbx"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/challenges"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/ledgertxs"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/reports"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/reputation"
)

// In-memory repositories for service tests. The real SQL behavior is covered
// by the repository sqlmock tests; here we only need the same observable
// semantics (compare-and-swap transitions, atomic nonce consumption).

// fakeChallengeRepo mirrors the Postgres repository: redemption stamps the
// row instead of deleting it, and FindLatestByAddress returns redeemed rows.
type fakeChallengeRepo struct {
	mu   sync.Mutex
	seq  int
	rows map[string]*challengeRow
}

type challengeRow struct {
	challenge models.Challenge
	seq       int
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{rows: make(map[string]*challengeRow)}
}

func (r *fakeChallengeRepo) Create(ctx context.Context, c *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.rows[c.Nonce] = &challengeRow{challenge: *c, seq: r.seq}
	return nil
}

func (r *fakeChallengeRepo) FindLatestByAddress(ctx context.Context, address string) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *challengeRow
	for _, row := range r.rows {
		if !strings.EqualFold(row.challenge.Address, address) {
			continue
		}
		if latest == nil || row.seq > latest.seq {
			latest = row
		}
	}
	if latest == nil {
		return nil, common.ErrorNotFound
	}
	cp := latest.challenge
	return &cp, nil
}

func (r *fakeChallengeRepo) Consume(ctx context.Context, nonce string) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[nonce]
	if !ok || row.challenge.Redeemed() {
		return nil, common.ErrorNotFound
	}
	now := time.Now().UTC()
	row.challenge.RedeemedAt = &now
	cp := row.challenge
	return &cp, nil
}

func (r *fakeChallengeRepo) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for nonce, row := range r.rows {
		if row.challenge.ExpiresAt.Before(cutoff) {
			delete(r.rows, nonce)
		}
	}
	return nil
}

type fakeReportRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Report
	seq  int
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{rows: make(map[string]*models.Report)}
}

func (r *fakeReportRepo) put(rep *models.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	cp := *rep
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC().Add(time.Duration(r.seq) * time.Millisecond)
	}
	cp.UpdatedAt = cp.CreatedAt
	r.rows[cp.ID] = &cp
}

func (r *fakeReportRepo) Create(ctx context.Context, rep *models.Report) (*models.Report, error) {
	r.put(rep)
	return r.Get(ctx, rep.ID)
}

func (r *fakeReportRepo) Get(ctx context.Context, id string) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rep
	return &cp, nil
}

func (r *fakeReportRepo) list(match func(*models.Report) bool) []*models.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Report
	for _, rep := range r.rows {
		if match(rep) {
			cp := *rep
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeReportRepo) ListByReporter(ctx context.Context, address string) ([]*models.Report, error) {
	return r.list(func(rep *models.Report) bool {
		return strings.EqualFold(rep.ReporterAddress, address)
	}), nil
}

func (r *fakeReportRepo) ListByTargetHash(ctx context.Context, hash string) ([]*models.Report, error) {
	return r.list(func(rep *models.Report) bool { return rep.TargetHash == hash }), nil
}

func (r *fakeReportRepo) ListByStatus(ctx context.Context, status models.ReportStatus) ([]*models.Report, error) {
	return r.list(func(rep *models.Report) bool { return rep.Status == status }), nil
}

func (r *fakeReportRepo) ListRecent(ctx context.Context, limit int) ([]*models.Report, error) {
	out := r.list(func(*models.Report) bool { return true })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeReportRepo) TransitionStatus(ctx context.Context, id string, from, to models.ReportStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.rows[id]
	if !ok || rep.Status != from {
		return false, nil
	}
	rep.Status = to
	rep.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *fakeReportRepo) AttachLedgerTx(ctx context.Context, id string, from, to models.ReportStatus, txHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.rows[id]
	if !ok || rep.Status != from {
		return false, nil
	}
	rep.Status = to
	rep.LedgerTxHash = txHash
	rep.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *fakeReportRepo) FailLedgerAttempt(ctx context.Context, id string, to models.ReportStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.rows[id]
	if !ok || rep.Status != models.StatusOnChainPending {
		return false, nil
	}
	rep.Status = to
	rep.LedgerTxHash = ""
	rep.RetryCount++
	rep.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *fakeReportRepo) TallyByReporter(ctx context.Context, address string) (reports.Tally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t reports.Tally
	for _, rep := range r.rows {
		if !strings.EqualFold(rep.ReporterAddress, address) {
			continue
		}
		switch rep.Status {
		case models.StatusAbandoned:
		case models.StatusVerified:
			t.Submitted++
			t.Verified++
		case models.StatusRejected:
			t.Submitted++
			t.Rejected++
		default:
			t.Submitted++
		}
	}
	return t, nil
}

type fakeLedgerTxRepo struct {
	mu   sync.Mutex
	rows map[string]*models.LedgerTransaction
}

func newFakeLedgerTxRepo() *fakeLedgerTxRepo {
	return &fakeLedgerTxRepo{rows: make(map[string]*models.LedgerTransaction)}
}

func (r *fakeLedgerTxRepo) Create(ctx context.Context, tx *models.LedgerTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tx
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.rows[cp.Hash] = &cp
	return nil
}

func (r *fakeLedgerTxRepo) Get(ctx context.Context, hash string) (*models.LedgerTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.rows[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *fakeLedgerTxRepo) GetByReport(ctx context.Context, reportID string) (*models.LedgerTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.rows {
		if tx.ReportID == reportID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeLedgerTxRepo) MarkTerminal(ctx context.Context, hash string, status models.LedgerTxStatus, gasFee string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.rows[hash]
	if !ok || tx.Status != models.TxPending {
		return false, nil
	}
	tx.Status = status
	tx.GasFee = gasFee
	tx.ObservedAt = time.Now().UTC()
	return true, nil
}

type fakeReputationRepo struct {
	mu   sync.Mutex
	rows map[string]*models.ReputationProfile
}

func newFakeReputationRepo() *fakeReputationRepo {
	return &fakeReputationRepo{rows: make(map[string]*models.ReputationProfile)}
}

func (r *fakeReputationRepo) Get(ctx context.Context, address string) (*models.ReputationProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[strings.ToLower(address)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeReputationRepo) Upsert(ctx context.Context, p *models.ReputationProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.rows[strings.ToLower(p.Address)] = &cp
	return nil
}

type fakeRepoManager struct {
	challenges *fakeChallengeRepo
	reports    *fakeReportRepo
	ledgerTxs  *fakeLedgerTxRepo
	reputation *fakeReputationRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		challenges: newFakeChallengeRepo(),
		reports:    newFakeReportRepo(),
		ledgerTxs:  newFakeLedgerTxRepo(),
		reputation: newFakeReputationRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *fakeRepoManager) Challenges(db dbx.DBTX) challenges.Repository { return m.challenges }
func (m *fakeRepoManager) Reports(db dbx.DBTX) reports.Repository      { return m.reports }
func (m *fakeRepoManager) LedgerTxs(db dbx.DBTX) ledgertxs.Repository  { return m.ledgerTxs }
func (m *fakeRepoManager) Reputation(db dbx.DBTX) reputation.Repository {
	return m.reputation
}

// newMockDB returns a *sql.DB whose only job in service tests is to open and
// close transactions; all row access goes through the fakes.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}
