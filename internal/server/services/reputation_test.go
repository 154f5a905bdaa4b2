package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

func seedReports(m *fakeRepoManager, address string, status models.ReportStatus, n int) {
	for i := 0; i < n; i++ {
		m.reports.put(&models.Report{
			ID:              uuid.NewString(),
			ReporterAddress: address,
			TargetHash:      fmt.Sprintf("0xhash%s%d", status, i),
			Category:        models.CategoryScam,
			Status:          status,
		})
	}
}

func TestRecomputeScoreFormula(t *testing.T) {
	tests := []struct {
		name      string
		verified  int
		rejected  int
		wantScore int
	}{
		{name: "no history", verified: 0, rejected: 0, wantScore: 0},
		{name: "verified only", verified: 3, rejected: 0, wantScore: 15},
		{name: "mixed", verified: 4, rejected: 3, wantScore: 14},
		{name: "floored at zero", verified: 1, rejected: 10, wantScore: 0},
		{name: "capped at hundred", verified: 30, rejected: 0, wantScore: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _ := newMockDB(t)
			m := newFakeRepoManager()
			svc := NewReputationService(db, m, testConfig())

			addr := "0xAbCd000000000000000000000000000000000001"
			seedReports(m, addr, models.StatusVerified, tt.verified)
			seedReports(m, addr, models.StatusRejected, tt.rejected)
			seedReports(m, addr, models.StatusSubmitted, 2)

			p, err := svc.Recompute(context.Background(), addr)
			require.NoError(t, err)

			assert.Equal(t, tt.wantScore, p.Score)
			assert.Equal(t, tt.verified, p.ReportsVerified)
			assert.Equal(t, tt.rejected, p.ReportsRejected)
			assert.Equal(t, tt.verified+tt.rejected+2, p.ReportsSubmitted)
			assert.Equal(t, tt.verified*10, p.Tokens)
		})
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	db, _ := newMockDB(t)
	m := newFakeRepoManager()
	svc := NewReputationService(db, m, testConfig())

	addr := "0xabcd000000000000000000000000000000000002"
	seedReports(m, addr, models.StatusVerified, 2)

	first, err := svc.Recompute(context.Background(), addr)
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background(), addr)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.ReportsSubmitted, second.ReportsSubmitted)
	assert.Equal(t, first.Tokens, second.Tokens)
}

func TestRecomputeExcludesAbandoned(t *testing.T) {
	db, _ := newMockDB(t)
	m := newFakeRepoManager()
	svc := NewReputationService(db, m, testConfig())

	addr := "0xabcd000000000000000000000000000000000003"
	seedReports(m, addr, models.StatusAbandoned, 4)
	seedReports(m, addr, models.StatusVerified, 1)

	p, err := svc.Recompute(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReportsSubmitted)
	assert.Equal(t, 5, p.Score)
}

func TestRecomputeCarriesUpvotes(t *testing.T) {
	db, _ := newMockDB(t)
	m := newFakeRepoManager()
	svc := NewReputationService(db, m, testConfig())

	addr := "0xabcd000000000000000000000000000000000004"
	require.NoError(t, m.reputation.Upsert(context.Background(), &models.ReputationProfile{
		Address:         addr,
		UpvotesReceived: 7,
	}))
	seedReports(m, addr, models.StatusVerified, 1)

	p, err := svc.Recompute(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 7, p.UpvotesReceived)
	assert.Equal(t, 5, p.Score)
}

func TestProfileDerivesWhenMissing(t *testing.T) {
	db, _ := newMockDB(t)
	m := newFakeRepoManager()
	svc := NewReputationService(db, m, testConfig())

	addr := "0xAbCd000000000000000000000000000000000005"
	seedReports(m, addr, models.StatusVerified, 1)

	p, err := svc.Profile(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Score)

	// The derived row is now stored; a second lookup reads it back.
	again, err := svc.Profile(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, p.Score, again.Score)
}
