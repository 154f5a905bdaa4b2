package poller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/logging"
	"github.com/fraudwatch/fraudwatch/internal/server/ledger"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

type observation struct {
	txHash string
	status models.LedgerTxStatus
	gasFee string
}

type fakeBackend struct {
	mu           sync.Mutex
	pending      []*models.Report
	observations []observation
	outcomes     map[string][]models.LedgerTxStatus
}

func newFakeBackend(pending ...*models.Report) *fakeBackend {
	return &fakeBackend{pending: pending, outcomes: make(map[string][]models.LedgerTxStatus)}
}

func (b *fakeBackend) ListPendingLedger(ctx context.Context) ([]*models.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*models.Report(nil), b.pending...), nil
}

func (b *fakeBackend) RecordLedgerObservation(ctx context.Context, txHash string, status models.LedgerTxStatus, gasFee string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.observations {
		if o.txHash == txHash {
			return false, nil
		}
	}
	b.observations = append(b.observations, observation{txHash, status, gasFee})
	return true, nil
}

func (b *fakeBackend) ApplyLedgerOutcome(ctx context.Context, reportID string, outcome models.LedgerTxStatus) (*models.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outcomes[reportID] = append(b.outcomes[reportID], outcome)
	return &models.Report{ID: reportID}, nil
}

type fakeLedger struct {
	ledger.Client

	mu       sync.Mutex
	receipts map[string]ledger.TxReceipt
	failures int // serve this many unavailability errors first
	calls    int
}

func (c *fakeLedger) TransactionStatus(ctx context.Context, txHash string) (ledger.TxReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failures > 0 {
		c.failures--
		return ledger.TxReceipt{}, common.ErrLedgerUnavailable
	}
	if rcpt, ok := c.receipts[txHash]; ok {
		return rcpt, nil
	}
	return ledger.TxReceipt{Status: models.TxPending}, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pendingReport(id, txHash string) *models.Report {
	return &models.Report{
		ID:           id,
		Status:       models.StatusOnChainPending,
		LedgerTxHash: txHash,
		UpdatedAt:    time.Now().UTC(),
	}
}

func newTestPoller(b *fakeBackend, lc ledger.Client) *Poller {
	return New(b, lc, testLogger(), 10*time.Millisecond, 100*time.Millisecond, time.Hour)
}

func TestSweepAppliesConfirmedReceipt(t *testing.T) {
	backend := newFakeBackend(pendingReport("r1", "0xaaa1"))
	node := &fakeLedger{receipts: map[string]ledger.TxReceipt{
		"0xaaa1": {Status: models.TxConfirmed, GasFee: "21000000000000"},
	}}
	p := newTestPoller(backend, node)

	require.NoError(t, p.Sweep(context.Background()))

	require.Len(t, backend.observations, 1)
	assert.Equal(t, observation{"0xaaa1", models.TxConfirmed, "21000000000000"}, backend.observations[0])
	assert.Equal(t, []models.LedgerTxStatus{models.TxConfirmed}, backend.outcomes["r1"])
}

func TestSweepAppliesFailedReceipt(t *testing.T) {
	backend := newFakeBackend(pendingReport("r1", "0xaaa1"))
	node := &fakeLedger{receipts: map[string]ledger.TxReceipt{
		"0xaaa1": {Status: models.TxFailed},
	}}
	p := newTestPoller(backend, node)

	require.NoError(t, p.Sweep(context.Background()))
	assert.Equal(t, []models.LedgerTxStatus{models.TxFailed}, backend.outcomes["r1"])
}

func TestSweepLeavesPendingAlone(t *testing.T) {
	backend := newFakeBackend(pendingReport("r1", "0xaaa1"))
	node := &fakeLedger{}
	p := newTestPoller(backend, node)

	require.NoError(t, p.Sweep(context.Background()))
	assert.Empty(t, backend.observations)
	assert.Empty(t, backend.outcomes)
}

func TestSweepRepeatedObservationStillApplies(t *testing.T) {
	backend := newFakeBackend(pendingReport("r1", "0xaaa1"))
	node := &fakeLedger{receipts: map[string]ledger.TxReceipt{
		"0xaaa1": {Status: models.TxConfirmed},
	}}
	p := newTestPoller(backend, node)

	require.NoError(t, p.Sweep(context.Background()))
	require.NoError(t, p.Sweep(context.Background()))

	// One recorded observation, but the outcome is re-offered to the state
	// machine, which treats repeats as no-ops.
	assert.Len(t, backend.observations, 1)
	assert.Equal(t, []models.LedgerTxStatus{models.TxConfirmed, models.TxConfirmed}, backend.outcomes["r1"])
}

func TestSweepTimesOutStuckTransaction(t *testing.T) {
	rep := pendingReport("r1", "0xaaa1")
	rep.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	backend := newFakeBackend(rep)
	node := &fakeLedger{}
	p := newTestPoller(backend, node)

	require.NoError(t, p.Sweep(context.Background()))

	require.Len(t, backend.observations, 1)
	assert.Equal(t, models.TxFailed, backend.observations[0].status)
	assert.Equal(t, []models.LedgerTxStatus{models.TxFailed}, backend.outcomes["r1"])
	// The node was never consulted for a transaction already written off.
	assert.Zero(t, node.calls)
}

func TestSweepRetriesUnavailabilityBlips(t *testing.T) {
	backend := newFakeBackend(pendingReport("r1", "0xaaa1"))
	node := &fakeLedger{
		failures: 2,
		receipts: map[string]ledger.TxReceipt{"0xaaa1": {Status: models.TxConfirmed}},
	}
	p := newTestPoller(backend, node)

	require.NoError(t, p.Sweep(context.Background()))
	assert.Equal(t, []models.LedgerTxStatus{models.TxConfirmed}, backend.outcomes["r1"])
}

func TestSweepReportsNodeOutage(t *testing.T) {
	backend := newFakeBackend(pendingReport("r1", "0xaaa1"), pendingReport("r2", "0xbbb2"))
	node := &fakeLedger{failures: 1000}
	p := newTestPoller(backend, node)

	err := p.Sweep(context.Background())
	assert.ErrorIs(t, err, common.ErrLedgerUnavailable)
	assert.Empty(t, backend.outcomes)
}

func TestRunStopsOnCancel(t *testing.T) {
	backend := newFakeBackend(pendingReport("r1", "0xaaa1"))
	node := &fakeLedger{receipts: map[string]ledger.TxReceipt{
		"0xaaa1": {Status: models.TxConfirmed},
	}}
	p := newTestPoller(backend, node)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Let at least one sweep land before shutting down.
	deadline := time.After(2 * time.Second)
	for {
		backend.mu.Lock()
		n := len(backend.outcomes["r1"])
		backend.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no sweep completed in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on cancel")
	}
}
