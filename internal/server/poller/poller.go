// Package poller reconciles off-chain report state with ledger finality.
// Broadcast submissions are eventually consistent: the ledger hands back a
// transaction hash immediately, and the poller discovers the terminal
// outcome later by polling receipts.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/logging"
	"github.com/fraudwatch/fraudwatch/internal/server/ledger"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
)

// receiptRetries bounds in-sweep retries against a flaky node before the
// whole loop backs off.
const receiptRetries = 3

// ReportBackend is the slice of report operations the poller drives.
type ReportBackend interface {
	// ListPendingLedger returns every report awaiting ledger finality.
	ListPendingLedger(ctx context.Context) ([]*models.Report, error)

	// RecordLedgerObservation stores a terminal observation on the watched
	// transaction; true only on the first observation.
	RecordLedgerObservation(ctx context.Context, txHash string, status models.LedgerTxStatus, gasFee string) (bool, error)

	// ApplyLedgerOutcome advances the report state machine for the outcome.
	ApplyLedgerOutcome(ctx context.Context, reportID string, outcome models.LedgerTxStatus) (*models.Report, error)
}

// Poller periodically sweeps reports stuck in on_chain_pending and applies
// the ledger's verdict. Every step it takes is idempotent, so overlapping
// observations of the same transaction are harmless.
type Poller struct {
	backend        ReportBackend
	ledger         ledger.Client
	logger         logging.Logger
	interval       time.Duration
	backoffCap     time.Duration
	pendingTimeout time.Duration
}

func New(backend ReportBackend, lc ledger.Client, logger logging.Logger,
	interval, backoffCap, pendingTimeout time.Duration) *Poller {
	return &Poller{
		backend:        backend,
		ledger:         lc,
		logger:         logger,
		interval:       interval,
		backoffCap:     backoffCap,
		pendingTimeout: pendingTimeout,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. While the
// ledger node is unreachable the delay between sweeps grows exponentially up
// to backoffCap, then snaps back to the base interval on the first success.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info(ctx, "reconciliation poller started", "interval", p.interval)

	backoff := p.newBackoff()
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "reconciliation poller stopped")
			return nil
		case <-timer.C:
		}

		delay := p.interval
		if err := p.Sweep(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			delay, _ = backoff.Next()
			p.logger.Warn(ctx, "sweep failed, backing off", "delay", delay, "error", err)
		} else {
			backoff = p.newBackoff()
		}
		timer.Reset(delay)
	}
}

func (p *Poller) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(p.backoffCap, retry.NewExponential(p.interval))
}

// Sweep reconciles every pending report once. It returns an error only when
// the ledger was unreachable, which the caller answers with backoff; a
// report that is simply still pending is not an error.
func (p *Poller) Sweep(ctx context.Context) error {
	pending, err := p.backend.ListPendingLedger(ctx)
	if err != nil {
		return fmt.Errorf("error listing pending reports: %w", err)
	}

	var unreachable error
	for _, rep := range pending {
		if err := p.reconcile(ctx, rep); err != nil {
			if errors.Is(err, common.ErrLedgerUnavailable) {
				unreachable = err
				continue
			}
			p.logger.Error(ctx, "error reconciling report", "report", rep.ID, "error", err)
		}
	}
	return unreachable
}

func (p *Poller) reconcile(ctx context.Context, rep *models.Report) error {
	if rep.LedgerTxHash == "" {
		return fmt.Errorf("pending report %s has no transaction hash", rep.ID)
	}

	// A transaction stuck beyond the timeout is presumed dropped by the
	// network and counts as a failed attempt.
	if time.Since(rep.UpdatedAt) > p.pendingTimeout {
		p.logger.Warn(ctx, "transaction timed out, presuming dropped",
			"report", rep.ID, "tx", rep.LedgerTxHash)
		return p.applyOutcome(ctx, rep, models.TxFailed, "")
	}

	receipt, err := p.receipt(ctx, rep.LedgerTxHash)
	if err != nil {
		return err
	}
	if !receipt.Status.Terminal() {
		return nil
	}

	return p.applyOutcome(ctx, rep, receipt.Status, receipt.GasFee)
}

func (p *Poller) applyOutcome(ctx context.Context, rep *models.Report, outcome models.LedgerTxStatus, gasFee string) error {
	first, err := p.backend.RecordLedgerObservation(ctx, rep.LedgerTxHash, outcome, gasFee)
	if err != nil {
		return fmt.Errorf("error recording observation: %w", err)
	}
	if first {
		p.logger.Info(ctx, "ledger outcome observed",
			"report", rep.ID, "tx", rep.LedgerTxHash, "outcome", outcome)
	}

	// Applied even for repeat observations: the state machine treats an
	// already-applied outcome as a no-op, and this closes the gap where a
	// crash landed between recording and applying.
	if _, err := p.backend.ApplyLedgerOutcome(ctx, rep.ID, outcome); err != nil {
		return fmt.Errorf("error applying outcome: %w", err)
	}
	return nil
}

// receipt polls the node for the transaction's finality state, retrying
// short unavailability blips before giving up on this sweep.
func (p *Poller) receipt(ctx context.Context, txHash string) (ledger.TxReceipt, error) {
	var rcpt ledger.TxReceipt

	backoff := retry.WithMaxRetries(receiptRetries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		rcpt, err = p.ledger.TransactionStatus(ctx, txHash)
		if errors.Is(err, common.ErrLedgerUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
	return rcpt, err
}
