package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/dbx"
	"github.com/fraudwatch/fraudwatch/internal/normalize"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/repomanager"
	"github.com/fraudwatch/fraudwatch/internal/wallet"
)

// minDescriptionLen is the shortest acceptable report description.
const minDescriptionLen = 20

// recentReportsLimit caps the public recent-reports feed.
const recentReportsLimit = 20

// Permissive URL shape: a dotted hostname, optional scheme, optional path.
var urlShape = regexp.MustCompile(`^(?i)(https?://)?[a-z0-9][a-z0-9\-._~%]*\.[a-z0-9][a-z0-9\-._~%]*(/\S*)?$`)

// The report phrase a wallet signs. The two tokens are extracted and
// compared whole against the submission.
var signedMessageShape = regexp.MustCompile(`(?i)\bI am reporting (\S+) as a fraudulent website due to (\S+) activity\b`)

// SubmitRequest carries a validated, wallet-signed report submission.
type SubmitRequest struct {
	TargetRaw     string
	Category      models.Category
	Description   string
	EvidenceRefs  []string
	Signature     string
	SignedMessage string
}

// ReportService owns the report state machine. It coordinates off-chain
// persistence with ledger submission: the off-chain record is the source of
// truth for user-facing state, and ledger outcomes are applied to it as
// asynchronous events.
type ReportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	reputation  *ReputationService
}

// NewReportService constructs a ReportService. The reputation service is
// notified on every governance decision.
func NewReportService(db *sql.DB, m repomanager.RepositoryManager, reputation *ReputationService) *ReportService {
	return &ReportService{db: db, repomanager: m, reputation: reputation}
}

// Submit validates and persists a new report in the submitted state.
// The reporter must have signed signedMessage themselves, and the message
// must name the exact normalized target and category being submitted, so a
// signature cannot be replayed against a different target or category.
func (s *ReportService) Submit(ctx context.Context, reporter string, req SubmitRequest) (*models.Report, error) {
	target, err := normalize.Normalize(req.TargetRaw)
	if err != nil {
		return nil, common.NewValidationError("target", "identifier is empty")
	}
	if !urlShape.MatchString(strings.TrimSpace(req.TargetRaw)) {
		return nil, common.NewValidationError("target", "does not look like a website address")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Description)) < minDescriptionLen {
		return nil, common.NewValidationError("description", fmt.Sprintf("must be at least %d characters", minDescriptionLen))
	}
	if !req.Category.Valid() {
		return nil, common.NewValidationError("category", "unknown category")
	}

	recovered, err := wallet.RecoverAddress(req.SignedMessage, req.Signature)
	if err != nil || !wallet.SameAddress(recovered, reporter) {
		return nil, common.ErrSignatureMismatch
	}

	// Binding check: the signed message must carry the report phrase, and
	// its own target and category tokens must name exactly what is being
	// submitted. Comparing whole tokens keeps a signature for crypto_scam
	// from passing as scam, or one for notexample.com as example.com.
	m := signedMessageShape.FindStringSubmatch(req.SignedMessage)
	if m == nil {
		return nil, common.ErrSignatureMismatch
	}
	signedTarget, err := normalize.Normalize(m[1])
	if err != nil || signedTarget.Hash != target.Hash || !strings.EqualFold(m[2], string(req.Category)) {
		return nil, common.ErrSignatureMismatch
	}

	rep := &models.Report{
		ID:               uuid.NewString(),
		TargetRaw:        req.TargetRaw,
		TargetNormalized: target.Normalized,
		TargetHash:       target.Hash,
		ReporterAddress:  strings.ToLower(reporter),
		Category:         req.Category,
		Description:      strings.TrimSpace(req.Description),
		EvidenceRefs:     req.EvidenceRefs,
		Signature:        req.Signature,
		SignedMessage:    req.SignedMessage,
		Status:           models.StatusSubmitted,
	}

	created, err := s.repomanager.Reports(s.db).Create(ctx, rep)
	if err != nil {
		return nil, fmt.Errorf("error creating report: %v", err)
	}

	return created, nil
}

// MarkBroadcast attaches a broadcast transaction hash and moves the report
// to on_chain_pending. Calling it again with the same hash is a no-op;
// a different hash while a submission is already pending is a conflict.
func (s *ReportService) MarkBroadcast(ctx context.Context, reportID, txHash string) (*models.Report, error) {
	repo := s.repomanager.Reports(s.db)

	rep, err := repo.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	switch rep.Status {
	case models.StatusOnChainPending, models.StatusBroadcasting:
		if rep.LedgerTxHash == txHash {
			return rep, nil
		}
		return nil, common.ErrConflictingSubmission
	case models.StatusSubmitted:
		// proceed
	case models.StatusAbandoned:
		return nil, common.ErrReportAbandoned
	default:
		return nil, common.ErrInvalidStateTransition
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txReports := s.repomanager.Reports(tx)

		ok, err := txReports.AttachLedgerTx(ctx, reportID, models.StatusSubmitted, models.StatusBroadcasting, txHash)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race to a concurrent broadcast.
			return common.ErrConflictingSubmission
		}

		if err := s.repomanager.LedgerTxs(tx).Create(ctx, &models.LedgerTransaction{
			Hash:     txHash,
			ReportID: reportID,
			Status:   models.TxPending,
		}); err != nil {
			return err
		}

		ok, err = txReports.TransitionStatus(ctx, reportID, models.StatusBroadcasting, models.StatusOnChainPending)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrInvalidStateTransition
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrConflictingSubmission) || errors.Is(err, common.ErrInvalidStateTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("error recording broadcast: %v", err)
	}

	return repo.Get(ctx, reportID)
}

// ApplyLedgerOutcome applies a terminal ledger observation to the report.
// confirmed moves it to confirmed; failed returns it to submitted for a
// retry, or abandons it after MaxLedgerRetries failures. Repeated outcomes
// against a report no longer in on_chain_pending are no-ops, so the poller
// may safely observe the same terminal state on every cycle.
func (s *ReportService) ApplyLedgerOutcome(ctx context.Context, reportID string, outcome models.LedgerTxStatus) (*models.Report, error) {
	repo := s.repomanager.Reports(s.db)

	rep, err := repo.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if rep.Status != models.StatusOnChainPending {
		return rep, nil
	}

	switch outcome {
	case models.TxConfirmed:
		if _, err := repo.TransitionStatus(ctx, reportID, models.StatusOnChainPending, models.StatusConfirmed); err != nil {
			return nil, fmt.Errorf("error applying outcome: %v", err)
		}
	case models.TxFailed:
		to := models.StatusSubmitted
		if rep.RetryCount+1 >= models.MaxLedgerRetries {
			to = models.StatusAbandoned
		}
		if _, err := repo.FailLedgerAttempt(ctx, reportID, to); err != nil {
			return nil, fmt.Errorf("error applying outcome: %v", err)
		}
	default:
		return nil, common.ErrInvalidStateTransition
	}

	return repo.Get(ctx, reportID)
}

// GovernanceDecide records the governance verdict on a confirmed report,
// exactly once, and recomputes the reporter's reputation.
func (s *ReportService) GovernanceDecide(ctx context.Context, reportID string, decision models.ReportStatus) (*models.Report, error) {
	if decision != models.StatusVerified && decision != models.StatusRejected {
		return nil, common.NewValidationError("decision", "must be verified or rejected")
	}

	repo := s.repomanager.Reports(s.db)

	rep, err := repo.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	ok, err := repo.TransitionStatus(ctx, reportID, models.StatusConfirmed, decision)
	if err != nil {
		return nil, fmt.Errorf("error recording decision: %v", err)
	}
	if !ok {
		return nil, common.ErrInvalidStateTransition
	}

	if _, err := s.reputation.Recompute(ctx, rep.ReporterAddress); err != nil {
		return nil, fmt.Errorf("error recomputing reputation: %v", err)
	}

	return repo.Get(ctx, reportID)
}

// Get returns one report by id.
func (s *ReportService) Get(ctx context.Context, reportID string) (*models.Report, error) {
	return s.repomanager.Reports(s.db).Get(ctx, reportID)
}

// ListByReporter returns the address's reports, newest first.
func (s *ReportService) ListByReporter(ctx context.Context, address string) ([]*models.Report, error) {
	return s.repomanager.Reports(s.db).ListByReporter(ctx, address)
}

// GetByTarget returns all reports recorded against a target content hash.
func (s *ReportService) GetByTarget(ctx context.Context, targetHash string) ([]*models.Report, error) {
	return s.repomanager.Reports(s.db).ListByTargetHash(ctx, targetHash)
}

// Recent returns the latest reports across all reporters.
func (s *ReportService) Recent(ctx context.Context) ([]*models.Report, error) {
	return s.repomanager.Reports(s.db).ListRecent(ctx, recentReportsLimit)
}

// ListPendingLedger returns every report awaiting ledger finality.
func (s *ReportService) ListPendingLedger(ctx context.Context) ([]*models.Report, error) {
	return s.repomanager.Reports(s.db).ListByStatus(ctx, models.StatusOnChainPending)
}

// RecordLedgerObservation stores a terminal ledger observation on the watched
// transaction. It reports true only for the first observation; later polls
// of the same terminal state return false.
func (s *ReportService) RecordLedgerObservation(ctx context.Context, txHash string, status models.LedgerTxStatus, gasFee string) (bool, error) {
	return s.repomanager.LedgerTxs(s.db).MarkTerminal(ctx, txHash, status, gasFee)
}

// GetLedgerTransaction returns a watched transaction by hash.
func (s *ReportService) GetLedgerTransaction(ctx context.Context, txHash string) (*models.LedgerTransaction, error) {
	return s.repomanager.LedgerTxs(s.db).Get(ctx, txHash)
}
