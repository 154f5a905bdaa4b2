package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/normalize"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
	"github.com/fraudwatch/fraudwatch/internal/server/services"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrInvalidSignature),
		errors.Is(err, common.ErrChallengeExpired),
		errors.Is(err, common.ErrChallengeAlreadyUsed):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrSignatureMismatch):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrConflictingSubmission),
		errors.Is(err, common.ErrInvalidStateTransition):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrReportAbandoned):
		s.writeJSON(w, http.StatusGone, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrorNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrLedgerUnavailable):
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.NewValidationError("body", "malformed json")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAuthChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.identity.IssueChallenge(r.Context(), req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleAuthWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.identity.RedeemChallenge(r.Context(), req.Address, req.Signature)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.reputation.Profile(r.Context(), requestAddress(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL           string   `json:"url"`
		Category      string   `json:"category"`
		Description   string   `json:"description"`
		EvidenceRefs  []string `json:"evidenceRefs"`
		Signature     string   `json:"signature"`
		SignedMessage string   `json:"signedMessage"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rep, err := s.reports.Submit(r.Context(), requestAddress(r.Context()), services.SubmitRequest{
		TargetRaw:     req.URL,
		Category:      models.Category(req.Category),
		Description:   req.Description,
		EvidenceRefs:  req.EvidenceRefs,
		Signature:     req.Signature,
		SignedMessage: req.SignedMessage,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleUserReports(w http.ResponseWriter, r *http.Request) {
	reps, err := s.reports.ListByReporter(r.Context(), requestAddress(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reps)
}

func (s *Server) handleRecentReports(w http.ResponseWriter, r *http.Request) {
	reps, err := s.reports.Recent(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reps)
}

func (s *Server) handleWebsiteCheck(w http.ResponseWriter, r *http.Request) {
	v, err := s.websites.Check(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRecentWebsites(w http.ResponseWriter, r *http.Request) {
	verdicts, err := s.websites.Recent(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verdicts)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	address := requestAddress(r.Context())

	p, err := s.reputation.Profile(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	reps, err := s.reports.ListByReporter(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(reps) > 5 {
		reps = reps[:5]
	}

	// Best effort: the contract keeps its own tally, surfaced alongside the
	// locally derived profile so a drift is visible to the reporter.
	var onChain *int64
	if score, err := s.ledger.GetReporterReputation(r.Context(), address); err == nil {
		onChain = &score
	} else {
		s.logger.Warn(r.Context(), "on-chain reputation lookup failed", "error", err)
	}

	s.writeJSON(w, http.StatusOK, struct {
		*models.ReputationProfile
		RecentReports []*models.Report `json:"recentReports"`
		OnChainScore  *int64           `json:"onChainScore,omitempty"`
	}{p, reps, onChain})
}

func (s *Server) handleEvidencePresign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentHash string `json:"contentHash"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ref, url, err := s.evidence.PresignUpload(r.Context(), req.ContentHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"ref": ref, "uploadUrl": url})
}

// handleBroadcastReport anchors a submitted report on the ledger and records
// the broadcast transaction.
func (s *Server) handleBroadcastReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Get(r.Context(), chi.URLParam(r, "reportId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	evidenceHash := normalize.Keccak256Hex([]byte(strings.Join(rep.EvidenceRefs, ",")))
	txHash, err := s.ledger.ReportWebsite(r.Context(), rep.TargetHash,
		string(rep.Category), rep.Description, evidenceHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rep, err = s.reports.MarkBroadcast(r.Context(), rep.ID, txHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

// handleGovernanceDecide records the governance verdict off-chain first (the
// state machine is authoritative), then mirrors it to the ledger contract.
func (s *Server) handleGovernanceDecide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	reportID := chi.URLParam(r, "reportId")
	rep, err := s.reports.GovernanceDecide(r.Context(), reportID, models.ReportStatus(req.Decision))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.ledger.VerifyReport(r.Context(), reportID, rep.Status == models.StatusVerified); err != nil {
		// The off-chain decision stands; the chain mirror is best effort.
		s.logger.Warn(r.Context(), "ledger verify failed", "report", reportID, "error", err)
	}

	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleLedgerTx(w http.ResponseWriter, r *http.Request) {
	tx, err := s.reports.GetLedgerTransaction(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}
