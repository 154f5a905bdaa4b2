// Package http exposes the public JSON API: wallet authentication, report
// submission and lookup, website status checks, evidence presigning, and the
// governance/ledger endpoints.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fraudwatch/fraudwatch/internal/logging"
	"github.com/fraudwatch/fraudwatch/internal/server/config"
	"github.com/fraudwatch/fraudwatch/internal/server/ledger"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
	"github.com/fraudwatch/fraudwatch/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// Service slices consumed by the handlers; the concrete implementations live
// in internal/server/services.

type identitySvc interface {
	IssueChallenge(ctx context.Context, address string) (*models.Challenge, error)
	RedeemChallenge(ctx context.Context, address, signature string) (*models.Session, error)
}

type reportSvc interface {
	Submit(ctx context.Context, reporter string, req services.SubmitRequest) (*models.Report, error)
	MarkBroadcast(ctx context.Context, reportID, txHash string) (*models.Report, error)
	GovernanceDecide(ctx context.Context, reportID string, decision models.ReportStatus) (*models.Report, error)
	Get(ctx context.Context, reportID string) (*models.Report, error)
	ListByReporter(ctx context.Context, address string) ([]*models.Report, error)
	Recent(ctx context.Context) ([]*models.Report, error)
	GetLedgerTransaction(ctx context.Context, txHash string) (*models.LedgerTransaction, error)
}

type reputationSvc interface {
	Profile(ctx context.Context, address string) (*models.ReputationProfile, error)
}

type websiteSvc interface {
	Check(ctx context.Context, rawURL string) (*models.WebsiteVerdict, error)
	Recent(ctx context.Context) ([]*models.WebsiteVerdict, error)
}

type evidenceSvc interface {
	PresignUpload(ctx context.Context, contentHash string) (string, string, error)
}

type Server struct {
	address    string
	logger     logging.Logger
	identity   identitySvc
	reports    reportSvc
	reputation reputationSvc
	websites   websiteSvc
	evidence   evidenceSvc
	ledger     ledger.Client
	jwtSecret  []byte
	governance map[string]bool
}

func NewServer(cfg *config.Config, l logging.Logger,
	identity identitySvc,
	reports reportSvc,
	reputation reputationSvc,
	websites websiteSvc,
	evidence evidenceSvc,
	lc ledger.Client) *Server {

	governance := make(map[string]bool, len(cfg.GovernanceAddresses))
	for _, addr := range cfg.GovernanceAddresses {
		governance[strings.ToLower(addr)] = true
	}

	return &Server{
		address:    cfg.EndpointAddr,
		logger:     l.With("module", "http_server"),
		identity:   identity,
		reports:    reports,
		reputation: reputation,
		websites:   websites,
		evidence:   evidence,
		ledger:     lc,
		jwtSecret:  []byte(cfg.SecretKey),
		governance: governance,
	}
}

// Routes mounts the API under /api.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/challenge", s.handleAuthChallenge)
		r.Post("/auth/wallet", s.handleAuthWallet)
		r.Get("/reports/recent", s.handleRecentReports)
		r.Get("/websites/check", s.handleWebsiteCheck)
		r.Get("/websites/recent", s.handleRecentWebsites)
		r.Get("/blockchain/tx/{hash}", s.handleLedgerTx)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/auth/profile", s.handleProfile)
			r.Post("/reports", s.handleSubmitReport)
			r.Get("/reports/user", s.handleUserReports)
			r.Get("/stats/dashboard", s.handleDashboard)
			r.Post("/evidence/presign", s.handleEvidencePresign)

			r.Group(func(r chi.Router) {
				r.Use(s.requireGovernance)
				r.Post("/blockchain/verify/{reportId}", s.handleBroadcastReport)
				r.Post("/governance/decide/{reportId}", s.handleGovernanceDecide)
			})
		})
	})

	return r
}

// Run serves the API until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
