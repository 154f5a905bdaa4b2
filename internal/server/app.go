// Package server initializes and runs the FraudWatch server: it wires the
// database, repositories, services, the reconciliation poller, and the HTTP
// API, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/fraudwatch/fraudwatch/internal/logging"
	"github.com/fraudwatch/fraudwatch/internal/server/config"
	httpserver "github.com/fraudwatch/fraudwatch/internal/server/http"
	"github.com/fraudwatch/fraudwatch/internal/server/ledger"
	"github.com/fraudwatch/fraudwatch/internal/server/poller"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/repomanager"
	"github.com/fraudwatch/fraudwatch/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpserver.Server
	poller *poller.Poller
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	// The operator address funds and signs the contract transactions; for
	// development setups the node's default account is used.
	operator := ""
	if len(cfg.GovernanceAddresses) > 0 {
		operator = cfg.GovernanceAddresses[0]
	}
	lc := ledger.NewJSONRPCClient(cfg.LedgerRPCEndpoint, cfg.LedgerContract, operator)

	identity := services.NewIdentityService(db, rm, cfg)
	reputation := services.NewReputationService(db, rm, cfg)
	reports := services.NewReportService(db, rm, reputation)
	websites := services.NewWebsiteService(db, rm, lc)
	evidence := services.NewEvidenceService(cfg)

	srv := httpserver.NewServer(cfg, logger, identity, reports, reputation, websites, evidence, lc)

	p := poller.New(reports, lc, logger.With("module", "poller"),
		cfg.PollInterval, cfg.PollBackoffCap, cfg.PendingTxTimeout)

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		server: srv,
		poller: p,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the HTTP server and the reconciliation poller and blocks until
// both have stopped.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.Run(ctx)
	})
	g.Go(func() error {
		return app.poller.Run(ctx)
	})

	err := g.Wait()

	if closeErr := app.db.Close(); closeErr != nil {
		app.logger.Error(ctx, "db close error", "error", closeErr)
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
