package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/bonkmc/modernauth/internal/auth/http"
	"github.com/bonkmc/modernauth/internal/auth/identity"
	"github.com/bonkmc/modernauth/internal/auth/notify"
	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/internal/auth/store/drivers/sqlite"
	"github.com/bonkmc/modernauth/pkg/cryptox"
	"github.com/bonkmc/modernauth/pkg/jwtx"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

const serviceName = "modernauth"

// BuildVersion is overridden at build time via -ldflags "-X".
var BuildVersion = "v0.1.0"

// Application owns the server and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db            *sqlite.Store
	keyManager    *jwtx.KeyManager
	identity      identity.Verifier
	stopTracing   func(context.Context) error
	housekeeping  *service.HousekeepingService
	linkService   *service.LinkService
	inviteService *service.InviteService
	adminService  *service.AdminService

	server *http.Server
	router *httpapi.Router
}

// setupTracing is swapped out in tests.
var setupTracing = SetupTracing

// New creates an Application with all dependencies initialized. On error
// everything already started is torn down.
func New(ctx context.Context, cfg Config) (_ *Application, err error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	stop, err := setupTracing(ctx, cfg.OTLPEndpoint, serviceName, BuildVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	app.stopTracing = stop
	defer func() {
		if err == nil {
			return
		}
		if app.db != nil {
			_ = app.db.Close()
		}
		if stopErr := stop(context.WithoutCancel(ctx)); stopErr != nil {
			app.logger.Warn("error flushing traces", "error", stopErr)
		}
	}()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	pepper, err := cryptox.LoadOrGeneratePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	app.keyManager, err = InitSessionKeys(cfg, app.logger)
	if err != nil {
		return nil, err
	}

	app.identity, err = identity.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	app.initServices(pepper)
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("link service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains requests, stops background work and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down link service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.stopTracing(ctx); err != nil {
		app.logger.Warn("error flushing traces", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("link service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.db = db

	app.logger.Info("database migrations applied successfully", "path", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initServices(pepper string) {
	hasher := cryptox.NewArgon2Hasher(pepper)

	tenants := &service.TenantRegistry{Store: app.db, Hasher: hasher}
	tokens := &service.TokenBroker{
		Store:      app.db,
		Digest:     cryptox.NewKeyedFingerprinter(pepper, cryptox.FingerprintContextToken),
		DefaultTTL: app.cfg.LinkTokenTTL,
		InviteTTL:  app.cfg.InviteTTL,
	}
	identities := &service.IdentityStore{Store: app.db, Hasher: hasher}
	access := &service.AccessDirectory{
		Store:    app.db,
		Hasher:   hasher,
		Subjects: cryptox.NewKeyedFingerprinter(pepper, cryptox.FingerprintContextSubject),
	}

	var mailer service.Mailer = notify.Log{Logger: app.logger}
	if app.cfg.MailEnabled() {
		mailer = notify.NewMailgun(app.cfg.MailgunDomain, app.cfg.MailgunAPIKey, app.cfg.MailgunAPIBase, app.cfg.MailFrom)
		app.logger.Info("invite mail enabled", "provider", "mailgun", "domain", app.cfg.MailgunDomain)
	}

	app.linkService = &service.LinkService{Tenants: tenants, Tokens: tokens, Identities: identities}
	app.inviteService = &service.InviteService{
		Tokens:  tokens,
		Access:  access,
		Hasher:  hasher,
		Mailer:  mailer,
		BaseURL: app.cfg.PublicBaseURL,
	}
	app.adminService = &service.AdminService{
		Tenants:        tenants,
		Identities:     identities,
		Access:         access,
		Invites:        app.inviteService,
		BootstrapToken: app.cfg.BootstrapToken,
	}
	if app.cfg.BootstrapToken != "" {
		app.logger.Warn("bootstrap token configured; unset it once an administrator exists")
	}

	app.housekeeping = service.NewHousekeepingService(tokens, app.logger, app.cfg.HousekeepingInterval)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager,
		BuildVersion,
		app.db,
		app.cfg.RateLimits,
		app.logger,
	)

	router.Identity = app.identity
	router.SessionTTL = app.cfg.SessionTTL
	router.LinkService = app.linkService
	router.InviteService = app.inviteService
	router.AdminService = app.adminService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
