package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/tallyworks/tally/internal/api/http"
	"github.com/tallyworks/tally/internal/api/mail"
	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/internal/api/store/drivers/sqlite"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/httpx"
	"github.com/tallyworks/tally/pkg/jwtx"
	"github.com/tallyworks/tally/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the API with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     store.Store
	tokens *jwtx.HS256
	mailer mail.Mailer
	redis  *redis.Client // nil unless REDIS_ADDR is set

	// Services
	sessions            *service.SessionIssuer
	authService         *service.AuthService
	oauthService        *service.OAuthService
	mfaService          *service.MFAService
	teamService         *service.TeamService
	businessService     *service.BusinessService
	registrationService *service.RegistrationService
	invoiceService      *service.InvoiceService
	clientService       *service.ClientService
	expenseService      *service.ExpenseService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tally-api",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(cfg.PepperFile)

	tokens, err := jwtx.NewHS256(cfg.SessionSecret, cfg.Issuer, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session signing: %w", err)
	}
	app.tokens = tokens

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initMailer()
	app.initRedis()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("api starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down api...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("api stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initMailer picks SMTP when configured, logging delivery otherwise.
func (app *Application) initMailer() {
	smtpCfg := mail.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	}
	if smtpCfg.Configured() {
		app.mailer = mail.NewSMTPMailer(smtpCfg)
		app.logger.Info("smtp mailer enabled", "host", smtpCfg.Host)
		return
	}
	app.mailer = mail.LogMailer{}
	app.logger.Info("smtp not configured, mail will be logged")
}

// initRedis connects the optional shared rate-limit backend.
func (app *Application) initRedis() {
	if app.cfg.RedisAddr == "" {
		return
	}
	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
	})
	app.logger.Info("redis login rate limiting enabled", "addr", app.cfg.RedisAddr)
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.sessions = &service.SessionIssuer{Tokens: app.tokens}

	app.authService = &service.AuthService{
		Store:    app.db,
		Sessions: app.sessions,
	}
	app.oauthService = service.NewOAuthService(
		app.db,
		app.sessions,
		app.cfg.PublicBaseURL+"/v1",
		service.OAuthProviderConfig{
			ClientID:     app.cfg.GoogleClientID,
			ClientSecret: app.cfg.GoogleClientSecret,
		},
		service.OAuthProviderConfig{
			ClientID:     app.cfg.GitHubClientID,
			ClientSecret: app.cfg.GitHubClientSecret,
		},
	)
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}
	app.teamService = &service.TeamService{
		Store:           app.db,
		Sessions:        app.sessions,
		Mailer:          app.mailer,
		FrontendBaseURL: app.cfg.FrontendBaseURL,
	}
	app.businessService = &service.BusinessService{Store: app.db}
	app.registrationService = &service.RegistrationService{
		Store:           app.db,
		Mailer:          app.mailer,
		FrontendBaseURL: app.cfg.FrontendBaseURL,
	}
	app.invoiceService = &service.InvoiceService{Store: app.db}
	app.clientService = &service.ClientService{Store: app.db}
	app.expenseService = &service.ExpenseService{Store: app.db}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.tokens,
		BuildVersion,
		app.db,
		app.logger,
		app.cfg.AllowedOrigins,
	)

	router.FrontendBaseURL = app.cfg.FrontendBaseURL
	if app.redis != nil {
		router.LoginLimiter = &httpx.RedisRateLimiter{
			Client: app.redis,
			Limit:  httpx.StrictLimit.RequestsPerWindow,
			Window: httpx.StrictLimit.Window,
		}
	}

	// Wire services to router
	router.AuthService = app.authService
	router.OAuthService = app.oauthService
	router.MFAService = app.mfaService
	router.TeamService = app.teamService
	router.BusinessService = app.businessService
	router.RegistrationService = app.registrationService
	router.InvoiceService = app.invoiceService
	router.ClientService = app.clientService
	router.ExpenseService = app.expenseService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
