// Package app initializes and holds the long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/api"
	"github.com/paperboydev/paperboy/internal/browser"
	systemclock "github.com/paperboydev/paperboy/internal/clock/system"
	"github.com/paperboydev/paperboy/internal/config"
	"github.com/paperboydev/paperboy/internal/edition"
	"github.com/paperboydev/paperboy/internal/fetch"
	sha "github.com/paperboydev/paperboy/internal/hash/sha256"
	"github.com/paperboydev/paperboy/internal/history"
	uuidgen "github.com/paperboydev/paperboy/internal/id/uuid"
	"github.com/paperboydev/paperboy/internal/logging"
	"github.com/paperboydev/paperboy/internal/mail"
	"github.com/paperboydev/paperboy/internal/pipeline"
	"github.com/paperboydev/paperboy/internal/publish"
	"github.com/paperboydev/paperboy/internal/storage"
	"github.com/paperboydev/paperboy/internal/thumbnail"
)

// App holds the shared, long-lived services. It is initialized once at
// startup and handed to the commands that need it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	browser   *browser.Manager
	store     storage.Provider
	histStore history.Store
	publisher publish.Publisher
	runner    *pipeline.Runner
	server    *api.Server
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Runner returns the edition pipeline runner.
func (a *App) Runner() *pipeline.Runner { return a.runner }

// Storage returns the archive provider.
func (a *App) Storage() storage.Provider { return a.store }

// History returns the run-history store.
func (a *App) History() history.Store { return a.histStore }

// Server returns the dashboard HTTP server.
func (a *App) Server() *api.Server { return a.server }

// New builds every service from the configuration. It fails fast: a
// misconfigured storage bucket or unreachable database surfaces here, not
// halfway through tomorrow's run.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger.Info("initializing services",
		zap.String("site", cfg.Site.BaseURL),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("db", cfg.DB.Provider))

	selectors, err := cfg.SelectorSet()
	if err != nil {
		return nil, err
	}

	client, err := fetch.NewClient(fetch.ClientConfig{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}

	resolver := edition.NewResolver(logger)
	auth := fetch.NewAuthenticator(cfg.Site.LoginURL, cfg.Credentials(), selectors, logger)
	retry := fetch.NewRetryPolicy(cfg.Fetch.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax())

	// Chrome launches lazily inside the manager, so HTTP-only days never
	// pay the browser startup cost.
	mgr := browser.NewManager(browser.Config{
		UserAgent:  cfg.Fetch.UserAgent,
		NavTimeout: cfg.NavTimeout(),
		NavQPS:     cfg.Browser.NavQPS,
	}, logger)

	strategies := []fetch.Strategy{
		fetch.NewHTTPStrategy(client, auth, resolver, selectors, retry, cfg.Fetch.MinArtifactBytes, logger),
		fetch.NewBrowserStrategy(mgr, client, resolver, selectors, cfg.Site.LoginURL,
			cfg.Credentials(), retry, cfg.Fetch.MinArtifactBytes, logger),
	}
	orch := fetch.NewOrchestrator(strategies, cfg.Fetch.MinArtifactBytes, logger)

	thumbs := thumbnail.NewPipeline([]thumbnail.Renderer{
		thumbnail.NewFitzRenderer(),
		thumbnail.NewPopplerRenderer(cfg.Thumbnail.PopplerBinary),
		thumbnail.NewHTMLRenderer(mgr),
	}, cfg.Thumbnail.MaxDim, cfg.Thumbnail.Quality, logger)

	store, err := newStore(ctx, cfg.Storage, logger)
	if err != nil {
		mgr.Close()
		return nil, err
	}
	sweeper := storage.NewSweeper(store, cfg.Storage.Prefix, logger)

	mailer, err := newMailer(cfg.Email, logger)
	if err != nil {
		mgr.Close()
		return nil, err
	}

	histStore, err := newHistoryStore(ctx, cfg.DB, logger)
	if err != nil {
		mgr.Close()
		return nil, err
	}

	publisher, err := newPublisher(ctx, cfg.PubSub, logger)
	if err != nil {
		mgr.Close()
		histStore.Close()
		return nil, err
	}

	clk := systemclock.New()
	runner := pipeline.NewRunner(pipeline.Config{
		BaseURL:       cfg.Site.BaseURL,
		EditionPath:   cfg.Site.EditionPath,
		DownloadDir:   cfg.Paths.DownloadDir,
		StoragePrefix: cfg.Storage.Prefix,
		LinkTTL:       time.Duration(cfg.Email.LinkTTLHours) * time.Hour,
		RetentionDays: cfg.Retention.Days,
		LinkDays:      cfg.Retention.LinkDays,
		Topic:         cfg.PubSub.TopicID,
	}, orch, thumbs, store, sweeper, mailer, histStore, publisher,
		sha.New(), clk, uuidgen.New(), logger)

	server := api.NewServer(runner, histStore, clk, cfg.Server, logger)

	logger.Info("services initialized")
	return &App{
		cfg:       cfg,
		logger:    logger,
		browser:   mgr,
		store:     store,
		histStore: histStore,
		publisher: publisher,
		runner:    runner,
		server:    server,
	}, nil
}

func newStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Provider, error) {
	switch cfg.Provider {
	case "s3":
		logger.Info("using s3 storage", zap.String("bucket", cfg.Bucket))
		store, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return store, nil
	case "gcs":
		logger.Info("using gcs storage", zap.String("bucket", cfg.Bucket))
		store, err := storage.NewGCS(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return store, nil
	case "local":
		logger.Info("using local storage", zap.String("dir", cfg.LocalDir))
		store, err := storage.NewLocal(cfg.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	case "noop":
		logger.Info("using noop storage, editions will not be archived")
		return storage.NoopProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func newMailer(cfg config.EmailConfig, logger *zap.Logger) (mail.Sender, error) {
	if !cfg.Enabled {
		logger.Info("email disabled, deliveries will be logged only")
		return mail.NewNoop(logger), nil
	}
	mailer, err := mail.NewSMTP(mail.SMTPConfig{
		Host:           cfg.SMTPHost,
		Port:           cfg.SMTPPort,
		Username:       cfg.SMTPUser,
		Password:       cfg.SMTPPass,
		Sender:         cfg.Sender,
		Recipients:     cfg.Recipients,
		AlertRecipient: cfg.AlertRecipient,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}
	return mailer, nil
}

func newHistoryStore(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (history.Store, error) {
	switch cfg.Provider {
	case "postgres":
		logger.Info("using postgres run history", zap.String("table", cfg.Table))
		store, err := history.NewPostgres(ctx, history.PostgresConfig{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("init run history: %w", err)
		}
		return store, nil
	case "memory", "":
		logger.Info("using in-memory run history")
		return history.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown db provider: %s", cfg.Provider)
	}
}

func newPublisher(ctx context.Context, cfg config.PubSubConfig, logger *zap.Logger) (publish.Publisher, error) {
	if !cfg.Enabled {
		return publish.NoopPublisher{}, nil
	}
	logger.Info("publishing run outcomes", zap.String("topic", cfg.TopicID))
	pub, err := publish.NewPubSub(ctx, cfg.ProjectID, cfg.TopicID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	return pub, nil
}

// Close shuts every service down, best effort, in reverse dependency order.
func (a *App) Close() {
	a.logger.Info("shutting down services")
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("error closing publisher", zap.Error(err))
	}
	a.histStore.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("error closing storage", zap.Error(err))
	}
	a.browser.Close()

	// Best effort; stderr sync failures on shutdown are not actionable.
	_ = a.logger.Sync()
}
