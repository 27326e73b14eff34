package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/importer"
	importhandler "github.com/maxwell-labs/maxwells-wallet/internal/domain/importer/handler"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/merchants"
	merchanthandler "github.com/maxwell-labs/maxwells-wallet/internal/domain/merchants/handler"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/rules"
	rulehandler "github.com/maxwell-labs/maxwells-wallet/internal/domain/rules/handler"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/tags"
	taghandler "github.com/maxwell-labs/maxwells-wallet/internal/domain/tags/handler"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
	transactionhandler "github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions/handler"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transfers"
	transferhandler "github.com/maxwell-labs/maxwells-wallet/internal/domain/transfers/handler"

	"github.com/maxwell-labs/maxwells-wallet/pkg/config"
	"github.com/maxwell-labs/maxwells-wallet/pkg/cron"
	"github.com/maxwell-labs/maxwells-wallet/pkg/db"
	"github.com/maxwell-labs/maxwells-wallet/pkg/metrics"
	"github.com/maxwell-labs/maxwells-wallet/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	TransactionRepo transactions.Repository
	SessionRepo     importer.SessionRepository
	TagRepo         tags.Repository
	RuleRepo        rules.Repository
	TransferRepo    transfers.Repository
	MerchantRepo    merchants.Repository

	// Services
	SearchIndex        *transactions.SearchIndex
	TransactionService *transactions.Service
	TagService         *tags.Service
	RuleService        *rules.Service
	TransferService    *transfers.Service
	MerchantService    *merchants.Service
	ImportService      *importer.Service
	Scheduler          *cron.Scheduler

	// Handlers
	TransactionHandler *transactionhandler.TransactionHandler
	TagHandler         *taghandler.TagHandler
	RuleHandler        *rulehandler.RuleHandler
	TransferHandler    *transferhandler.TransferHandler
	MerchantHandler    *merchanthandler.MerchantHandler
	ImportHandler      *importhandler.ImportHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.TransactionRepo = transactions.NewPostgresRepository(d.DB.Pool)
	d.SessionRepo = importer.NewPostgresSessionRepository(d.DB.Pool)
	d.TagRepo = tags.NewPostgresRepository(d.DB.Pool)
	d.RuleRepo = rules.NewPostgresRepository(d.DB.Pool)
	d.TransferRepo = transfers.NewPostgresRepository(d.DB.Pool)
	d.MerchantRepo = merchants.NewPostgresRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	ctx := context.Background()

	// In-memory full-text index, rebuilt from the database on startup.
	search, err := transactions.NewSearchIndex("")
	if err != nil {
		return fmt.Errorf("failed to init search index: %w", err)
	}
	d.SearchIndex = search

	d.TransactionService = transactions.NewService(d.TransactionRepo, d.SearchIndex, d.Logger)
	d.TagService = tags.NewService(d.TagRepo, d.TransactionRepo, d.Logger)
	d.RuleService = rules.NewService(d.RuleRepo, d.TransactionRepo, d.TagRepo, d.Metrics, d.Logger)
	d.TransferService = transfers.NewService(d.TransferRepo, transfers.DefaultWindowDays, d.Metrics, d.Logger)

	// Merchant aliases are compiled up front so a bad stored regex fails fast.
	merchantService, err := merchants.NewService(ctx, d.MerchantRepo, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to init merchant service: %w", err)
	}
	d.MerchantService = merchantService

	archive, err := storage.New(&storage.Config{LocalPath: d.Config.Importer.ArchivePath})
	if err != nil {
		return fmt.Errorf("failed to init statement archive: %w", err)
	}

	d.ImportService = importer.NewService(
		d.SessionRepo,
		d.TransactionRepo,
		d.TransactionService,
		d.TagRepo,
		d.RuleRepo,
		d.MerchantService,
		archive,
		d.Metrics,
		importer.Config{
			SampleRows:     d.Config.Importer.SampleRows,
			MerchantMaxLen: d.Config.Importer.MerchantMaxLength,
		},
		d.Logger,
	)

	if d.Config.Scheduler.AutoTagEnabled {
		d.Scheduler = cron.NewScheduler(d.RuleService, d.Config.Scheduler.AutoTagCron, d.Logger)
	}

	if err := d.warmSearchIndex(ctx); err != nil {
		d.Logger.Warn("failed to warm search index", slog.Any("error", err))
	}

	d.Logger.Info("services initialized")
	return nil
}

// warmSearchIndex pages existing transactions into the in-memory index.
func (d *Dependencies) warmSearchIndex(ctx context.Context) error {
	const pageSize = 500
	indexed := 0
	for offset := 0; ; offset += pageSize {
		page, _, err := d.TransactionRepo.List(ctx, transactions.ListFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		d.TransactionService.IndexAll(page)
		indexed += len(page)
	}
	d.Logger.Info("search index warmed", slog.Int("transactions", indexed))
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.TransactionHandler = transactionhandler.NewTransactionHandler(d.TransactionService)
	d.TagHandler = taghandler.NewTagHandler(d.TagService)
	d.RuleHandler = rulehandler.NewRuleHandler(d.RuleService)
	d.TransferHandler = transferhandler.NewTransferHandler(d.TransferService)
	d.MerchantHandler = merchanthandler.NewMerchantHandler(d.MerchantService)
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Config.Importer.MaxUploadBytes)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.SearchIndex != nil {
		if err := d.SearchIndex.Close(); err != nil {
			d.Logger.Warn("failed to close search index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
