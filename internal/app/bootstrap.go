package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/microfin/internal/ledger/classify"
	"github.com/odyssey-erp/microfin/internal/loans/amortization"
	"github.com/odyssey-erp/microfin/internal/reports"
)

// Tables holds the configuration tables loaded from disk.
type Tables struct {
	Classification classify.Table
	Savings        amortization.SavingsTable
}

// LoadTables reads and validates the classification and savings tables.
func LoadTables(cfg *Config) (Tables, error) {
	table, err := classify.LoadTable(cfg.ClassificationTablePath)
	if err != nil {
		return Tables{}, err
	}
	savings, err := amortization.LoadSavingsTable(cfg.SavingsTablePath)
	if err != nil {
		return Tables{}, err
	}
	return Tables{Classification: table, Savings: savings}, nil
}

// ReportDeps carries the connections shared by the server and the worker.
type ReportDeps struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Recorder reports.Recorder
	Logger   *slog.Logger
}

// NewReportService assembles the report service from configuration. A nil
// Redis client disables caching.
func NewReportService(cfg *Config, tables Tables, deps ReportDeps) (*reports.Service, *reports.Cache, error) {
	classifier, err := classify.NewClassifier(tables.Classification)
	if err != nil {
		return nil, nil, fmt.Errorf("app: classifier: %w", err)
	}
	policy, err := cfg.AmortizationPolicy()
	if err != nil {
		return nil, nil, err
	}
	var reportCache *reports.Cache
	if deps.Redis != nil {
		reportCache = reports.NewCache(deps.Redis, cfg.ReportCacheTTL)
	}
	svc, err := reports.NewService(reports.Config{
		Store:       reports.NewRepository(deps.Pool),
		Classifier:  classifier,
		Calculator:  amortization.NewCalculator(policy),
		Savings:     tables.Savings,
		Cache:       reportCache,
		Recorder:    deps.Recorder,
		Logger:      deps.Logger,
		Concurrency: cfg.BatchConcurrency,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, reportCache, nil
}
