package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fincal/internal/ledger"
	"fincal/internal/log"
	"fincal/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	opts   []ledger.Option
}

// NewFactory creates a new backend factory. Ledger options are passed to
// every ledger it creates.
func NewFactory(logger *slog.Logger, opts ...ledger.Option) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger, opts: opts}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, log.WithComponent(f.logger, log.ComponentStorage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	bills, income, err := repo.LoadAll(ctx)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to load ledger from SQLite: %w", err)
	}

	l := ledger.New(f.opts...)
	l.Restore(bills, income)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"bills", len(bills),
		"income", len(income))

	return &Result{
		Ledger:     l,
		Repository: repo,
		Cleanup:    repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	l := ledger.New(f.opts...)

	if config.SeedFile != "" {
		n, err := ledger.LoadSeedFile(l, config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed file %s: %w", config.SeedFile, err)
		}
		f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile, "records", n)
	} else {
		f.logger.Info("Initialized memory backend")
	}

	return &Result{Ledger: l}, nil
}
