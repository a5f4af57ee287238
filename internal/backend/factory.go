package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livrocaixa/internal/docseq"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/storage"
	"livrocaixa/internal/store"
	"livrocaixa/internal/store/memory"
)

// counterTTL bounds how long an idle month's Redis counter lives.
const counterTTL = 400 * 24 * time.Hour

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		s   store.Store
		err error
	)
	switch config.Type {
	case MemoryBackend:
		s = f.createMemoryStore(config)
	case SQLiteBackend:
		s, err = f.createSQLStore(ctx, storage.Options{Dialect: storage.SQLite, SQLitePath: config.SQLiteDBPath})
	case PostgresBackend:
		s, err = f.createSQLStore(ctx, storage.Options{Dialect: storage.Postgres, DatabaseURL: config.DatabaseURL})
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	alloc, closeAlloc, err := f.createAllocator(ctx, config, s)
	if err != nil {
		s.Close()
		return nil, err
	}

	return &BackendResult{
		Store:     s,
		Allocator: alloc,
		Cleanup: func() error {
			return errors.Join(closeAlloc(), s.Close())
		},
	}, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) store.Store {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	s := memory.NewFromFiles(dataDir)
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return s
}

func (f *DefaultFactory) createSQLStore(ctx context.Context, opts storage.Options) (store.Store, error) {
	repo, err := storage.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", opts.Dialect, err)
	}
	f.logger.Info("Initialized SQL backend", "dialect", string(opts.Dialect), "db_path", opts.SQLitePath)
	return repo, nil
}

func (f *DefaultFactory) createAllocator(ctx context.Context, config Config, s store.Store) (docseq.Allocator, func() error, error) {
	noop := func() error { return nil }
	if config.DocSeq != RedisDocSeq {
		return docseq.NewStoreAllocator(s), noop, nil
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, noop, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, noop, fmt.Errorf("connect to redis: %w", err)
	}
	f.logger.Info("Initialized Redis doc number counters", "addr", opts.Addr)
	return docseq.NewRedisAllocator(client, s, counterTTL), client.Close, nil
}
