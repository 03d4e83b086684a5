package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/pipeline"
	"github.com/sells-group/filings-cli/internal/store"
	"github.com/sells-group/filings-cli/pkg/docai"
)

// ingestEnv holds the initialized store and pipeline for the ingest and
// serve commands.
type ingestEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *ingestEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured warehouse backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "filings.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv validates config and wires the docai client, store, and pipeline.
// Callers should defer env.Close(). A positive concurrency overrides the
// configured value.
func initEnv(ctx context.Context, concurrency int) (*ingestEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	classes, err := pipeline.LoadPageClasses(cfg.Pipeline.PageClassFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	client := docai.NewClient(cfg.DocAI.Key,
		docai.WithBaseURL(cfg.DocAI.BaseURL),
		docai.WithRateLimit(cfg.DocAI.RequestsPerSec, 1),
	)

	if concurrency <= 0 {
		concurrency = cfg.Pipeline.Concurrency
	}

	p := pipeline.New(client, st, classes, concurrency,
		docai.WithPollInterval(time.Duration(cfg.DocAI.PollIntervalSecs)*time.Second),
		docai.WithPollTimeout(time.Duration(cfg.DocAI.PollTimeoutSecs)*time.Second),
	)

	return &ingestEnv{Store: st, Pipeline: p}, nil
}
