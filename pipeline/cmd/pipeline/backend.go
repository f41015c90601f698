package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/malbeclabs/electionlake/pipeline/pkg/clickhouse"
	"github.com/malbeclabs/electionlake/pipeline/pkg/config"
	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
	"github.com/malbeclabs/electionlake/pipeline/pkg/schema"
	"github.com/malbeclabs/electionlake/pipeline/pkg/store/postgres"
	"github.com/malbeclabs/electionlake/pipeline/pkg/store/sqldb"
	"github.com/malbeclabs/electionlake/utils/pkg/retry"
)

// backend bundles the storage a run writes to.
type backend struct {
	dimensions dimension.Store
	facts      loader.FactWriter
	status     loader.StatusStore
	ping       func(ctx context.Context) error
	closers    []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, log *slog.Logger, cfg *config.Config, migrate bool) (*backend, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	b := &backend{}
	switch cfg.DBConnection {
	case schema.DialectPostgres:
		store, err := retry.DoValue(ctx, retry.DefaultConfig(), func() (*postgres.Store, error) {
			return postgres.Open(ctx, postgres.Config{Logger: log, ConnStr: dsn})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.closers = append(b.closers, store.Close)
		if migrate {
			db := stdlib.OpenDBFromPool(store.Pool())
			err := schema.Up(ctx, log, db, schema.DialectPostgres)
			db.Close()
			if err != nil {
				b.close()
				return nil, err
			}
		}
		b.dimensions, b.facts, b.status, b.ping = store, store, store, store.Ping
	default:
		store, err := retry.DoValue(ctx, retry.DefaultConfig(), func() (*sqldb.Store, error) {
			return sqldb.Open(ctx, sqldb.Config{Logger: log, Dialect: cfg.DBConnection, DSN: dsn})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DBConnection, err)
		}
		b.closers = append(b.closers, func() { store.Close() })
		if migrate {
			if err := schema.Up(ctx, log, store.DB(), store.Dialect()); err != nil {
				b.close()
				return nil, err
			}
		}
		b.dimensions, b.facts, b.status, b.ping = store, store, store, store.Ping
	}

	if cfg.FactSink == config.FactSinkClickHouse {
		if migrate {
			if err := clickhouse.Up(ctx, log, cfg.ClickHouse); err != nil {
				b.close()
				return nil, err
			}
		}
		client, err := clickhouse.NewClient(ctx, log, cfg.ClickHouse)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
		}
		b.closers = append(b.closers, func() { client.Close() })
		sink, err := clickhouse.NewFactSink(clickhouse.FactSinkConfig{Logger: log, Client: client})
		if err != nil {
			b.close()
			return nil, err
		}
		b.facts = sink
		relationalPing := b.ping
		b.ping = func(ctx context.Context) error {
			if err := relationalPing(ctx); err != nil {
				return err
			}
			return client.Ping(ctx)
		}
	}
	return b, nil
}
