// Package aggregator persists periodic snapshots of search analytics to
// PostgreSQL.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS search_analytics_snapshots (
    id            BIGSERIAL PRIMARY KEY,
    instance      TEXT NOT NULL,
    total_searches BIGINT NOT NULL,
    zero_results  BIGINT NOT NULL,
    data          JSONB NOT NULL,
    captured_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const schemaIndex = `CREATE INDEX IF NOT EXISTS search_analytics_snapshots_captured_idx
    ON search_analytics_snapshots (instance, captured_at DESC)`

// Store writes AggregatedStats rows tagged with the searchd instance name.
type Store struct {
	db       *postgres.Client
	instance string
	logger   *slog.Logger
}

func NewStore(db *postgres.Client, instance string) *Store {
	return &Store{
		db:       db,
		instance: instance,
		logger:   slog.Default().With("component", "analytics-store", "instance", instance),
	}
}

// EnsureSchema creates the snapshot table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.db.Migrate(ctx, schema, schemaIndex); err != nil {
		return fmt.Errorf("creating analytics schema: %w", err)
	}
	return nil
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO search_analytics_snapshots (instance, total_searches, zero_results, data, captured_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.instance, stats.TotalSearches, stats.ZeroResultCount, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Debug("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"total_reloads", stats.TotalReloads,
	)
	return nil
}

// LatestSnapshot returns nil, nil when no snapshot exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM search_analytics_snapshots WHERE instance = $1 ORDER BY captured_at DESC LIMIT 1`,
		s.instance,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns the last limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM search_analytics_snapshots WHERE instance = $1 ORDER BY captured_at DESC LIMIT $2`,
		s.instance, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// StartPeriodicSave snapshots agg every interval and once more on shutdown.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
