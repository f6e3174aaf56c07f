// Package postgres records sessions, ticks, probe results and outages in Postgres.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"netwatch/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const writeTimeout = 5 * time.Second

// Migrate applies every pending schema migration.
func Migrate(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// migrateURL rewrites a postgres:// DSN to the scheme of the pgx/v5 migrate driver.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// Sink writes one session's events to Postgres.
type Sink struct {
	pool      *pgxpool.Pool
	sessionID string
}

// Open migrates the schema, connects and registers the session row.
func Open(ctx context.Context, dsn, sessionID string, start time.Time) (*Sink, error) {
	if err := Migrate(dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `INSERT INTO sessions (id, started_at) VALUES ($1, $2)`, sessionID, start)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("register session: %w", err)
	}
	log.Printf("postgres: session %s registered", sessionID)
	return &Sink{pool: pool, sessionID: sessionID}, nil
}

// Record implements the session sink.
func (s *Sink) Record(ev models.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch ev.Kind {
	case models.EventTickObserved:
		return s.recordTick(ctx, *ev.Tick)
	case models.EventOutageStarted:
		_, err := s.pool.Exec(ctx,
			`INSERT INTO outages (session_id, started_at) VALUES ($1, $2)`,
			s.sessionID, ev.Timestamp)
		if err != nil {
			return fmt.Errorf("insert outage: %w", err)
		}
	case models.EventOutageEnded:
		tag, err := s.pool.Exec(ctx,
			`UPDATE outages SET ended_at = $2 WHERE session_id = $1 AND ended_at IS NULL`,
			s.sessionID, ev.Timestamp)
		if err != nil {
			return fmt.Errorf("close outage: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("close outage: expected one open outage, found %d", tag.RowsAffected())
		}
	}
	return nil
}

func (s *Sink) recordTick(ctx context.Context, tick models.TickStatus) error {
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO ticks (session_id, ts, reachable) VALUES ($1, $2, $3)`,
		s.sessionID, tick.Timestamp, tick.Reachable)
	for _, r := range tick.Results {
		var latency *float64
		if ms, ok := r.LatencyMs(); ok {
			latency = &ms
		}
		var errText *string
		if r.Error != "" {
			errText = &r.Error
		}
		batch.Queue(`
			INSERT INTO probe_results (session_id, tick_ts, target_id, kind, succeeded, latency_ms, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, s.sessionID, tick.Timestamp, r.TargetID, string(r.Kind), r.Succeeded, latency, errText)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}
	return nil
}

// RecordReport implements the session sink.
func (s *Sink) RecordReport(stats models.SessionStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET
			ended_at = $2, total_ticks = $3, reachable_ticks = $4, uptime_percent = $5,
			outage_count = $6, total_downtime_ms = $7, longest_outage_ms = $8, avg_latency_ms = $9
		WHERE id = $1
	`,
		s.sessionID,
		stats.End,
		stats.TotalTicks,
		stats.ReachableTicks,
		stats.UptimePercent,
		stats.OutageCount,
		stats.TotalDowntime.Milliseconds(),
		stats.LongestOutage.Milliseconds(),
		stats.AvgLatencyMs,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Outages returns the recorded outages of this session ordered by start.
func (s *Sink) Outages(ctx context.Context) ([]models.OutageInterval, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT started_at, ended_at FROM outages
		WHERE session_id = $1
		ORDER BY started_at
	`, s.sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OutageInterval
	for rows.Next() {
		var o models.OutageInterval
		if err := rows.Scan(&o.Start, &o.End); err != nil {
			return nil, err
		}
		if o.End != nil {
			o.Duration = o.End.Sub(o.Start)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Summary holds the persisted session totals.
type Summary struct {
	EndedAt        *time.Time
	TotalTicks     int
	ReachableTicks int
	OutageCount    int
	ProbeResults   int
}

// Summary reads back the session row and the number of stored probe results.
func (s *Sink) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.pool.QueryRow(ctx, `
		SELECT s.ended_at, s.total_ticks, s.reachable_ticks, s.outage_count,
			(SELECT COUNT(1) FROM probe_results p WHERE p.session_id = s.id)
		FROM sessions s WHERE s.id = $1
	`, s.sessionID).Scan(&sum.EndedAt, &sum.TotalTicks, &sum.ReachableTicks, &sum.OutageCount, &sum.ProbeResults)
	return sum, err
}

// Close implements the session sink.
func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}
