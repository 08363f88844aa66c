// Package progress provides the sources of daily progress records.
package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// Querier subset of pgxpool.Pool used by the repository
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository daily records stored in PostgreSQL
// ⭐ SSOT: progress.daily_records 접근은 여기서만
type Repository struct {
	db Querier
}

// NewRepository creates a repository over a pool or transaction
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS progress;

	CREATE TABLE IF NOT EXISTS progress.daily_records (
		item_id      TEXT             NOT NULL,
		record_date  DATE             NOT NULL,
		daily_points DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (daily_points >= 0),
		teams_active INTEGER          NOT NULL DEFAULT 0,
		updated_at   TIMESTAMPTZ      NOT NULL DEFAULT now(),
		PRIMARY KEY (item_id, record_date)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_records_date
		ON progress.daily_records (record_date);`

// EnsureSchema creates the schema and table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure progress schema: %w", err)
	}
	return nil
}

// Load implements contracts.SeriesSource. An empty scope sums all items per day.
func (r *Repository) Load(ctx context.Context, scope contracts.Scope, from, to time.Time) ([]contracts.DailyRecord, error) {
	query, args := loadQuery(scope, from, to)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily records: %w", err)
	}
	defer rows.Close()

	var records []contracts.DailyRecord
	for rows.Next() {
		var rec contracts.DailyRecord
		if err := rows.Scan(&rec.Date, &rec.DailyPoints, &rec.TeamsActive); err != nil {
			return nil, fmt.Errorf("scan daily record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily records: %w", err)
	}

	return records, nil
}

func loadQuery(scope contracts.Scope, from, to time.Time) (string, []any) {
	if scope.ItemID != "" {
		return `
			SELECT record_date, daily_points, teams_active
			FROM progress.daily_records
			WHERE item_id = $1 AND record_date BETWEEN $2 AND $3
			ORDER BY record_date`,
			[]any{scope.ItemID, from, to}
	}

	return `
		SELECT record_date, SUM(daily_points), MAX(teams_active)
		FROM progress.daily_records
		WHERE record_date BETWEEN $1 AND $2
		GROUP BY record_date
		ORDER BY record_date`,
		[]any{from, to}
}

// SaveRecords upserts one item's records in a single batch
func (r *Repository) SaveRecords(ctx context.Context, itemID string, records []contracts.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}
	if itemID == "" {
		return fmt.Errorf("save records: item id is required")
	}

	query := `
		INSERT INTO progress.daily_records (item_id, record_date, daily_points, teams_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_id, record_date) DO UPDATE SET
			daily_points = EXCLUDED.daily_points,
			teams_active = EXCLUDED.teams_active,
			updated_at   = now()`

	batch := &pgx.Batch{}
	for _, rec := range contracts.NewSeries(records) {
		batch.Queue(query, itemID, rec.Date, rec.DailyPoints, rec.TeamsActive)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert daily record %d: %w", i, err)
		}
	}
	return nil
}

// ListItems distinct item ids with records in the window
func (r *Repository) ListItems(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT item_id
		FROM progress.daily_records
		WHERE record_date BETWEEN $1 AND $2
		ORDER BY item_id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect items: %w", err)
	}
	return items, nil
}
