package progress

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/surveyprogress/internal/contracts"
)

func TestLoadQuery(t *testing.T) {
	item, args := loadQuery(contracts.Scope{ItemID: "sheet-1"}, march(1), march(31))
	assert.Contains(t, item, "item_id = $1")
	assert.Equal(t, []any{"sheet-1", march(1), march(31)}, args)

	all, args := loadQuery(contracts.Scope{}, march(1), march(31))
	assert.Contains(t, all, "GROUP BY record_date")
	assert.Len(t, args, 2)
}

func TestRepository_SaveRecordsRequiresItem(t *testing.T) {
	repo := NewRepository(nil)

	assert.NoError(t, repo.SaveRecords(context.Background(), "sheet-1", nil))
	assert.Error(t, repo.SaveRecords(context.Background(), "", []contracts.DailyRecord{{Date: march(1)}}))
}

// Integration test: requires DATABASE_URL
func TestRepository_RoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	repo := NewRepository(tx)
	require.NoError(t, repo.EnsureSchema(ctx))

	item := "test-" + time.Now().Format("150405.000")
	require.NoError(t, repo.SaveRecords(ctx, item, []contracts.DailyRecord{
		{Date: march(4), DailyPoints: 10, TeamsActive: 2},
		{Date: march(5), DailyPoints: 12, TeamsActive: 3},
	}))
	// upsert overwrites
	require.NoError(t, repo.SaveRecords(ctx, item, []contracts.DailyRecord{{Date: march(5), DailyPoints: 14, TeamsActive: 3}}))

	records, err := repo.Load(ctx, contracts.Scope{ItemID: item}, march(1), march(31))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 14.0, records[1].DailyPoints)

	items, err := repo.ListItems(ctx, march(1), march(31))
	require.NoError(t, err)
	assert.Contains(t, items, item)
}
