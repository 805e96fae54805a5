package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/receipt-normalizer/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("users.json", `{"_id": {"$oid": "u1"}, "createdDate": {"$date": 1609687531000}, "role": "consumer"}`+"\n")
	write("brands.json", `{"_id": {"$oid": "b1"}, "barcode": "111", "brandCode": "ACME", "name": "Acme"}`+"\n")
	write("receipts.json", `{"_id": {"$oid": "r1"}, "userId": "u1", "rewardsReceiptStatus": "FINISHED", "rewardsReceiptItemList": [{"barcode": "111"}]}`+"\n")

	cfg := config.Default()
	cfg.Source.LocalPath = dir
	cfg.Source.Users.Key = "users.json"
	cfg.Source.Brands.Key = "brands.json"
	cfg.Source.Receipts.Key = "receipts.json"
	cfg.Store.DSN = ":memory:"
	cfg.Pipeline.ArchivePath = filepath.Join(dir, "archive")
	return cfg
}

func TestNewRunsEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg, Options{})
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Store)
	assert.Nil(t, a.Redis)

	summary, err := a.Runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RowCounts["receiptItems"])

	entries, err := filepath.Glob(filepath.Join(cfg.Pipeline.ArchivePath, "runs", "*", "*", "*", "*.json"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewDryRunWithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.Pipeline.ArchivePath = ""

	a, err := New(context.Background(), cfg, Options{DryRun: true})
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Store)
	require.NotNil(t, a.Redis)

	summary, err := a.Runner.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Data.Items, 1)
	assert.False(t, mr.Exists("lock:"+cfg.Pipeline.LockKey), "lock is released after the run")
}

func TestConnectRedisUnreachable(t *testing.T) {
	assert.Nil(t, connectRedis(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"}))
	assert.Nil(t, connectRedis(context.Background(), config.RedisConfig{}))
}
