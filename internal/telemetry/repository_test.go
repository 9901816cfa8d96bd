package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/export"
	"codeberg.org/mutker/pulse/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		DBPath:    filepath.Join(dir, "data", "telemetry.db"),
		BackupDir: filepath.Join(dir, "backups"),
		BatchSize: 1,
	}
}

func payload(ts time.Time, body string) export.Payload {
	return export.Payload{Timestamp: ts, Format: export.JSON, Body: []byte(body)}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	err := Config{}.Validate()
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))

	err = Config{DBPath: "x.db", Retention: -time.Hour}.Validate()
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))
}

func TestWriteAndRecent(t *testing.T) {
	a, err := Open(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, a.Write(ctx, payload(base, `{"n":1}`)))
	require.NoError(t, a.Write(ctx, payload(base.Add(time.Minute), `{"n":2}`)))

	records, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `{"n":2}`, string(records[0].Payload))
	assert.Equal(t, "json", records[0].Format)
	assert.True(t, base.Add(time.Minute).Equal(records[0].ExportedAt))

	require.NoError(t, a.Ping(ctx))
}

func TestBatchingFlushesOnClose(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 5
	cfg.BatchTimeout = time.Hour

	a, err := Open(cfg, logger.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Write(ctx, payload(now, "x")))
	}

	records, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	err = a.Write(ctx, payload(now, "late"))
	assert.True(t, errors.HasCode(err, ErrArchiveClosed))

	reopened, err := Open(cfg, logger.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	records, err = reopened.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestBatchTimeoutFlushes(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 100
	cfg.BatchTimeout = 10 * time.Millisecond

	a, err := Open(cfg, logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Write(ctx, payload(time.Now(), "x")))

	require.Eventually(t, func() bool {
		records, err := a.Recent(ctx, 10)
		return err == nil && len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriteHonoursContext(t *testing.T) {
	a, err := Open(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = a.Write(ctx, payload(time.Now(), "x"))
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestRetentionAndPrune(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retention = time.Hour

	a, err := Open(cfg, logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, a.Write(ctx, payload(now.Add(-2*time.Hour), "expired")))
	require.NoError(t, a.Write(ctx, payload(now.Add(-30*time.Minute), "recent")))
	require.NoError(t, a.Write(ctx, payload(now, "fresh")))

	records, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "fresh", string(records[0].Payload))

	removed, err := a.Prune(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestSchemaMismatchBacksUpAndRecreates(t *testing.T) {
	cfg := testConfig(t)

	a, err := Open(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Write(context.Background(), payload(time.Now(), "old")))
	require.NoError(t, a.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM schema_versions`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := Open(cfg, logger.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	backups, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}
