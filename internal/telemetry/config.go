package telemetry

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/pulse/telemetry.db"

	defaultBatchSize    = 10
	defaultBatchTimeout = 5 * time.Second
	defaultRetention    = 7 * 24 * time.Hour
)

type Config struct {
	DBPath string
	// BackupDir receives a copy of the database before an incompatible
	// schema is replaced. Empty means a "backups" directory next to DBPath.
	BackupDir string
	// BatchSize is the number of payloads buffered before a write. Values
	// below 2 write every payload immediately.
	BatchSize    int
	BatchTimeout time.Duration
	// Retention bounds the age of archived payloads. Zero keeps everything.
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Retention:    defaultRetention,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 || c.Retention < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout string
			Retention    string
		}{
			BatchSize:    c.BatchSize,
			BatchTimeout: c.BatchTimeout.String(),
			Retention:    c.Retention.String(),
		})
	}

	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}

	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}
