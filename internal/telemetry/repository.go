// Package telemetry archives export payloads in SQLite. Payloads are
// buffered and written in batches; payloads older than the retention window
// are pruned on every batch.
package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/export"
	"codeberg.org/mutker/pulse/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

// Record is one archived payload.
type Record struct {
	ID         int64
	ExportedAt time.Time
	Format     string
	Payload    []byte
}

// Archive is an export.Sink backed by SQLite.
type Archive struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	now    func() time.Time

	mu            sync.Mutex
	buffer        []export.Payload
	closed        bool
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

var _ export.Sink = (*Archive)(nil)

func Open(cfg Config, log logger.Logger) (*Archive, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.With("telemetry")

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("Telemetry archive initialized")

	a := &Archive{
		db:            db,
		logger:        log,
		cfg:           cfg,
		now:           time.Now,
		buffer:        make([]export.Payload, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchSize > 1 && cfg.BatchTimeout > 0 {
		a.flushTicker = time.NewTicker(cfg.BatchTimeout)
		go a.flusher()
	} else {
		close(a.flushDoneChan)
	}

	return a, nil
}

// Write buffers payload and flushes once the batch is full.
func (a *Archive) Write(ctx context.Context, payload export.Payload) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrOperationTimeout, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errFactory.New(ErrArchiveClosed)
	}

	payload.Body = append([]byte(nil), payload.Body...)
	a.buffer = append(a.buffer, payload)

	if len(a.buffer) >= a.cfg.BatchSize {
		return a.flush()
	}

	return nil
}

// Flush writes any buffered payloads.
func (a *Archive) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.flush()
}

func (a *Archive) flusher() {
	defer close(a.flushDoneChan)

	for {
		select {
		case <-a.flushTicker.C:
			a.mu.Lock()
			_ = a.flush()
			a.mu.Unlock()
		case <-a.shutdownChan:
			return
		}
	}
}

func (a *Archive) flush() error {
	if len(a.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := a.db.Begin()
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				a.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
		}
	}()

	stmt, err := tx.Prepare(insertExportSQL)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to prepare statement")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, p := range a.buffer {
		if _, err := stmt.Exec(p.Timestamp.UnixMilli(), p.Format.String(), p.Body); err != nil {
			a.logger.Error().Err(err).Msg("Failed to execute insert")
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if a.cfg.Retention > 0 {
		cutoff := a.now().Add(-a.cfg.Retention).UnixMilli()
		if _, err := tx.Exec(pruneExportsSQL, cutoff); err != nil {
			a.logger.Error().Err(err).Msg("Failed to prune expired exports")
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	a.logger.Debug().Int("records", len(a.buffer)).Msg("Flushed exports to database")
	a.buffer = a.buffer[:0]

	return nil
}

// Prune deletes payloads exported before cutoff and returns how many were
// removed.
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, pruneExportsSQL, cutoff.UnixMilli())
	if err != nil {
		return 0, errors.New().Wrap(ErrStorageAccess, err)
	}

	return res.RowsAffected()
}

// Recent returns up to limit archived payloads, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]Record, error) {
	errFactory := errors.New()

	rows, err := a.db.QueryContext(ctx, listExportsSQL, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r  Record
			ms int64
		)
		if err := rows.Scan(&r.ID, &ms, &r.Format, &r.Payload); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		r.ExportedAt = time.UnixMilli(ms)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return records, nil
}

// Ping checks the database connection. It fits health.PingProbe.
func (a *Archive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close flushes buffered payloads and closes the database. It is safe to
// call more than once.
func (a *Archive) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.flushTicker != nil {
		a.flushTicker.Stop()
		close(a.shutdownChan)
	}
	<-a.flushDoneChan

	a.mu.Lock()
	flushErr := a.flush()
	a.mu.Unlock()

	if _, err := a.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		a.logger.Debug().Err(err).Msg("Failed to checkpoint WAL")
	}

	if err := a.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	a.logger.Info().Msg("Telemetry archive closed")

	return flushErr
}
