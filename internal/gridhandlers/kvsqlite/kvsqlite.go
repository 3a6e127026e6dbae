// Package kvsqlite is a persistent variant of the demo key/value
// partition handler, backed by one SQLite connection per partition.
//
// A grid node's affinity invariant means at most one goroutine ever
// touches a given partition's connection, so there is no contention to
// manage and no reason to share a single *sql.DB (and its internal
// connection pool) across partitions the way a typical web handler
// would.
package kvsqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/opsched/internal/gridhandlers"
	"github.com/me/opsched/internal/opsched"

	_ "modernc.org/sqlite"
)

// Handler is an OperationHandler bound to a single partition, backed by
// its own SQLite connection.
type Handler struct {
	partitionID int
	db          *sql.DB

	mu      sync.Mutex
	current opsched.Task

	logger *slog.Logger
}

// Open creates (or opens) the SQLite database at dbPath for partition
// partitionID and ensures its kv table exists. dbPath may be ":memory:"
// for tests, in which case every partition gets its own isolated
// in-memory database, matching the per-partition-connection model.
func Open(dbPath string, partitionID int, logger *slog.Logger) (*Handler, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("kvsqlite: open partition %d: %w", partitionID, err)
	}
	// Each handler owns an exclusive connection; a single-connection pool
	// keeps the sql package from opening a second one behind our back and
	// contending with itself over the same file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvsqlite: pragma wal: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvsqlite: create table: %w", err)
	}

	return &Handler{
		partitionID: partitionID,
		db:          db,
		logger:      logger.With("component", "kvsqlite", "partition", partitionID),
	}, nil
}

func (h *Handler) Close() error {
	return h.db.Close()
}

func (h *Handler) Process(ctx context.Context, task opsched.Task) error {
	h.mu.Lock()
	h.current = task
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.current = nil
		h.mu.Unlock()
	}()

	switch t := task.(type) {
	case *opsched.Operation:
		op, ok := t.Payload.(*gridhandlers.KVOperation)
		if !ok {
			return fmt.Errorf("kvsqlite: unrecognized operation payload %T", t.Payload)
		}
		if op.IsRead {
			var v string
			err := h.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, op.Key).Scan(&v)
			if err == sql.ErrNoRows {
				v = ""
			} else if err != nil {
				return fmt.Errorf("kvsqlite: read %q: %w", op.Key, err)
			}
			if op.Result != nil {
				op.Result <- v
			}
			return nil
		}
		_, err := h.db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, op.Key, op.Value)
		if err != nil {
			return fmt.Errorf("kvsqlite: write %q: %w", op.Key, err)
		}
		if op.Result != nil {
			op.Result <- op.Value
		}
		return nil

	case *opsched.PartitionRunnable:
		if t.Run != nil {
			t.Run()
		}
		return nil

	default:
		return fmt.Errorf("kvsqlite: unrecognized task type %T for partition handler", task)
	}
}

func (h *Handler) CurrentTask() (opsched.Task, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, false
	}
	return h.current, true
}

// Factory builds one Handler per partition, each with its own SQLite
// connection under baseDir (or all sharing ":memory:" when baseDir is
// empty, useful for tests). Generic and ad-hoc handlers have no
// partition to persist against, so those are delegated to an in-memory
// gridhandlers.Factory.
type Factory struct {
	dbPath func(partitionID int) string
	logger *slog.Logger
	memory *gridhandlers.Factory

	mu     sync.Mutex
	opened []*Handler
}

// NewFactory builds a sqlite-backed factory. When baseDir is empty every
// partition gets an independent in-memory database; otherwise partition p
// gets baseDir/partition-<p>.db.
func NewFactory(baseDir string, logger *slog.Logger) *Factory {
	return &Factory{
		dbPath: func(partitionID int) string {
			if baseDir == "" {
				return ":memory:"
			}
			return fmt.Sprintf("%s/partition-%d.db", baseDir, partitionID)
		},
		logger: logger,
		memory: gridhandlers.NewFactory(logger),
	}
}

func (f *Factory) CreatePartitionHandler(partitionID int) opsched.OperationHandler {
	h, err := Open(f.dbPath(partitionID), partitionID, f.logger)
	if err != nil {
		// CreatePartitionHandler has no error return (it mirrors the
		// scheduler construction contract in opsched.OperationHandlerFactory);
		// a handler that can't open its database logs and serves every
		// task as a failure instead of panicking the whole node.
		f.logger.Error("kvsqlite: failed to open partition database", "partition", partitionID, "error", err)
		return &brokenHandler{err: err}
	}
	f.mu.Lock()
	f.opened = append(f.opened, h)
	f.mu.Unlock()
	return h
}

func (f *Factory) CreateGenericOperationHandler() opsched.OperationHandler {
	return f.memory.CreateGenericOperationHandler()
}

func (f *Factory) CreateAdHocOperationHandler() opsched.OperationHandler {
	return f.memory.CreateAdHocOperationHandler()
}

// Close closes every partition connection this factory opened.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for _, h := range f.opened {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type brokenHandler struct {
	err error
}

func (b *brokenHandler) Process(ctx context.Context, task opsched.Task) error {
	return b.err
}

func (b *brokenHandler) CurrentTask() (opsched.Task, bool) {
	return nil, false
}
