// Package checkpoint implements the durable thread registry (spec.md
// §4.6): allocate/resume a checkpoint_thread_id with TTL-based expiry,
// falling back to an in-memory map whenever the backing store is
// unreachable. Grounded on the teacher's pkg/cleanup.Service ticker-driven
// sweep shape.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/truthgraph/pkg/config"
	"github.com/codeready-toolchain/truthgraph/pkg/metrics"
)

// Resolution is the outcome of reconciling a request's checkpoint fields
// against the registry.
type Resolution struct {
	ThreadID string
	Resumed  bool
	Expired  bool
}

// StepSaver is the DAG step-level checkpoint payload sink (spec.md §4.6/§9).
// No DAG runtime in this repo ships its own saver; the design must operate
// correctly when this is nil.
type StepSaver interface {
	SaveStep(ctx context.Context, threadID, stageID string, payload []byte) error
}

// Manager resolves checkpoint_thread_id for each request and periodically
// sweeps expired rows. It never fails a request for storage reasons: on DB
// error it degrades to an in-memory map for the process lifetime.
type Manager struct {
	db        *sql.DB
	cfg       config.CheckpointConfig
	degraded  bool
	degradedMu sync.Mutex

	mem   map[string]time.Time
	memMu sync.Mutex

	sweeper *cron.Cron
}

func New(db *sql.DB, cfg config.CheckpointConfig) *Manager {
	return &Manager{
		db:  db,
		cfg: cfg,
		mem: make(map[string]time.Time),
	}
}

// Start launches the background TTL-expiry sweep on a robfig/cron/v3
// schedule (an "@every" spec derived from the configured TTL), grounded on
// the teacher's own pkg/cleanup.Service periodic-sweep shape. A no-op when
// the backend is "none".
func (m *Manager) Start(ctx context.Context) {
	if m.cfg.Backend == config.CheckpointBackendNone || m.sweeper != nil {
		return
	}
	interval := m.cfg.TTL / 4
	if interval <= 0 {
		interval = time.Minute
	}
	m.sweeper = cron.New()
	_, err := m.sweeper.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		m.sweepExpired(ctx)
	})
	if err != nil {
		slog.Error("checkpoint: failed to schedule sweep, TTL expiry disabled", "error", err)
		m.sweeper = nil
		return
	}
	m.sweeper.Start()
}

func (m *Manager) Stop() {
	if m.sweeper == nil {
		return
	}
	<-m.sweeper.Stop().Done()
}

// Resolve implements spec.md §4.6's allocate/resume/expire decision: absent
// id -> allocate; present+resume -> look up, expiring on stale last_seen;
// otherwise treat as a fresh id (no resume requested).
func (m *Manager) Resolve(ctx context.Context, threadID string, resume bool) Resolution {
	if m.cfg.Backend == config.CheckpointBackendNone {
		if threadID == "" {
			threadID = uuid.NewString()
		}
		return Resolution{ThreadID: threadID, Resumed: false, Expired: false}
	}

	if threadID == "" {
		id := uuid.NewString()
		m.touch(ctx, id)
		return Resolution{ThreadID: id}
	}

	if !resume {
		m.touch(ctx, threadID)
		return Resolution{ThreadID: threadID}
	}

	lastSeen, found := m.lookup(ctx, threadID)
	if !found {
		metrics.RecordCheckpointExpired()
		id := uuid.NewString()
		m.touch(ctx, id)
		return Resolution{ThreadID: id, Expired: true}
	}
	if time.Since(lastSeen) > m.cfg.TTL {
		metrics.RecordCheckpointExpired()
		m.deleteRow(ctx, threadID)
		id := uuid.NewString()
		m.touch(ctx, id)
		return Resolution{ThreadID: id, Expired: true}
	}
	metrics.RecordCheckpointHit("resolve")
	m.touch(ctx, threadID)
	return Resolution{ThreadID: threadID, Resumed: true}
}

func (m *Manager) isDegraded() bool {
	m.degradedMu.Lock()
	defer m.degradedMu.Unlock()
	return m.degraded
}

func (m *Manager) degrade(err error) {
	m.degradedMu.Lock()
	defer m.degradedMu.Unlock()
	if !m.degraded {
		slog.Warn("checkpoint: storage unreachable, degrading to in-memory map", "error", err)
		m.degraded = true
	}
}

func (m *Manager) lookup(ctx context.Context, threadID string) (time.Time, bool) {
	if m.db == nil || m.isDegraded() {
		m.memMu.Lock()
		defer m.memMu.Unlock()
		t, ok := m.mem[threadID]
		return t, ok
	}
	var lastSeen time.Time
	err := m.db.QueryRowContext(ctx,
		`SELECT last_seen FROM `+m.cfg.TableName+` WHERE thread_id = $1`, threadID,
	).Scan(&lastSeen)
	if err == sql.ErrNoRows {
		return time.Time{}, false
	}
	if err != nil {
		m.degrade(err)
		m.memMu.Lock()
		defer m.memMu.Unlock()
		t, ok := m.mem[threadID]
		return t, ok
	}
	return lastSeen, true
}

func (m *Manager) touch(ctx context.Context, threadID string) {
	now := time.Now()
	if m.db == nil || m.isDegraded() {
		m.memMu.Lock()
		m.mem[threadID] = now
		m.memMu.Unlock()
		return
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO `+m.cfg.TableName+` (thread_id, last_seen) VALUES ($1, $2)
		ON CONFLICT (thread_id) DO UPDATE SET last_seen = EXCLUDED.last_seen`,
		threadID, now)
	if err != nil {
		m.degrade(err)
		m.memMu.Lock()
		m.mem[threadID] = now
		m.memMu.Unlock()
	}
}

func (m *Manager) deleteRow(ctx context.Context, threadID string) {
	if m.db == nil || m.isDegraded() {
		m.memMu.Lock()
		delete(m.mem, threadID)
		m.memMu.Unlock()
		return
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM `+m.cfg.TableName+` WHERE thread_id = $1`, threadID); err != nil {
		m.degrade(err)
	}
}

func (m *Manager) sweepExpired(ctx context.Context) {
	if m.db == nil || m.isDegraded() {
		m.memMu.Lock()
		for id, t := range m.mem {
			if time.Since(t) > m.cfg.TTL {
				delete(m.mem, id)
			}
		}
		m.memMu.Unlock()
		return
	}
	cutoff := time.Now().Add(-m.cfg.TTL)
	res, err := m.db.ExecContext(ctx, `DELETE FROM `+m.cfg.TableName+` WHERE last_seen < $1`, cutoff)
	if err != nil {
		m.degrade(err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("checkpoint: swept expired threads", "count", n)
	}
}
