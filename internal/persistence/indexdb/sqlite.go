package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	_ "modernc.org/sqlite"

	"opendoors.ai/internal/persistence/snapshot"
	"opendoors.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read model of the audit stream. Writes are queued
// and applied by one writer goroutine; the JSONL audit log stays the source of
// truth, so a full queue drops entries instead of stalling the simulation.
type SQLiteIndex struct {
	db *sql.DB

	// mu orders sends on ch against close(ch).
	mu   sync.RWMutex
	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqSnapshot
	reqSync
)

type req struct {
	kind reqKind

	audit    world.AuditEntry
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	Chunks     int
	Doors      int
	Containers int
	Switches   int
	Prefabs    int
}

type Stats struct {
	DroppedTotal  uint64
	QueueDepth    int
	QueueCapacity int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, oops.Code("INDEX_INVALID").Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, oops.With("path", path).Wrapf(err, "pragmas")
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, oops.With("path", path).Wrapf(err, "schema")
	}

	s := &SQLiteIndex{
		db: db,
		// Resets emit one entry per door; leave room for bursts.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			id TEXT PRIMARY KEY,
			tick INTEGER NOT NULL,
			world_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action_tick ON audits(action, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, z, y, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			doors INTEGER NOT NULL,
			containers INTEGER NOT NULL,
			switches INTEGER NOT NULL,
			prefabs INTEGER NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// WriteAudit implements world.AuditLogger.
func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry})
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Chunks:     len(snap.Chunks),
		Doors:      len(snap.Doors),
		Containers: len(snap.Containers),
		Switches:   len(snap.Switches),
		Prefabs:    len(snap.Prefabs),
	}})
}

// Sync waits until everything queued before the call is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil {
		return oops.Code("INDEX_CLOSED").Errorf("index closed")
	}
	done := make(chan struct{})
	if err := s.sendSync(ctx, done); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) sendSync(ctx context.Context, done chan struct{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return oops.Code("INDEX_CLOSED").Errorf("index closed")
	}
	select {
	case s.ch <- req{kind: reqSync, done: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CountAudits counts committed entries with the given action; "" counts all.
func (s *SQLiteIndex) CountAudits(ctx context.Context, action string) (int, error) {
	var (
		n   int
		err error
	)
	if action == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audits`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audits WHERE action = ?`, action).Scan(&n)
	}
	if err != nil {
		return 0, oops.With("action", action).Wrap(err)
	}
	return n, nil
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		DroppedTotal:  s.dropped.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(id,tick,world_id,actor,action,x,y,z,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,chunks,doors,containers,switches,prefabs) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					a.ID,
					int64(a.Tick),
					a.WorldID,
					a.Actor,
					a.Action,
					a.Pos[0], a.Pos[1], a.Pos[2],
					a.Reason,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Tick),
					sn.Path,
					sn.Chunks,
					sn.Doors,
					sn.Containers,
					sn.Switches,
					sn.Prefabs,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
