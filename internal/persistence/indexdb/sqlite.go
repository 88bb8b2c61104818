package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelfx.dev/internal/sim/catalogs"
	"voxelfx.dev/internal/sim/region"
	"voxelfx.dev/internal/sim/tuning"
)

const DefaultQueue = 4096

// SQLiteIndex is a secondary read model of the tick journal. Writes are
// queued and applied by one goroutine; the JSONL journal stays the source of
// truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan region.TickLogEntry
	wg   sync.WaitGroup
	once sync.Once

	closed    atomic.Bool
	dropTicks atomic.Uint64
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTickTotal uint64 `json:"drop_tick_total"`
}

func OpenSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if queue <= 0 {
		queue = DefaultQueue
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan region.TickLogEntry, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; NORMAL is enough for a derived index.
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
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			region TEXT NOT NULL,
			tick INTEGER NOT NULL,
			live INTEGER NOT NULL,
			advanced INTEGER NOT NULL,
			terminated INTEGER NOT NULL,
			faults INTEGER NOT NULL,
			candidates INTEGER NOT NULL,
			pairs_tested INTEGER NOT NULL,
			collisions INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (region, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS collisions (
			region TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			effect_a TEXT NOT NULL,
			effect_b TEXT NOT NULL,
			kind_a TEXT NOT NULL,
			kind_b TEXT NOT NULL,
			owner_a TEXT NOT NULL,
			owner_b TEXT NOT NULL,
			removed_a INTEGER NOT NULL,
			removed_b INTEGER NOT NULL,
			PRIMARY KEY (region, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_collisions_kinds ON collisions(kind_a, kind_b);`,
		`CREATE TABLE IF NOT EXISTS endings (
			region TEXT NOT NULL,
			effect TEXT NOT NULL,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			owner TEXT NOT NULL,
			reason TEXT NOT NULL,
			age INTEGER NOT NULL,
			PRIMARY KEY (region, effect)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_endings_kind ON endings(kind, reason);`,
		`CREATE INDEX IF NOT EXISTS idx_endings_owner_tick ON endings(owner, tick);`,
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
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteTick queues entry. It never blocks; entries are dropped and counted
// when the writer falls behind.
func (s *SQLiteIndex) WriteTick(entry region.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- entry:
	default:
		s.dropTicks.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTicks.Load(),
	}
}

// UpsertCatalogs records the kind catalog, its policy table and the tuning
// actually applied.
func (s *SQLiteIndex) UpsertCatalogs(cat *catalogs.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv

	defs := make([]catalogs.KindDef, 0, len(cat.Kinds()))
	for _, k := range cat.Kinds() {
		def, err := cat.Kind(k)
		if err != nil {
			return err
		}
		defs = append(defs, def)
	}
	if b, err := json.Marshal(defs); err == nil {
		rows = append(rows, kv{name: "kinds", digest: cat.Digest(), json: b})
	}
	if b, err := json.Marshal(cat.Policies().Entries()); err == nil {
		rows = append(rows, kv{name: "policy", digest: cat.Digest(), json: b})
	}
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, kv{name: "tuning", digest: sha256Hex(b), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(region,tick,live,advanced,terminated,faults,candidates,pairs_tested,collisions,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertCollision, _ := s.db.Prepare(`INSERT OR REPLACE INTO collisions(region,tick,seq,effect_a,effect_b,kind_a,kind_b,owner_a,owner_b,removed_a,removed_b) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertEnding, _ := s.db.Prepare(`INSERT OR REPLACE INTO endings(region,effect,tick,kind,owner,reason,age) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertCollision, insertEnding} {
			if st != nil {
				_ = st.Close()
			}
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
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for e := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		raw, _ := json.Marshal(e)
		if !exec(insertTick, e.Region, int64(e.Tick), e.Live, e.Advanced, e.Terminated, e.Faults,
			e.Candidates, e.PairsTested, len(e.Collisions), string(raw)) {
			continue
		}
		ok := true
		for i, h := range e.Collisions {
			if ok = exec(insertCollision, e.Region, int64(e.Tick), i, h.A.String(), h.B.String(),
				string(h.KindA), string(h.KindB), h.OwnerA.String(), h.OwnerB.String(),
				boolInt(h.RemovedA), boolInt(h.RemovedB)); !ok {
				break
			}
		}
		if !ok {
			continue
		}
		for _, end := range e.Ended {
			if !exec(insertEnding, e.Region, end.Effect.String(), int64(e.Tick),
				string(end.Kind), end.Owner.String(), end.Reason, end.Age) {
				break
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
