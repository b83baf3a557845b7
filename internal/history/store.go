// Package history keeps the operator's command lines in a local SQLite file.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("history closed")

const schemaVersion = "1"

// Entry is one stored command line.
type Entry struct {
	ID     int64
	At     time.Time
	Line   string
	Origin string
}

// Store appends lines on a single writer goroutine so the input loop never waits on disk.
type Store struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
	failed  atomic.Uint64

	mu      sync.Mutex
	lastErr error
}

type req struct {
	entry Entry
	// sync is closed by the writer once every earlier entry is committed.
	sync chan struct{}
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty history path")
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

	s := &Store{
		db: db,
		ch: make(chan req, 1024),
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
		`CREATE TABLE IF NOT EXISTS lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			line TEXT NOT NULL,
			origin TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lines_origin ON lines(origin, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR IGNORE INTO meta(key, value) VALUES('schema_version', ?)`, schemaVersion)
	return err
}

// Append queues line. Blank lines are ignored; a full queue drops the line.
func (s *Store) Append(line, origin string) error {
	if s == nil {
		return nil
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if line == "" {
		return nil
	}
	e := Entry{At: time.Now().UTC(), Line: line, Origin: origin}
	select {
	case s.ch <- req{entry: e}:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Sync blocks until every line queued before it is written.
func (s *Store) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{sync: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports how many lines were lost to a full queue.
func (s *Store) Dropped() uint64 { return s.dropped.Load() }

// Failed reports how many queued lines could not be written, and the last
// write error.
func (s *Store) Failed() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed.Load(), s.lastErr
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.failed.Add(1)
	s.mu.Unlock()
}

// Recent returns the last n lines, oldest first. An empty origin matches all.
func (s *Store) Recent(ctx context.Context, n int, origin string) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	q := `SELECT id, at, line, origin FROM lines ORDER BY id DESC LIMIT ?`
	args := []any{n}
	if origin != "" {
		q = `SELECT id, at, line, origin FROM lines WHERE origin = ? ORDER BY id DESC LIMIT ?`
		args = []any{origin, n}
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.ID, &at, &e.Line, &e.Origin); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Lines returns just the text of Recent, for the editor's recall buffer.
func (s *Store) Lines(ctx context.Context, n int, origin string) ([]string, error) {
	es, err := s.Recent(ctx, n, origin)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Line)
	}
	return out, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Store) loop() {
	ctx := context.Background()
	insert, err := s.db.Prepare(`INSERT INTO lines(at, line, origin) VALUES(?,?,?)`)
	if err != nil {
		err = fmt.Errorf("prepare insert: %w", err)
		for r := range s.ch {
			if r.sync != nil {
				close(r.sync)
				continue
			}
			s.fail(err)
		}
		return
	}
	defer insert.Close()

	for r := range s.ch {
		if r.sync != nil {
			close(r.sync)
			continue
		}
		e := r.entry
		if _, err := insert.ExecContext(ctx, e.At.Format(time.RFC3339Nano), e.Line, e.Origin); err != nil {
			s.fail(fmt.Errorf("insert: %w", err))
		}
	}
}
