package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the append-only records of a deployment: the action
// audit log, command history, session log, notes and the usage ledger.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates/opens the journal database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection avoids writer lock contention between the turn
	// worker and the reminder poller.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			created_at_ms INTEGER NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS command_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS command_history_source_idx ON command_history(source, id DESC);`,
		`CREATE TABLE IF NOT EXISTS session_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS notes (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS usage_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			model TEXT NOT NULL DEFAULT '',
			prompt_tokens INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			cost REAL NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init journal schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// AppendAudit records one dispatched action.
func (s *SQLiteStore) AppendAudit(ctx context.Context, rec AuditRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	rec.Timestamp = s.stamp(rec.Timestamp)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log(id, created_at_ms, kind, detail, status) VALUES(?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixMilli(), rec.Kind, rec.Detail, rec.Status)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit returns up to limit records, newest last. limit <= 0 means all.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]AuditRecord, error) {
	q := `SELECT id, created_at_ms, kind, detail, status FROM (
		SELECT seq, id, created_at_ms, kind, detail, status FROM audit_log ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, q, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var ms int64
		if err := rows.Scan(&rec.ID, &ms, &rec.Kind, &rec.Detail, &rec.Status); err != nil {
			return nil, err
		}
		rec.Timestamp = fromMillis(ms)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearAudit(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_log`)
	return err
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, text, source string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_history(text, source, created_at_ms) VALUES(?, ?, ?)`,
		text, source, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns up to limit entries, newest last, optionally filtered by source.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int, source string) ([]HistoryEntry, error) {
	q := `SELECT id, text, source, created_at_ms FROM (
		SELECT id, text, source, created_at_ms FROM command_history
		WHERE (? = '' OR source = ?) ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q, source, source, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var ms int64
		if err := rows.Scan(&e.ID, &e.Text, &e.Source, &ms); err != nil {
			return nil, err
		}
		e.CreatedAt = fromMillis(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearHistory(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM command_history`)
	return err
}

func (s *SQLiteStore) AppendSessionLog(ctx context.Context, kind, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_log(kind, message, created_at_ms) VALUES(?, ?, ?)`,
		kind, message, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append session log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSessionLog(ctx context.Context, limit int) ([]SessionLogEntry, error) {
	q := `SELECT id, kind, message, created_at_ms FROM (
		SELECT id, kind, message, created_at_ms FROM session_log ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list session log: %w", err)
	}
	defer rows.Close()

	var out []SessionLogEntry
	for rows.Next() {
		var e SessionLogEntry
		var ms int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Message, &ms); err != nil {
			return nil, err
		}
		e.CreatedAt = fromMillis(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearSessionLog(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_log`)
	return err
}

func (s *SQLiteStore) AddNote(ctx context.Context, text string) (Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, fmt.Errorf("note text is required")
	}
	note := Note{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Text:      text,
		CreatedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes(id, text, created_at_ms) VALUES(?, ?, ?)`,
		note.ID, note.Text, note.CreatedAt.UnixMilli())
	if err != nil {
		return Note{}, fmt.Errorf("add note: %w", err)
	}
	return note, nil
}

func (s *SQLiteStore) ListNotes(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, created_at_ms FROM notes ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		var ms int64
		if err := rows.Scan(&n.ID, &n.Text, &ms); err != nil {
			return nil, err
		}
		n.CreatedAt = fromMillis(ms)
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNote reports whether a note with id existed.
func (s *SQLiteStore) DeleteNote(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ClearNotes(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notes`)
	return err
}

func (s *SQLiteStore) RecordUsage(ctx context.Context, rec UsageRecord) error {
	rec.CreatedAt = s.stamp(rec.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_ledger(model, prompt_tokens, completion_tokens, cost, created_at_ms) VALUES(?, ?, ?, ?, ?)`,
		rec.Model, rec.PromptTokens, rec.CompletionTokens, rec.Cost, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UsageTotals(ctx context.Context) (UsageTotals, error) {
	var t UsageTotals
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(cost), 0) FROM usage_ledger`,
	).Scan(&t.Calls, &t.PromptTokens, &t.CompletionTokens, &t.Cost)
	if err != nil {
		return UsageTotals{}, fmt.Errorf("usage totals: %w", err)
	}
	return t, nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
