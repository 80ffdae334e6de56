// Package sqlite is a SQLite-backed TurnStore.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/eventchat/internal/domain"
	"github.com/tjfontaine/eventchat/internal/storage"
)

// Store is a SQLite implementation of TurnStore.
type Store struct {
	db *sql.DB
}

var _ storage.TurnStore = (*Store)(nil)

// New opens (and if necessary initializes) a store at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			model TEXT NOT NULL,
			status TEXT NOT NULL,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			response_chars INTEGER NOT NULL DEFAULT 0,
			event_details TEXT,
			error_message TEXT,
			duration_ns INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_status ON turns(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveTurn(ctx context.Context, rec *storage.TurnRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, model, status, prompt_tokens, response_chars, event_details, error_message, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			prompt_tokens = excluded.prompt_tokens,
			response_chars = excluded.response_chars,
			event_details = excluded.event_details,
			error_message = excluded.error_message,
			duration_ns = excluded.duration_ns`,
		rec.ID, rec.SessionID, rec.Model, string(rec.Status), rec.PromptTokens,
		rec.ResponseChars, rec.EventDetails, rec.ErrorMessage,
		rec.Duration.Nanoseconds(), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

func (s *Store) GetTurn(ctx context.Context, id string) (*storage.TurnRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, model, status, prompt_tokens, response_chars, event_details, error_message, duration_ns, created_at
		FROM turns WHERE id = ?`, id)

	rec, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("turn %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get turn: %w", err)
	}
	return rec, nil
}

func (s *Store) ListTurns(ctx context.Context, opts storage.ListOptions) ([]*storage.TurnRecord, error) {
	query := `
		SELECT id, session_id, model, status, prompt_tokens, response_chars, event_details, error_message, duration_ns, created_at
		FROM turns WHERE 1=1`
	var args []any

	if opts.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, opts.SessionID)
	}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY created_at"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var result []*storage.TurnRecord
	for rows.Next() {
		rec, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTurn(row rowScanner) (*storage.TurnRecord, error) {
	var rec storage.TurnRecord
	var status string
	var durationNS int64

	err := row.Scan(&rec.ID, &rec.SessionID, &rec.Model, &status,
		&rec.PromptTokens, &rec.ResponseChars, &rec.EventDetails,
		&rec.ErrorMessage, &durationNS, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.TurnStatus(status)
	rec.Duration = time.Duration(durationNS)
	return &rec, nil
}
