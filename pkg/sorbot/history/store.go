// Package history implements the SQLite-backed conversation store.
// Each conversant (JID) owns an append-only sequence of turns that is
// replayed to rebuild model context. Rows are never updated or deleted.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind discriminates the stored content encoding.
type ContentKind int

const (
	// PlainText content is stored as-is (assistant turns).
	PlainText ContentKind = iota

	// StructuredParts content is stored as a JSON parts array
	// (user turns, legacy row format of the original database).
	StructuredParts
)

// Content is the tagged union over the two row encodings. Resolution
// happens at read time based on the row's role, so replay logic never
// guesses at the encoding.
type Content struct {
	Kind ContentKind
	Text string
}

// part is the structured element stored for user turns.
type part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Turn is one persisted conversation entry.
type Turn struct {
	// ID is assigned by SQLite (AUTOINCREMENT), monotonic per store.
	ID int64

	// Conversant is the owning identity (JID).
	Conversant string

	Role    Role
	Content Content
}

// Store persists conversation turns in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the conversation database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With("component", "history"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

// initSchema creates the conversation table if missing. The column names
// match the original database so existing data stays readable.
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversation (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			user    TEXT,
			role    TEXT,
			content TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_conversation_user ON conversation(user, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append persists one turn for the conversant. User turns are encoded as
// a JSON parts array, assistant turns as plain text.
func (s *Store) Append(ctx context.Context, conversant string, role Role, text string) error {
	stored, err := encodeContent(role, text)
	if err != nil {
		return fmt.Errorf("encoding turn: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO conversation(user, role, content) VALUES(?, ?, ?)",
		conversant, string(role), stored)
	if err != nil {
		return fmt.Errorf("appending turn: %w", err)
	}
	return nil
}

// List returns all turns for the conversant in creation order.
func (s *Store) List(ctx context.Context, conversant string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, content FROM conversation WHERE user = ? ORDER BY id",
		conversant)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			id      int64
			role    string
			content string
		)
		if err := rows.Scan(&id, &role, &content); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}

		turns = append(turns, Turn{
			ID:         id,
			Conversant: conversant,
			Role:       Role(role),
			Content:    decodeContent(Role(role), content),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	return turns, nil
}

// encodeContent produces the stored column value for a turn.
func encodeContent(role Role, text string) (string, error) {
	if role == RoleAssistant {
		return text, nil
	}
	data, err := json.Marshal([]part{{Type: "text", Text: text}})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeContent resolves the tagged union by role. Assistant rows are
// plain text; user rows are a JSON parts array. A user row that fails to
// parse is treated as plain text so a single malformed row cannot poison
// the whole replay.
func decodeContent(role Role, stored string) Content {
	if role == RoleAssistant {
		return Content{Kind: PlainText, Text: stored}
	}

	var parts []part
	if err := json.Unmarshal([]byte(stored), &parts); err != nil || len(parts) == 0 {
		return Content{Kind: PlainText, Text: stored}
	}
	return Content{Kind: StructuredParts, Text: parts[0].Text}
}
