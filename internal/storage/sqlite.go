package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"querai-chat/internal/model"
)

const createChatsSQL = `
CREATE TABLE IF NOT EXISTS chats (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    title          TEXT NOT NULL DEFAULT '',
    data_source_id TEXT NOT NULL DEFAULT '',
    messages       TEXT NOT NULL DEFAULT '[]',
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_user_created ON chats(user_id, created_at);
`

// SQLiteStorage keeps chats in a single table. Every statement filters on
// user_id so one owner never sees another owner's rows.
type SQLiteStorage struct {
	dsn string
	db  *sql.DB
}

func NewSQLiteStorage(dsn string) *SQLiteStorage {
	return &SQLiteStorage{dsn: dsn}
}

func (s *SQLiteStorage) Init() error {
	if s.dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.dsn), 0755); err != nil {
			return fmt.Errorf("%w: create db directory: %v", ErrStorageInit, err)
		}
	}

	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return fmt.Errorf("%w: open sqlite: %v", ErrStorageInit, err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("%w: set WAL mode: %v", ErrStorageInit, err)
	}

	if _, err := db.Exec(createChatsSQL); err != nil {
		db.Close()
		return fmt.Errorf("%w: create tables: %v", ErrStorageInit, err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) InsertSession(ctx context.Context, rec *model.SessionRecord) (string, error) {
	session, err := prepareInsert(rec)
	if err != nil {
		return "", err
	}

	msgJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chats (id, user_id, title, data_source_id, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.OwnerID,
		session.Title,
		session.DataSourceID,
		string(msgJSON),
		session.CreatedAt.Format(time.RFC3339Nano),
		session.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return session.ID, nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, ownerID, chatID string) (*model.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, data_source_id, messages, created_at, updated_at
		FROM chats WHERE id = ? AND user_id = ?`, chatID, ownerID)

	var sess model.SessionRecord
	var msgJSON, createdAt, updatedAt string
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.Title, &sess.DataSourceID, &msgJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	if err := json.Unmarshal([]byte(msgJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("%w: unmarshal messages: %v", ErrInvalidData, err)
	}
	if sess.Messages == nil {
		sess.Messages = []json.RawMessage{}
	}
	return &sess, nil
}

func (s *SQLiteStorage) ListSessions(ctx context.Context, ownerID string) ([]model.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at FROM chats WHERE user_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	list := make([]model.SessionSummary, 0)
	for rows.Next() {
		var summary model.SessionSummary
		var createdAt string
		if err := rows.Scan(&summary.ID, &summary.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		summary.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		list = append(list, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	// Timestamps are text, so order in Go rather than trusting lexical order.
	sortNewestFirst(list)
	return list, nil
}

func (s *SQLiteStorage) UpdateTitle(ctx context.Context, ownerID, chatID, title string) error {
	return s.exec(ctx, `UPDATE chats SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		title, time.Now().UTC().Format(time.RFC3339Nano), chatID, ownerID)
}

func (s *SQLiteStorage) BindDataSource(ctx context.Context, ownerID, chatID, dataSourceID string) error {
	return s.exec(ctx, `UPDATE chats SET data_source_id = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		dataSourceID, time.Now().UTC().Format(time.RFC3339Nano), chatID, ownerID)
}

func (s *SQLiteStorage) DeleteSession(ctx context.Context, ownerID, chatID string) error {
	return s.exec(ctx, `DELETE FROM chats WHERE id = ? AND user_id = ?`, chatID, ownerID)
}

func (s *SQLiteStorage) DeleteAllSessions(ctx context.Context, ownerID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE user_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return int(n), nil
}

// exec runs a single-row statement and maps zero affected rows to
// ErrSessionNotFound.
func (s *SQLiteStorage) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
