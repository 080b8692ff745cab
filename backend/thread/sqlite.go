package thread

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/corvid/threadview/backend/thread/migrations"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dir != "" && dir != "." && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	entries, err := migrations.SQLite.ReadDir("sqlite")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	for _, entry := range entries {
		data, err := migrations.SQLite.ReadFile("sqlite/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := db.Exec(string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateThread(ctx context.Context, title string) (Thread, error) {
	now := time.Now().UTC()
	t := Thread{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		t.ID, t.Title, t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) GetThread(ctx context.Context, id string) (Thread, error) {
	var t Thread
	var created, updated int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM threads WHERE id = ?`, id).Scan(&t.ID, &t.Title, &created, &updated)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("query thread: %w", err)
	}

	t.CreatedAt = time.Unix(0, created).UTC()
	t.UpdatedAt = time.Unix(0, updated).UTC()
	return t, nil
}

func (s *SQLiteStore) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM threads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var t Thread
		var created, updated int64
		if err := rows.Scan(&t.ID, &t.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		t.CreatedAt = time.Unix(0, created).UTC()
		t.UpdatedAt = time.Unix(0, updated).UTC()
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Role != RoleAssistant {
		msg.Complete = true
	}

	content, isJSON := msg.ContentString()
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return Message{}, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE threads SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt.UnixNano(), msg.ThreadID,
	)
	if err != nil {
		return Message{}, fmt.Errorf("touch thread: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Message{}, ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, role, content, content_is_json, metadata, created_at, complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, string(msg.Role), content, isJSON, string(metadata),
		msg.CreatedAt.UnixNano(), msg.Complete,
	)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, role, content, content_is_json, metadata, created_at, complete
		FROM messages WHERE thread_id = ? ORDER BY created_at`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			msg      Message
			role     string
			content  string
			isJSON   bool
			metadata string
			created  int64
		)
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &role, &content, &isJSON,
			&metadata, &created, &msg.Complete); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		msg.Role = Role(role)
		msg.CreatedAt = time.Unix(0, created).UTC()
		msg.Content = content
		if isJSON {
			var decoded any
			if err := json.Unmarshal([]byte(content), &decoded); err == nil {
				msg.Content = decoded
			}
		}
		if err := json.Unmarshal([]byte(metadata), &msg.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}

		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) CompleteMessage(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET complete = 1 WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("complete message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
