package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/corvid/threadview/backend/notification/migrations"
)

// SQLiteStore implements Store on a SQLite database file. It can share the
// file with the thread store; table names do not overlap.
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

const notificationColumns = `id, user_id, title, message, type, category, thread_id, metadata,
	email_sent, email_sent_at, email_error, push_sent, push_sent_at, push_error,
	is_read, read_at, created_at, updated_at`

func (s *SQLiteStore) Insert(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return Notification{}, fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, category, thread_id, metadata,
			email_sent, email_error, push_sent, push_error, is_read, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Category, n.ThreadID, string(metadata),
		n.EmailSent, n.EmailError, n.PushSent, n.PushError, n.IsRead,
		n.CreatedAt.UnixNano(), n.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func scanNotification(scan func(dest ...any) error) (Notification, error) {
	var (
		n                                  Notification
		metadata                           string
		emailSentAt, pushSentAt, readAt    sql.NullInt64
		created, updated                   int64
	)
	err := scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Category, &n.ThreadID,
		&metadata, &n.EmailSent, &emailSentAt, &n.EmailError, &n.PushSent, &pushSentAt,
		&n.PushError, &n.IsRead, &readAt, &created, &updated)
	if err != nil {
		return n, err
	}

	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil {
			return n, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	n.CreatedAt = time.Unix(0, created).UTC()
	n.UpdatedAt = time.Unix(0, updated).UTC()
	n.EmailSentAt = nullableTime(emailSentAt)
	n.PushSentAt = nullableTime(pushSentAt)
	n.ReadAt = nullableTime(readAt)
	return n, nil
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

func (s *SQLiteStore) Get(ctx context.Context, userID, id string) (Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications WHERE id = ? AND user_id = ?`, id, userID)

	n, err := scanNotification(row.Scan)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	if err != nil {
		return n, fmt.Errorf("query notification: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string, filter ListFilter) ([]Notification, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if filter.IsRead != nil {
		where = append(where, "is_read = ?")
		args = append(args, *filter.IsRead)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	clause := strings.Join(where, " AND ")

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE `+clause, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + clause +
		` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

func (s *SQLiteStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) MarkRead(ctx context.Context, userID, id string, read bool) (Notification, error) {
	now := time.Now().UTC()
	var readAt any
	if read {
		readAt = now.UnixNano()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = ?, read_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		read, readAt, now.UnixNano(), id, userID,
	)
	if err != nil {
		return Notification{}, fmt.Errorf("mark read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Notification{}, ErrNotFound
	}
	return s.Get(ctx, userID, id)
}

func (s *SQLiteStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?, updated_at = ?
		WHERE user_id = ? AND is_read = 0`,
		now.UnixNano(), now.UnixNano(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(updated), nil
}

func (s *SQLiteStore) UpdateDelivery(ctx context.Context, id string, update DeliveryUpdate) error {
	now := time.Now().UTC()

	var emailSentAt, pushSentAt any
	if update.EmailSentAt != nil {
		emailSentAt = update.EmailSentAt.UnixNano()
	}
	if update.PushSentAt != nil {
		pushSentAt = update.PushSentAt.UnixNano()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET email_sent = ?, email_sent_at = ?, email_error = ?,
		    push_sent = ?, push_sent_at = ?, push_error = ?, updated_at = ?
		WHERE id = ?`,
		update.EmailSent, emailSentAt, update.EmailError,
		update.PushSent, pushSentAt, update.PushError, now.UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (AdminStats, error) {
	var stats AdminStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(email_sent), 0),
		       COALESCE(SUM(push_sent), 0),
		       COALESCE(SUM(CASE WHEN email_error != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN push_error != '' THEN 1 ELSE 0 END), 0),
		       COUNT(DISTINCT user_id)
		FROM notifications`).Scan(
		&stats.Total, &stats.Unread, &stats.EmailSent, &stats.PushSent,
		&stats.EmailFailed, &stats.PushFailed, &stats.Users,
	)
	if err != nil {
		return stats, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	var (
		p                      Preferences
		emailCats, pushCats    string
		tokenUpdated           sql.NullInt64
		created, updated       int64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, email_enabled, push_enabled, email_categories, push_categories,
		       email, push_token, push_token_updated_at, created_at, updated_at
		FROM notification_preferences WHERE user_id = ?`, userID).Scan(
		&p.UserID, &p.EmailEnabled, &p.PushEnabled, &emailCats, &pushCats,
		&p.Email, &p.PushToken, &tokenUpdated, &created, &updated,
	)
	if err == sql.ErrNoRows {
		return DefaultPreferences(userID), nil
	}
	if err != nil {
		return p, fmt.Errorf("query preferences: %w", err)
	}

	if err := json.Unmarshal([]byte(emailCats), &p.EmailCategories); err != nil {
		return p, fmt.Errorf("unmarshal email categories: %w", err)
	}
	if err := json.Unmarshal([]byte(pushCats), &p.PushCategories); err != nil {
		return p, fmt.Errorf("unmarshal push categories: %w", err)
	}
	p.PushTokenUpdatedAt = nullableTime(tokenUpdated)
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return p, nil
}

func (s *SQLiteStore) SavePreferences(ctx context.Context, prefs Preferences) (Preferences, error) {
	now := time.Now().UTC()
	if prefs.CreatedAt.IsZero() {
		prefs.CreatedAt = now
	}
	prefs.UpdatedAt = now

	emailCats, err := json.Marshal(prefs.EmailCategories)
	if err != nil {
		return Preferences{}, fmt.Errorf("marshal email categories: %w", err)
	}
	pushCats, err := json.Marshal(prefs.PushCategories)
	if err != nil {
		return Preferences{}, fmt.Errorf("marshal push categories: %w", err)
	}

	var tokenUpdated any
	if prefs.PushTokenUpdatedAt != nil {
		tokenUpdated = prefs.PushTokenUpdatedAt.UnixNano()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences
			(user_id, email_enabled, push_enabled, email_categories, push_categories,
			 email, push_token, push_token_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email_enabled = excluded.email_enabled,
			push_enabled = excluded.push_enabled,
			email_categories = excluded.email_categories,
			push_categories = excluded.push_categories,
			email = excluded.email,
			push_token = excluded.push_token,
			push_token_updated_at = excluded.push_token_updated_at,
			updated_at = excluded.updated_at`,
		prefs.UserID, prefs.EmailEnabled, prefs.PushEnabled, string(emailCats), string(pushCats),
		prefs.Email, prefs.PushToken, tokenUpdated,
		prefs.CreatedAt.UnixNano(), prefs.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return prefs, nil
}

func (s *SQLiteStore) RegisterPushToken(ctx context.Context, userID, token string) error {
	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	prefs.PushToken = token
	prefs.PushTokenUpdatedAt = &now
	_, err = s.SavePreferences(ctx, prefs)
	return err
}

// ClearPushToken drops the stored token, but only if it still matches; a
// token re-registered meanwhile is left alone.
func (s *SQLiteStore) ClearPushToken(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_preferences
		SET push_token = '', push_token_updated_at = NULL, updated_at = ?
		WHERE user_id = ? AND push_token = ?`,
		time.Now().UTC().UnixNano(), userID, token,
	)
	if err != nil {
		return fmt.Errorf("clear push token: %w", err)
	}
	return nil
}

const batchColumns = `id, title, message, type, category, send_email, send_push,
	user_ids, metadata, status, emails_sent, pushes_sent, failed, outcomes,
	created_at, updated_at, started_at, completed_at, cancelled_at`

func (s *SQLiteStore) InsertBatch(ctx context.Context, b Batch) (Batch, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = BatchPending
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Recipients = len(b.UserIDs)

	userIDs, err := json.Marshal(b.UserIDs)
	if err != nil {
		return Batch{}, fmt.Errorf("marshal user ids: %w", err)
	}
	metadata, err := json.Marshal(b.Metadata)
	if err != nil {
		return Batch{}, fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_batches (id, title, message, type, category,
			send_email, send_push, user_ids, metadata, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Message, b.Type, b.Category,
		b.SendEmail, b.SendPush, string(userIDs), string(metadata), string(b.Status),
		b.CreatedAt.UnixNano(), b.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return Batch{}, fmt.Errorf("insert batch: %w", err)
	}
	return b, nil
}

func scanBatch(scan func(dest ...any) error) (Batch, error) {
	var (
		b                               Batch
		userIDs, metadata, outcomes     string
		status                          string
		started, completed, cancelled   sql.NullInt64
		created, updated                int64
	)
	err := scan(&b.ID, &b.Title, &b.Message, &b.Type, &b.Category,
		&b.SendEmail, &b.SendPush, &userIDs, &metadata, &status,
		&b.EmailsSent, &b.PushesSent, &b.Failed, &outcomes,
		&created, &updated, &started, &completed, &cancelled)
	if err != nil {
		return b, err
	}

	if err := json.Unmarshal([]byte(userIDs), &b.UserIDs); err != nil {
		return b, fmt.Errorf("unmarshal user ids: %w", err)
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &b.Metadata); err != nil {
			return b, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if outcomes != "" && outcomes != "[]" {
		if err := json.Unmarshal([]byte(outcomes), &b.Outcomes); err != nil {
			return b, fmt.Errorf("unmarshal outcomes: %w", err)
		}
	}
	b.Status = BatchStatus(status)
	b.Recipients = len(b.UserIDs)
	b.CreatedAt = time.Unix(0, created).UTC()
	b.UpdatedAt = time.Unix(0, updated).UTC()
	b.StartedAt = nullableTime(started)
	b.CompletedAt = nullableTime(completed)
	b.CancelledAt = nullableTime(cancelled)
	return b, nil
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+`
		FROM notification_batches WHERE id = ?`, id)

	b, err := scanBatch(row.Scan)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, fmt.Errorf("query batch: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) ListBatches(ctx context.Context, limit, offset int) ([]Batch, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_batches`).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	query := `SELECT ` + batchColumns + ` FROM notification_batches ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, total, rows.Err()
}

func (s *SQLiteStore) MarkBatchSending(ctx context.Context, id string) error {
	now := time.Now().UTC().UnixNano()
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_batches SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(BatchSending), now, now, id, string(BatchPending),
	)
	if err != nil {
		return fmt.Errorf("mark batch sending: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.GetBatch(ctx, id); err != nil {
			return err
		}
		return ErrBatchFinished
	}
	return nil
}

func (s *SQLiteStore) UpdateBatchProgress(ctx context.Context, id string, progress BatchProgress) error {
	outcomes, err := json.Marshal(progress.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_batches
		SET emails_sent = ?, pushes_sent = ?, failed = ?, outcomes = ?, updated_at = ?
		WHERE id = ?`,
		progress.EmailsSent, progress.PushesSent, progress.Failed, string(outcomes),
		time.Now().UTC().UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("update batch progress: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CompleteBatch(ctx context.Context, id string) (Batch, error) {
	now := time.Now().UTC().UnixNano()
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_batches SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(BatchCompleted), now, now, id, string(BatchSending),
	)
	if err != nil {
		return Batch{}, fmt.Errorf("complete batch: %w", err)
	}
	return s.GetBatch(ctx, id)
}

func (s *SQLiteStore) CancelBatch(ctx context.Context, id string) (Batch, error) {
	now := time.Now().UTC().UnixNano()
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_batches SET status = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(BatchCancelled), now, now, id, string(BatchPending), string(BatchSending),
	)
	if err != nil {
		return Batch{}, fmt.Errorf("cancel batch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.GetBatch(ctx, id); err != nil {
			return Batch{}, err
		}
		return Batch{}, ErrBatchFinished
	}
	return s.GetBatch(ctx, id)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
