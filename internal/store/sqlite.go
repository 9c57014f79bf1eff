package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/BuzzLyutic/task-sync/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_date    TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL DEFAULT 'MEDIUM',
	status      TEXT NOT NULL DEFAULT 'NOT_STARTED',
	tags        TEXT NOT NULL DEFAULT '',
	is_synced   INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_unsynced ON tasks(is_synced);
`

// SQLiteStore - встраиваемое локальное хранилище (ncruces/go-sqlite3, WAL)
type SQLiteStore struct {
	db  *sql.DB
	hub *watchHub
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	connStr := "file:" + path
	if path != ":memory:" {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// database/sql открывает соединения лениво; для :memory: каждое новое
	// соединение - пустая база, поэтому держим ровно одно
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.hub = newWatchHub(s.GetAll)
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteColumns = "id, title, description, due_date, priority, status, tags, is_synced, created_at, updated_at"

func (s *SQLiteStore) scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var (
		t                  model.Task
		priority, status   string
		tags               string
		synced             int
		createdAt, updated int64
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &priority, &status, &tags, &synced, &createdAt, &updated)
	if err != nil {
		return t, err
	}
	t.Priority = model.ParsePriority(priority)
	t.Status = model.ParseStatus(status)
	t.Tags = model.SplitTags(tags)
	t.IsSynced = synced != 0
	t.CreatedAt = time.UnixMilli(createdAt)
	t.UpdatedAt = time.UnixMilli(updated)
	return t, nil
}

func (s *SQLiteStore) GetAll(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM tasks
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collect(rows)
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (model.Task, error) {
	t, err := s.scanTask(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteColumns+` FROM tasks WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

func (s *SQLiteStore) GetUnsynced(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM tasks
		WHERE is_synced = 0
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collect(rows)
}

func (s *SQLiteStore) collect(rows *sql.Rows) ([]model.Task, error) {
	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) Insert(ctx context.Context, t model.Task) error {
	t = withDefaults(t)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			due_date = excluded.due_date,
			priority = excluded.priority,
			status = excluded.status,
			tags = excluded.tags,
			is_synced = excluded.is_synced,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, t.ID, t.Title, t.Description, t.DueDate, string(t.Priority), string(t.Status),
		model.JoinTags(t.Tags), boolToInt(t.IsSynced), t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli())
	if err != nil {
		return err
	}
	s.hub.notify()
	return nil
}

func (s *SQLiteStore) InsertMany(ctx context.Context, ts []model.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range ts {
		t = withDefaults(t)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (`+sqliteColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				due_date = excluded.due_date,
				priority = excluded.priority,
				status = excluded.status,
				tags = excluded.tags,
				is_synced = excluded.is_synced,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at
		`, t.ID, t.Title, t.Description, t.DueDate, string(t.Priority), string(t.Status),
			model.JoinTags(t.Tags), boolToInt(t.IsSynced), t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli()); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.hub.notify()
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, t model.Task) (model.Task, error) {
	t.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, due_date = ?, priority = ?, status = ?, tags = ?, is_synced = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, t.Description, t.DueDate, string(t.Priority), string(t.Status),
		model.JoinTags(t.Tags), boolToInt(t.IsSynced), t.UpdatedAt.UnixMilli(), t.ID)
	if err != nil {
		return t, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t, ErrorNotFound
	}
	s.hub.notify()
	return s.GetByID(ctx, t.ID)
}

func (s *SQLiteStore) DeleteByID(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrorNotFound
	}
	s.hub.notify()
	return nil
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, id string) error {
	return s.setSynced(ctx, id, 1)
}

func (s *SQLiteStore) MarkUnsynced(ctx context.Context, id string) error {
	return s.setSynced(ctx, id, 0)
}

func (s *SQLiteStore) setSynced(ctx context.Context, id string, synced int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE tasks SET is_synced = ? WHERE id = ?", synced, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrorNotFound
	}
	s.hub.notify()
	return nil
}

// RenameID атомарно переписывает ключ записи. UPDATE OR REPLACE покрывает
// случай, когда запись под новым ключом уже пришла через pull.
func (s *SQLiteStore) RenameID(ctx context.Context, oldID, newID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE OR REPLACE tasks SET id = ? WHERE id = ?", newID, oldID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrorNotFound
	}
	s.hub.notify()
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return err
	}
	s.hub.notify()
	return nil
}

func (s *SQLiteStore) Watch(ctx context.Context) <-chan []model.Task {
	return s.hub.Watch(ctx)
}

func withDefaults(t model.Task) model.Task {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.Status == "" {
		t.Status = model.StatusNotStarted
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
