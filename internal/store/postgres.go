package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/task-sync/internal/model"
)

// PostgresStore - вариант хранилища на pgx для общего хоста
type PostgresStore struct {
	pool *pgxpool.Pool
	hub  *watchHub
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	s := &PostgresStore{pool: pool}
	s.hub = newWatchHub(s.GetAll)
	return s
}

const pgColumns = "id, title, description, due_date, priority, status, tags, is_synced, created_at, updated_at"

func scanPgTask(row pgx.Row) (model.Task, error) {
	var (
		t                model.Task
		priority, status string
		tags             string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &priority, &status, &tags, &t.IsSynced, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.Priority = model.ParsePriority(priority)
	t.Status = model.ParseStatus(status)
	t.Tags = model.SplitTags(tags)
	return t, nil
}

func (s *PostgresStore) GetAll(ctx context.Context) ([]model.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgColumns+`
		FROM tasks
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPg(rows)
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (model.Task, error) {
	t, err := scanPgTask(s.pool.QueryRow(ctx, `
		SELECT `+pgColumns+` FROM tasks WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

func (s *PostgresStore) GetUnsynced(ctx context.Context) ([]model.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgColumns+`
		FROM tasks
		WHERE NOT is_synced
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPg(rows)
}

func collectPg(rows pgx.Rows) ([]model.Task, error) {
	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanPgTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

const pgUpsert = `
	INSERT INTO tasks (id, title, description, due_date, priority, status, tags, is_synced, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		due_date = EXCLUDED.due_date,
		priority = EXCLUDED.priority,
		status = EXCLUDED.status,
		tags = EXCLUDED.tags,
		is_synced = EXCLUDED.is_synced,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at
`

func (s *PostgresStore) Insert(ctx context.Context, t model.Task) error {
	t = withDefaults(t)
	_, err := s.pool.Exec(ctx, pgUpsert,
		t.ID, t.Title, t.Description, t.DueDate, string(t.Priority), string(t.Status),
		model.JoinTags(t.Tags), t.IsSynced, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	s.hub.notify()
	return nil
}

func (s *PostgresStore) InsertMany(ctx context.Context, ts []model.Task) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, t := range ts {
		t = withDefaults(t)
		if _, err := tx.Exec(ctx, pgUpsert,
			t.ID, t.Title, t.Description, t.DueDate, string(t.Priority), string(t.Status),
			model.JoinTags(t.Tags), t.IsSynced, t.CreatedAt, t.UpdatedAt); err != nil {
			return mapPgError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.hub.notify()
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, t model.Task) (model.Task, error) {
	t.UpdatedAt = time.Now()
	updated, err := scanPgTask(s.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, due_date = $4, priority = $5, status = $6, tags = $7, is_synced = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+pgColumns+`
	`, t.ID, t.Title, t.Description, t.DueDate, string(t.Priority), string(t.Status),
		model.JoinTags(t.Tags), t.IsSynced))
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	if err != nil {
		return t, err
	}
	s.hub.notify()
	return updated, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	cmd, err := s.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	s.hub.notify()
	return nil
}

func (s *PostgresStore) MarkSynced(ctx context.Context, id string) error {
	return s.setSynced(ctx, id, true)
}

func (s *PostgresStore) MarkUnsynced(ctx context.Context, id string) error {
	return s.setSynced(ctx, id, false)
}

func (s *PostgresStore) setSynced(ctx context.Context, id string, synced bool) error {
	cmd, err := s.pool.Exec(ctx, "UPDATE tasks SET is_synced = $2 WHERE id = $1", id, synced)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	s.hub.notify()
	return nil
}

func (s *PostgresStore) RenameID(ctx context.Context, oldID, newID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Запись под новым ключом могла уже прийти через pull
	if _, err := tx.Exec(ctx, "DELETE FROM tasks WHERE id = $1", newID); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, "UPDATE tasks SET id = $2 WHERE id = $1", oldID, newID)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.hub.notify()
	return nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM tasks"); err != nil {
		return err
	}
	s.hub.notify()
	return nil
}

func (s *PostgresStore) Watch(ctx context.Context) <-chan []model.Task {
	return s.hub.Watch(ctx)
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return ErrorConflict
		}
	}
	return err
}
