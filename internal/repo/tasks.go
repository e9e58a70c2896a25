package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskline/internal/domain"
	"taskline/internal/events"
)

const taskColumns = `id,list_id,name,COALESCE(description,''),priority,created_at,completed_at,archived_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t         domain.Task
		priority  string
		created   string
		completed sql.NullString
		archived  sql.NullString
	)
	if err := row.Scan(&t.ID, &t.ListID, &t.Name, &t.Description, &priority, &created, &completed, &archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, ErrNotFound
		}
		return t, err
	}
	t.Priority = domain.Priority(priority)
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	if t.CompletedAt, err = parseNullTime(completed); err != nil {
		return t, err
	}
	if t.ArchivedAt, err = parseNullTime(archived); err != nil {
		return t, err
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(name,description,created_at,priority,list_id) VALUES (?,?,?,?,?)`,
		t.Name, nullable(t.Description), formatTime(t.CreatedAt), string(t.Priority), t.ListID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return domain.Task{}, err
	}
	payload := events.Payload{"list_id": t.ListID, "name": t.Name, "priority": t.Priority}
	if err := r.Events.Append(ctx, tx, events.TaskCreated, "task", t.ID, payload); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) getTaskTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Task, error) {
	return scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

// ListTasks returns the tasks of a list in insertion order. Unless
// includeClosed is set, completed and archived tasks are left out.
func (r Repo) ListTasks(ctx context.Context, listID int64, includeClosed bool) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE list_id=?`
	if !includeClosed {
		query += ` AND completed_at IS NULL AND archived_at IS NULL`
	}
	query += ` ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CompleteTask stamps completed_at. It returns ErrNotFound for unknown ids
// and ErrAlreadySet when the task was completed before.
func (r Repo) CompleteTask(ctx context.Context, id int64, at time.Time) (domain.Task, error) {
	return r.stampTask(ctx, id, "completed_at", events.TaskCompleted, at)
}

// ArchiveTask stamps archived_at, with the same errors as CompleteTask.
func (r Repo) ArchiveTask(ctx context.Context, id int64, at time.Time) (domain.Task, error) {
	return r.stampTask(ctx, id, "archived_at", events.TaskArchived, at)
}

func (r Repo) stampTask(ctx context.Context, id int64, column, evtType string, at time.Time) (domain.Task, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := r.getTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET `+column+`=? WHERE id=? AND `+column+` IS NULL`, formatTime(at), id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t, ErrAlreadySet
	}
	if err := r.Events.Append(ctx, tx, evtType, "task", id, events.Payload{"list_id": t.ListID}); err != nil {
		return domain.Task{}, err
	}
	if t, err = r.getTaskTx(ctx, tx, id); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}
