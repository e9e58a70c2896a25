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

// Repo is the SQLite-backed task store.
type Repo struct {
	DB     *sql.DB
	Events events.Writer
}

var (
	ErrNotFound = errors.New("not found")
	// ErrAlreadySet is returned when a completion or archive timestamp is
	// already present.
	ErrAlreadySet = errors.New("already set")
)

func New(db *sql.DB) Repo {
	return Repo{DB: db}
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

const listColumns = `id,name,COALESCE(description,''),created_at,archived_at`

func scanList(row rowScanner) (domain.List, error) {
	var (
		l        domain.List
		created  string
		archived sql.NullString
	)
	if err := row.Scan(&l.ID, &l.Name, &l.Description, &created, &archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return l, ErrNotFound
		}
		return l, err
	}
	var err error
	if l.CreatedAt, err = parseTime(created); err != nil {
		return l, err
	}
	if l.ArchivedAt, err = parseNullTime(archived); err != nil {
		return l, err
	}
	return l, nil
}

func (r Repo) InsertList(ctx context.Context, l domain.List) (domain.List, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.List{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO lists(name,description,created_at) VALUES (?,?,?)`,
		l.Name, nullable(l.Description), formatTime(l.CreatedAt))
	if err != nil {
		return domain.List{}, fmt.Errorf("insert list: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return domain.List{}, err
	}
	if err := r.Events.Append(ctx, tx, events.ListCreated, "list", l.ID, events.Payload{"name": l.Name}); err != nil {
		return domain.List{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.List{}, err
	}
	return l, nil
}

func (r Repo) GetList(ctx context.Context, id int64) (domain.List, error) {
	return scanList(r.DB.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE id=?`, id))
}

// ListLists returns every list, archived ones included, oldest first.
func (r Repo) ListLists(ctx context.Context) ([]domain.List, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+listColumns+` FROM lists ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.List{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// TaskCounts aggregates task state per list id in one query.
func (r Repo) TaskCounts(ctx context.Context) (map[int64]domain.TaskCounts, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT list_id,
		COUNT(*),
		SUM(CASE WHEN completed_at IS NULL AND archived_at IS NULL THEN 1 ELSE 0 END),
		SUM(CASE WHEN completed_at IS NOT NULL THEN 1 ELSE 0 END),
		SUM(CASE WHEN archived_at IS NOT NULL THEN 1 ELSE 0 END)
		FROM tasks GROUP BY list_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[int64]domain.TaskCounts{}
	for rows.Next() {
		var (
			listID int64
			c      domain.TaskCounts
		)
		if err := rows.Scan(&listID, &c.Total, &c.Active, &c.Completed, &c.Archived); err != nil {
			return nil, err
		}
		res[listID] = c
	}
	return res, rows.Err()
}
