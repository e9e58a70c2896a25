package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/events"
	"taskline/internal/migrate"
	"taskline/internal/repo"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.New(conn)
	r.Events = events.Writer{Now: func() time.Time { return t0 }}
	return r
}

func TestListRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	l, err := r.InsertList(ctx, domain.List{Name: "Work", Description: "day job", CreatedAt: t0})
	if err != nil {
		t.Fatalf("insert list: %v", err)
	}
	if l.ID == 0 {
		t.Fatalf("expected id")
	}
	got, err := r.GetList(ctx, l.ID)
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if got.Name != "Work" || got.Description != "day job" || !got.CreatedAt.Equal(t0) || got.ArchivedAt != nil {
		t.Fatalf("unexpected list %+v", got)
	}
	if _, err := r.GetList(ctx, 999); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	lists, err := r.ListLists(ctx)
	if err != nil || len(lists) != 1 {
		t.Fatalf("list lists: %v %v", lists, err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	l, err := r.InsertList(ctx, domain.List{Name: "Home", CreatedAt: t0})
	if err != nil {
		t.Fatal(err)
	}
	task, err := r.InsertTask(ctx, domain.Task{ListID: l.ID, Name: "Water plants", Priority: domain.PriorityHigh, CreatedAt: t0})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	done, err := r.CompleteTask(ctx, task.ID, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("completion not stored: %+v", done)
	}
	if _, err := r.CompleteTask(ctx, task.ID, t0.Add(2*time.Hour)); !errors.Is(err, repo.ErrAlreadySet) {
		t.Fatalf("expected already set, got %v", err)
	}
	again, _ := r.GetTask(ctx, task.ID)
	if !again.CompletedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("completion overwritten: %v", again.CompletedAt)
	}
	if _, err := r.ArchiveTask(ctx, 4242, t0); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	archived, err := r.ArchiveTask(ctx, task.ID, t0.Add(3*time.Hour))
	if err != nil || archived.ArchivedAt == nil {
		t.Fatalf("archive: %+v %v", archived, err)
	}
}

func TestInsertTaskRequiresList(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.InsertTask(context.Background(), domain.Task{ListID: 77, Name: "No list here", Priority: domain.PriorityLow, CreatedAt: t0})
	if err == nil {
		t.Fatalf("expected foreign key error")
	}
}

func TestListTasksAndCounts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	l, _ := r.InsertList(ctx, domain.List{Name: "Mixed", CreatedAt: t0})
	var ids []int64
	for _, name := range []string{"Open task", "Done task", "Shelved task", "Both flags"} {
		task, err := r.InsertTask(ctx, domain.Task{ListID: l.ID, Name: name, Priority: domain.PriorityMedium, CreatedAt: t0})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, task.ID)
	}
	mustOK := func(_ domain.Task, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	mustOK(r.CompleteTask(ctx, ids[1], t0))
	mustOK(r.ArchiveTask(ctx, ids[2], t0))
	mustOK(r.CompleteTask(ctx, ids[3], t0))
	mustOK(r.ArchiveTask(ctx, ids[3], t0))

	open, err := r.ListTasks(ctx, l.ID, false)
	if err != nil || len(open) != 1 || open[0].ID != ids[0] {
		t.Fatalf("open tasks: %+v %v", open, err)
	}
	all, err := r.ListTasks(ctx, l.ID, true)
	if err != nil || len(all) != 4 {
		t.Fatalf("all tasks: %+v %v", all, err)
	}
	counts, err := r.TaskCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	c := counts[l.ID]
	if c.Total != 4 || c.Active != 1 || c.Completed != 2 || c.Archived != 2 {
		t.Fatalf("unexpected counts %+v", c)
	}
}

func TestEventsRecorded(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	l, _ := r.InsertList(ctx, domain.List{Name: "Events", CreatedAt: t0})
	task, _ := r.InsertTask(ctx, domain.Task{ListID: l.ID, Name: "Track me", Priority: domain.PriorityLow, CreatedAt: t0})
	if _, err := r.CompleteTask(ctx, task.ID, t0); err != nil {
		t.Fatal(err)
	}
	evts, err := r.LatestEvents(ctx, 10, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) != 3 || evts[0].Type != events.TaskCompleted || evts[2].Type != events.ListCreated {
		t.Fatalf("unexpected events %+v", evts)
	}
	only, err := r.LatestEvents(ctx, 10, events.TaskCreated)
	if err != nil || len(only) != 1 {
		t.Fatalf("filtered events: %+v %v", only, err)
	}
}
