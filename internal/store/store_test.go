package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestStore(t *testing.T) *Store {
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return OpenMemory(t, WithClock(clock.Now))
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := project.New("usr_1")
	require.NoError(t, p.Files.Replace(project.ComponentFile, "export default () => null;"))

	pid, err := s.Create(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, pid)

	got, err := s.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, pid, got.ID)
	assert.Equal(t, project.NewTitle, got.Title)
	assert.True(t, p.Files.Equal(got.Files))
	assert.Equal(t, project.RequiredFiles, got.Files.Names())
	require.NotNil(t, got.CreatedAt)
	require.NotNil(t, got.UpdatedAt)
	assert.Equal(t, *got.CreatedAt, *got.UpdatedAt)
}

func TestCreateRequiresOwner(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), project.New(""))
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestCreateDuplicateID(t *testing.T) {
	s := newTestStore(t)
	p := project.New("usr_1")
	p.ID = "prj_fixed"

	_, err := s.Create(context.Background(), p)
	require.NoError(t, err)
	_, err = s.Create(context.Background(), p)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pid, err := s.Create(ctx, project.New("usr_1"))
	require.NoError(t, err)
	before, err := s.Get(ctx, pid)
	require.NoError(t, err)

	changed := before
	changed.Title = "Renamed"
	changed.Files = changed.Files.Clone()
	changed.Files.Set(project.StylesheetFile, "body{}")
	require.NoError(t, s.Update(ctx, pid, changed))

	after, err := s.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", after.Title)
	assert.Equal(t, "body{}", after.Files.Content(project.StylesheetFile))
	assert.True(t, after.UpdatedAt.After(*before.UpdatedAt))
	assert.Equal(t, *before.CreatedAt, *after.CreatedAt)

	require.NoError(t, s.Delete(ctx, pid))
	_, err = s.Get(ctx, pid)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, pid), ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, pid, changed), ErrNotFound)
}

func TestListOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	records := []project.Record{
		{ID: "prj_b", OwnerID: "usr_1", Title: "b", UpdatedAt: &t1},
		{ID: "prj_a", OwnerID: "usr_1", Title: "a", UpdatedAt: &t1},
		{ID: "prj_new", OwnerID: "usr_1", Title: "new", UpdatedAt: &t2},
		{ID: "prj_null", OwnerID: "usr_1", Title: "null"},
		{ID: "prj_other", OwnerID: "usr_2", Title: "other", UpdatedAt: &t2},
	}
	for _, r := range records {
		require.NoError(t, s.ImportRecord(ctx, r))
	}

	list, err := s.List(ctx, "usr_1")
	require.NoError(t, err)

	var ids []string
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"prj_new", "prj_a", "prj_b", "prj_null"}, ids)
	assert.Nil(t, list[3].UpdatedAt)
}

func TestListEmpty(t *testing.T) {
	s := newTestStore(t)
	list, err := s.List(context.Background(), "usr_nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestLegacyRecordLoads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ImportRecord(ctx, project.Record{
		ID:      "prj_legacy",
		OwnerID: "usr_1",
		JSX:     "export default function App() { return null; }",
		CSS:     "h1 { color: red; }",
	}))

	p, err := s.Get(ctx, "prj_legacy")
	require.NoError(t, err)
	assert.Equal(t, project.UntitledTitle, p.Title)
	assert.Equal(t, "h1 { color: red; }", p.Files.Content(project.StylesheetFile))
	assert.NoError(t, p.Files.Validate())
}

func TestSubscribeSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsubscribe := s.Subscribe(ctx, "usr_1")
	initial := <-ch
	assert.Empty(t, initial)

	pid, err := s.Create(context.Background(), project.New("usr_1"))
	require.NoError(t, err)

	select {
	case list := <-ch:
		require.Len(t, list, 1)
		assert.Equal(t, pid, list[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after create")
	}

	// Other owners' changes are not pushed.
	_, err = s.Create(context.Background(), project.New("usr_2"))
	require.NoError(t, err)
	select {
	case <-ch:
		t.Fatal("unexpected snapshot")
	default:
	}

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "projects.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Create(context.Background(), project.New("usr_1"))
	require.NoError(t, err)
}

func TestOpenDBPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.db")
	db, err := OpenDB(path, WithBusyTimeout(2500), WithSynchronous("FULL"))
	require.NoError(t, err)
	defer db.Close()

	// Queries from several goroutines must all see the configured pragmas.
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var busy, synchronous int
			assert.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busy))
			assert.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
			assert.Equal(t, 2500, busy)
			assert.Equal(t, 2, synchronous) // FULL
		}()
	}
	wg.Wait()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenDBRejectsBadOptions(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenDB(filepath.Join(dir, "a.db"), WithSynchronous("NORMAL; DROP TABLE projects"))
	assert.Error(t, err)

	_, err = OpenDB(filepath.Join(dir, "b.db"), WithBusyTimeout(-1))
	assert.Error(t, err)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(assert.AnError))
	assert.True(t, IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
}
