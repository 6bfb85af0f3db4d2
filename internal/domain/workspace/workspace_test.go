package workspace

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/preview"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/sandbox"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/scheduler"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/monitoring"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/store"
)

type recordingSandbox struct {
	mu        sync.Mutex
	n         int
	documents []string
	unmounted int
}

func (s *recordingSandbox) Mount(document string) (sandbox.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	s.documents = append(s.documents, document)
	return sandbox.Handle{Token: "mnt_" + strconv.Itoa(s.n), MountedAt: time.Now()}, nil
}

func (s *recordingSandbox) Unmount(sandbox.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmounted++
}

func (s *recordingSandbox) mounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.documents)
}

func (s *recordingSandbox) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documents[len(s.documents)-1]
}

type fixture struct {
	manager *Manager
	sandbox *recordingSandbox
	clock   *scheduler.FakeClock
	store   *store.Store
	metrics *monitoring.Metrics
}

func newFixture(t *testing.T, persister ...Persister) *fixture {
	t.Helper()
	f := &fixture{
		sandbox: &recordingSandbox{},
		clock:   scheduler.NewFakeClock(time.Unix(0, 0)),
		store:   store.OpenMemory(t),
		metrics: monitoring.NewMetrics(),
	}
	var p Persister = f.store
	if len(persister) > 0 {
		p = persister[0]
	}
	cfg := DefaultConfig()
	cfg.Clock = f.clock
	f.manager = NewManager(preview.NewCompiler("", nil), f.sandbox, p, cfg, nil).
		WithMetrics(f.metrics).
		WithPreviewURL(func(h sandbox.Handle) string { return "/preview/" + h.Token })
	t.Cleanup(f.manager.Shutdown)
	return f
}

func (f *fixture) open(t *testing.T) *Workspace {
	t.Helper()
	w, err := f.manager.Open(context.Background(), OpenRequest{OwnerID: "usr_1"})
	require.NoError(t, err)
	return w
}

func TestOpenCompilesOnce(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)

	assert.Equal(t, 1, f.sandbox.mounts())
	st := w.State()
	assert.Equal(t, project.DefaultTitle, st.Title)
	assert.Equal(t, project.ComponentFile, st.ActiveFile)
	assert.Equal(t, scheduler.Automatic, st.Mode)
	assert.Equal(t, sandbox.Generation(1), st.Generation)
	require.NotNil(t, st.Mount)
	assert.Equal(t, "/preview/mnt_1", st.Mount.URL)
	assert.NotEmpty(t, st.ETag)
	assert.Empty(t, st.Diagnostics)
}

func TestEditsDebounceIntoOneCompile(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)

	for i := 0; i < 5; i++ {
		scheduled, err := w.Edit(project.StylesheetFile, "h1 { order: "+strconv.Itoa(i)+"; }")
		require.NoError(t, err)
		assert.True(t, scheduled)
		f.clock.Advance(300 * time.Millisecond)
	}
	assert.Equal(t, 1, f.sandbox.mounts(), "nothing compiles while edits keep coming")

	f.clock.Advance(1200 * time.Millisecond)
	assert.Equal(t, 2, f.sandbox.mounts())
	assert.Contains(t, f.sandbox.last(), "h1 { order: 4; }", "compiles the files as of fire time")
	assert.Equal(t, sandbox.Generation(2), w.State().Generation)
}

func TestManualModeWaitsForRun(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)
	w.SetMode(scheduler.Manual)

	scheduled, err := w.Edit(project.ComponentFile, "export default function App() { return null; }")
	require.NoError(t, err)
	assert.False(t, scheduled)
	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.sandbox.mounts())

	m, err := w.Run()
	require.NoError(t, err)
	assert.Equal(t, sandbox.Generation(2), m.Generation)
	assert.Contains(t, f.sandbox.last(), "window.App = function App()")
}

func TestRunSupersedesPendingCompile(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)

	_, err := w.Edit(project.StylesheetFile, "p {}")
	require.NoError(t, err)
	assert.True(t, w.State().Pending)

	_, err = w.Run()
	require.NoError(t, err)
	assert.False(t, w.State().Pending)

	f.clock.Advance(time.Minute)
	assert.Equal(t, 2, f.sandbox.mounts())
}

func TestRefreshRemountsWithoutCompiling(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)
	before := w.Document()

	w.SetMode(scheduler.Manual)
	_, err := w.Edit(project.StylesheetFile, "p { color: blue; }")
	require.NoError(t, err)

	m, err := w.Refresh()
	require.NoError(t, err)
	assert.Equal(t, sandbox.Generation(2), m.Generation)
	assert.Equal(t, before.HTML, f.sandbox.last())
	assert.Equal(t, 1, f.sandbox.unmounted)
}

func TestGenerationsStrictlyIncrease(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)

	var last sandbox.Generation
	for i := 0; i < 4; i++ {
		var m Mount
		var err error
		if i%2 == 0 {
			m, err = w.Run()
		} else {
			m, err = w.Refresh()
		}
		require.NoError(t, err)
		assert.Greater(t, m.Generation, last)
		last = m.Generation
	}
}

func TestEditRejectsUnknownFileAndBinary(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)

	_, err := w.Edit("main.tsx", "x")
	assert.ErrorIs(t, err, ErrUnknownFile)

	_, err = w.Edit(project.StylesheetFile, "\x00\x01\x02binary")
	assert.ErrorIs(t, err, ErrInvalidContent)

	assert.ErrorIs(t, w.SetActive("nope.js"), ErrUnknownFile)
	require.NoError(t, w.SetActive(project.DescriptorFile))
	assert.Equal(t, project.DescriptorFile, w.State().ActiveFile)
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)
	events, unsubscribe := f.manager.Bus().Subscribe(w.ID(), 64)
	defer unsubscribe()

	assert.Equal(t, "Renamed", w.SetTitle("  <b>Renamed</b> "))

	pid, err := w.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pid, w.ProjectID())

	_, err = w.Edit(project.StylesheetFile, "body { margin: 0; }")
	require.NoError(t, err)
	pid2, err := w.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pid, pid2)

	stored, err := f.store.Get(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, "body { margin: 0; }", stored.Files.Content(project.StylesheetFile))

	list, err := f.store.List(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n := drainNotifications(events)
	require.NotEmpty(t, n)
	assert.Equal(t, "Saved", n[0].Message)
}

type blockingStore struct {
	*store.Store
	entered chan struct{}
	release chan struct{}
	fail    error
}

func (b *blockingStore) Create(ctx context.Context, p project.Project) (string, error) {
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	if b.fail != nil {
		return "", b.fail
	}
	return b.Store.Create(ctx, p)
}

func TestSaveInFlightGuard(t *testing.T) {
	bs := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t)
	bs.Store = f.store
	f.manager.store = bs
	w := f.open(t)

	done := make(chan error, 1)
	go func() {
		_, err := w.Save(context.Background())
		done <- err
	}()
	<-bs.entered

	_, err := w.Save(context.Background())
	assert.ErrorIs(t, err, ErrSaveInProgress)
	assert.True(t, w.State().Saving)

	close(bs.release)
	require.NoError(t, <-done)
	assert.False(t, w.State().Saving)
}

func TestSaveFailureNotifiesAndClearsGuard(t *testing.T) {
	f := newFixture(t)
	f.manager.store = &blockingStore{Store: f.store, fail: errors.New("quota exceeded")}
	w := f.open(t)
	events, unsubscribe := f.manager.Bus().Subscribe(w.ID(), 64)
	defer unsubscribe()

	_, err := w.Save(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.False(t, w.State().Saving)
	assert.Equal(t, int64(1), f.metrics.Snapshot().SaveFailures)

	n := drainNotifications(events)
	require.Len(t, n, 1)
	assert.Equal(t, LevelError, n[0].Level)
	assert.Equal(t, "Save failed", n[0].Message)
	assert.Equal(t, "quota exceeded", n[0].Detail)

	// The guard was released; a second attempt reaches the store again.
	_, err = w.Save(context.Background())
	assert.NotErrorIs(t, err, ErrSaveInProgress)
}

func TestOpenStoredProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := project.New("usr_1")
	p.Title = ""
	pid, err := f.store.Create(ctx, p)
	require.NoError(t, err)

	w, err := f.manager.Open(ctx, OpenRequest{OwnerID: "usr_1", ProjectID: pid})
	require.NoError(t, err)
	st := w.State()
	assert.Equal(t, pid, st.ProjectID)
	assert.Equal(t, project.UntitledTitle, st.Title)

	_, err = f.manager.Open(ctx, OpenRequest{OwnerID: "usr_2", ProjectID: pid})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.manager.Open(ctx, OpenRequest{OwnerID: "usr_1", ProjectID: "prj_missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOpenTemplate(t *testing.T) {
	f := newFixture(t)
	files := project.DefaultFiles()
	require.NoError(t, files.Replace(project.StylesheetFile, ".tpl {}"))

	w, err := f.manager.Open(context.Background(), OpenRequest{OwnerID: "usr_1", Files: &files, Title: "Starter"})
	require.NoError(t, err)
	st := w.State()
	assert.Equal(t, "Starter", st.Title)
	assert.Empty(t, st.ProjectID)
	assert.Equal(t, ".tpl {}", st.Files.Content(project.StylesheetFile))
}

func TestDeleteCurrentProjectResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.open(t)
	require.NoError(t, w.SetActive(project.ShellFile))

	pid, err := w.Save(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, f.manager.DeleteProject(ctx, "usr_2", pid), ErrForbidden)
	require.NoError(t, f.manager.DeleteProject(ctx, "usr_1", pid))

	st := w.State()
	assert.Empty(t, st.ProjectID)
	assert.Equal(t, project.NewTitle, st.Title)
	assert.Equal(t, project.ComponentFile, st.ActiveFile)
	assert.True(t, st.Files.Equal(project.DefaultFiles()))
}

func TestReportsFromStaleMountsDropped(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)
	events, unsubscribe := f.manager.Bus().Subscribe(w.ID(), 64)
	defer unsubscribe()

	stale := w.State().Mount.Token
	_, err := w.Run()
	require.NoError(t, err)
	live := w.State().Mount.Token

	f.manager.DispatchReport(sandbox.Report{Token: stale, Visible: true, Text: "Runtime Error:\nold"})
	f.manager.DispatchReport(sandbox.Report{Token: live, Visible: true, Channel: sandbox.ChannelRuntime, Text: "Runtime Error:\nnew"})

	var reports []*sandbox.Report
	for len(events) > 0 {
		e := <-events
		if e.Type == EventReport {
			reports = append(reports, e.Report)
		}
	}
	require.Len(t, reports, 1)
	assert.True(t, strings.HasSuffix(reports[0].Text, "new"))
}

func TestCheckRunsDocument(t *testing.T) {
	f := newFixture(t)
	w := f.open(t)

	rt := sandbox.NewRuntime(sandbox.DefaultConfig(), nil, nil)
	res, err := w.Check(context.Background(), rt)
	require.NoError(t, err)
	assert.False(t, res.Report.Visible)
}

func TestManagerLifecycle(t *testing.T) {
	f := newFixture(t)
	f.manager.config.MaxPerOwner = 2
	a := f.open(t)
	f.open(t)

	_, err := f.manager.Open(context.Background(), OpenRequest{OwnerID: "usr_1"})
	assert.ErrorIs(t, err, ErrTooManyOpen)

	_, err = f.manager.GetOwned(a.ID(), "usr_2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.manager.Close(a.ID()))
	assert.ErrorIs(t, f.manager.Close(a.ID()), ErrNotFound)
	assert.Equal(t, 1, f.manager.Len())

	_, err = a.Run()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.Edit(project.StylesheetFile, "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func drainNotifications(events <-chan Event) []Notification {
	var out []Notification
	for len(events) > 0 {
		e := <-events
		if e.Type == EventNotification {
			out = append(out, *e.Notification)
		}
	}
	return out
}

// gatedSandbox holds every mount until gate is closed.
type gatedSandbox struct {
	recordingSandbox
	gate <-chan struct{}
}

func (s *gatedSandbox) Mount(document string) (sandbox.Handle, error) {
	<-s.gate
	return s.recordingSandbox.Mount(document)
}

func TestManagerLimitHoldsUnderConcurrentOpens(t *testing.T) {
	gate := make(chan struct{})
	cfg := DefaultConfig()
	cfg.MaxPerOwner = 2
	cfg.Clock = scheduler.NewFakeClock(time.Unix(0, 0))
	m := NewManager(preview.NewCompiler("", nil), &gatedSandbox{gate: gate}, store.OpenMemory(t), cfg, nil)
	t.Cleanup(m.Shutdown)

	type result struct {
		w   *Workspace
		err error
	}
	const attempts = 8
	var rejected atomic.Int32
	results := make(chan result, attempts)
	for range attempts {
		go func() {
			w, err := m.Open(context.Background(), OpenRequest{OwnerID: "usr_1"})
			if errors.Is(err, ErrTooManyOpen) {
				rejected.Add(1)
			}
			results <- result{w, err}
		}()
	}

	// Two opens hold their slots while blocked in Mount; the rest are
	// turned away without waiting.
	assert.Eventually(t, func() bool { return rejected.Load() == attempts-2 }, 2*time.Second, 5*time.Millisecond)
	close(gate)

	var opened []*Workspace
	for range attempts {
		r := <-results
		if r.err != nil {
			assert.ErrorIs(t, r.err, ErrTooManyOpen)
			continue
		}
		opened = append(opened, r.w)
	}
	require.Len(t, opened, 2)
	assert.Equal(t, 2, m.Len())

	// Another owner has its own slots, and a closed workspace frees one.
	_, err := m.Open(context.Background(), OpenRequest{OwnerID: "usr_2"})
	require.NoError(t, err)
	_, err = m.Open(context.Background(), OpenRequest{OwnerID: "usr_1"})
	assert.ErrorIs(t, err, ErrTooManyOpen)
	require.NoError(t, m.Close(opened[0].ID()))
	_, err = m.Open(context.Background(), OpenRequest{OwnerID: "usr_1"})
	assert.NoError(t, err)
}

func TestManagerReleasesSlotOnFailedOpen(t *testing.T) {
	f := newFixture(t)
	f.manager.config.MaxPerOwner = 1

	_, err := f.manager.Open(context.Background(), OpenRequest{OwnerID: "usr_1", ProjectID: "prj_missing"})
	require.Error(t, err)

	f.open(t)
}
