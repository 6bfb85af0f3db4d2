// Package workspace holds the editor session of one open project: its
// files, the recompile scheduler, the preview frame and the save guard.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/preview"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/sandbox"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/scheduler"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/monitoring"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/utils"
)

var (
	ErrNotFound       = errors.New("workspace not found")
	ErrClosed         = errors.New("workspace closed")
	ErrSaveInProgress = errors.New("save already in progress")
	ErrNoStore        = errors.New("no project store configured")
	ErrForbidden      = errors.New("project belongs to another owner")
	ErrInvalidContent = errors.New("invalid file content")
	ErrUnknownFile    = project.ErrUnknownFile
	ErrNothingMounted = sandbox.ErrNothingMounted
	ErrTooManyOpen    = errors.New("too many open workspaces")
)

// Persister is the project store a workspace saves to.
type Persister interface {
	Create(ctx context.Context, p project.Project) (string, error)
	Update(ctx context.Context, id string, p project.Project) error
	Get(ctx context.Context, id string) (project.Project, error)
	Delete(ctx context.Context, id string) error
}

// Runner executes a document headlessly.
type Runner interface {
	Run(ctx context.Context, document string) (*sandbox.Result, error)
}

// Mount describes the live preview mount.
type Mount struct {
	Token      string             `json:"token"`
	Generation sandbox.Generation `json:"generation"`
	URL        string             `json:"url,omitempty"`
	MountedAt  time.Time          `json:"mounted_at"`
}

// State is a point-in-time view of a workspace.
type State struct {
	ID          string               `json:"id"`
	ProjectID   string               `json:"project_id,omitempty"`
	OwnerID     string               `json:"owner_id"`
	Title       string               `json:"title"`
	Files       project.Files        `json:"files"`
	ActiveFile  string               `json:"active_file"`
	Mode        scheduler.Mode       `json:"mode"`
	Generation  sandbox.Generation   `json:"generation"`
	Mount       *Mount               `json:"mount,omitempty"`
	Pending     bool                 `json:"pending"`
	Saving      bool                 `json:"saving"`
	Diagnostics []preview.Diagnostic `json:"diagnostics"`
	ETag        string               `json:"etag"`
}

// Workspace is one editor session. A single mutex serialises edits,
// compiles and remounts, so compilations never overlap.
type Workspace struct {
	id       string
	owner    string
	compiler *preview.Compiler
	frame    *sandbox.Frame
	sched    *scheduler.Scheduler
	store    Persister
	bus      *Bus
	urlFor   func(sandbox.Handle) string
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu        sync.Mutex
	projectID string
	title     string
	files     project.Files
	active    string
	doc       preview.Document
	closed    bool

	saving atomic.Bool
}

type options struct {
	compiler *preview.Compiler
	sandbox  sandbox.Sandbox
	store    Persister
	bus      *Bus
	urlFor   func(sandbox.Handle) string
	config   Config
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

func newWorkspace(id, owner string, o options) *Workspace {
	w := &Workspace{
		id:       id,
		owner:    owner,
		compiler: o.compiler,
		store:    o.store,
		bus:      o.bus,
		urlFor:   o.urlFor,
		logger:   o.logger.With(zap.String("workspace", id)),
		metrics:  o.metrics,
		title:    project.DefaultTitle,
		files:    project.DefaultFiles(),
		active:   project.ComponentFile,
	}
	w.frame = sandbox.NewFrame(o.sandbox, w.mounted)

	schedOpts := []scheduler.Option{scheduler.WithDelay(o.config.Delay), scheduler.WithMode(o.config.Mode)}
	if o.config.Clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(o.config.Clock))
	}
	w.sched = scheduler.New(w.debounced, schedOpts...)
	return w
}

// ID returns the workspace id.
func (w *Workspace) ID() string { return w.id }

// Owner returns the owner id.
func (w *Workspace) Owner() string { return w.owner }

// ProjectID returns the id of the saved project, empty until first save.
func (w *Workspace) ProjectID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.projectID
}

// Edit replaces one file. In automatic mode it (re)arms the debounced
// compile; it never compiles by itself.
func (w *Workspace) Edit(name, content string) (bool, error) {
	if err := utils.ValidateFileContent(name, content); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false, ErrClosed
	}
	if err := w.files.Replace(name, content); err != nil {
		w.mu.Unlock()
		return false, err
	}
	w.mu.Unlock()

	superseded := w.sched.Pending()
	scheduled := w.sched.Notify()
	if scheduled {
		w.metrics.RecordScheduled(superseded)
	}
	return scheduled, nil
}

// SetActive selects the file the editor shows.
func (w *Workspace) SetActive(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files.Has(name) {
		return fmt.Errorf("%w: %s", ErrUnknownFile, name)
	}
	w.active = name
	return nil
}

// SetMode switches between automatic and manual compilation. A pending
// debounced compile is left alone.
func (w *Workspace) SetMode(m scheduler.Mode) {
	w.sched.SetMode(m)
}

// SetTitle renames the project and returns the cleaned title.
func (w *Workspace) SetTitle(title string) string {
	clean := project.SanitizeTitle(title)
	w.mu.Lock()
	w.title = clean
	w.mu.Unlock()
	return clean
}

// Run compiles now and remounts, superseding any pending debounced compile.
func (w *Workspace) Run() (Mount, error) {
	w.sched.Cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Mount{}, ErrClosed
	}
	return w.compileLocked("run")
}

// Refresh remounts the last document without compiling.
func (w *Workspace) Refresh() (Mount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Mount{}, ErrClosed
	}
	h, err := w.frame.Refresh()
	if err != nil {
		return Mount{}, err
	}
	return w.mountInfo(h), nil
}

// Load replaces the session with p, compiles once and remounts.
func (w *Workspace) Load(p project.Project) (Mount, error) {
	w.sched.Cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Mount{}, ErrClosed
	}

	w.projectID = p.ID
	w.title = p.Title
	if strings.TrimSpace(w.title) == "" {
		w.title = project.UntitledTitle
	}
	w.files = project.Normalize(p.Files)
	w.active = project.ComponentFile
	return w.compileLocked("load")
}

// Reset starts a fresh unsaved project.
func (w *Workspace) Reset() (Mount, error) {
	return w.Load(project.New(w.owner))
}

// ProjectDeleted resets the workspace if it has projectID open.
func (w *Workspace) ProjectDeleted(projectID string) bool {
	if projectID == "" || w.ProjectID() != projectID {
		return false
	}
	if _, err := w.Reset(); err != nil {
		w.logger.Warn("Reset after delete failed", zap.Error(err))
	}
	return true
}

// Save persists the project. Only one save runs at a time; a concurrent
// call fails with ErrSaveInProgress. The first save creates the project and
// adopts its id.
func (w *Workspace) Save(ctx context.Context) (string, error) {
	if w.store == nil {
		return "", ErrNoStore
	}
	if !w.saving.CompareAndSwap(false, true) {
		return "", ErrSaveInProgress
	}
	defer w.saving.Store(false)

	w.mu.Lock()
	snapshot := project.Project{
		ID:      w.projectID,
		OwnerID: w.owner,
		Title:   w.title,
		Files:   w.files.Clone(),
	}
	w.mu.Unlock()

	projectID := snapshot.ID
	var err error
	if projectID == "" {
		projectID, err = w.store.Create(ctx, snapshot)
	} else {
		err = w.store.Update(ctx, projectID, snapshot)
	}
	w.metrics.RecordSave(err)

	if err != nil {
		w.logger.Error("Save failed", zap.String("project", snapshot.ID), zap.Error(err))
		w.notify(LevelError, "Save failed", err.Error())
		return "", fmt.Errorf("save: %w", err)
	}

	w.mu.Lock()
	if w.projectID == "" {
		w.projectID = projectID
	}
	w.mu.Unlock()

	w.notify(LevelInfo, "Saved", "")
	return projectID, nil
}

// Check runs the current document headlessly.
func (w *Workspace) Check(ctx context.Context, r Runner) (*sandbox.Result, error) {
	doc := w.Document()
	if doc.HTML == "" {
		return nil, ErrNothingMounted
	}
	return r.Run(ctx, doc.HTML)
}

// Document returns the last compiled document.
func (w *Workspace) Document() preview.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc
}

// Files returns a copy of the current files.
func (w *Workspace) Files() project.Files {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files.Clone()
}

// State returns a snapshot of the workspace.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := State{
		ID:          w.id,
		ProjectID:   w.projectID,
		OwnerID:     w.owner,
		Title:       w.title,
		Files:       w.files.Clone(),
		ActiveFile:  w.active,
		Mode:        w.sched.Mode(),
		Generation:  w.frame.Generation(),
		Pending:     w.sched.Pending(),
		Saving:      w.saving.Load(),
		Diagnostics: w.doc.Diagnostics,
		ETag:        w.doc.ETag,
	}
	if s.Diagnostics == nil {
		s.Diagnostics = []preview.Diagnostic{}
	}
	if h, ok := w.frame.Current(); ok {
		m := w.mountInfo(h)
		s.Mount = &m
	}
	return s
}

// HandleReport publishes r if it belongs to the live mount. Reports from
// earlier generations are dropped.
func (w *Workspace) HandleReport(r sandbox.Report) bool {
	h, ok := w.frame.Current()
	if !ok || h.Token != r.Token {
		return false
	}
	w.metrics.RecordReport(string(r.Channel))
	w.publish(Event{Type: EventReport, Generation: h.Generation, Token: h.Token, Report: &r})
	return true
}

// Close stops the scheduler and unmounts the preview.
func (w *Workspace) Close() {
	w.sched.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.frame.Close()
}

// debounced is the scheduler's fire callback. It compiles the files as
// they are now, not as they were when the timer was armed.
func (w *Workspace) debounced() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, err := w.compileLocked("debounce"); err != nil {
		w.logger.Warn("Debounced compile failed to mount", zap.Error(err))
	}
}

func (w *Workspace) compileLocked(trigger string) (Mount, error) {
	timer := monitoring.NewTimer(w.metrics, trigger)
	doc := w.compiler.Compile(w.files)
	elapsed := timer.Stop(len(doc.Diagnostics))
	w.doc = doc

	w.logger.Debug("Compiled preview",
		zap.String("trigger", trigger),
		zap.Duration("took", elapsed),
		zap.Int("diagnostics", len(doc.Diagnostics)),
		zap.Int("dependencies", len(doc.Dependencies)))
	w.publish(Event{Type: EventCompiled, ETag: doc.ETag, Diagnostics: doc.Diagnostics})

	h, err := w.frame.Remount(doc.HTML)
	if err != nil {
		return Mount{}, fmt.Errorf("mount: %w", err)
	}
	return w.mountInfo(h), nil
}

// mounted is the frame's mount callback.
func (w *Workspace) mounted(h sandbox.Handle) {
	w.metrics.RecordMount(uint64(h.Generation))
	w.publish(Event{
		Type:       EventMounted,
		Generation: h.Generation,
		Token:      h.Token,
		URL:        w.url(h),
	})
}

func (w *Workspace) mountInfo(h sandbox.Handle) Mount {
	return Mount{Token: h.Token, Generation: h.Generation, URL: w.url(h), MountedAt: h.MountedAt}
}

func (w *Workspace) url(h sandbox.Handle) string {
	if w.urlFor == nil {
		return ""
	}
	return w.urlFor(h)
}

func (w *Workspace) notify(level Level, message, detail string) {
	w.publish(Event{Type: EventNotification, Notification: &Notification{Level: level, Message: message, Detail: detail}})
}

func (w *Workspace) publish(e Event) {
	if w.bus == nil {
		return
	}
	e.Workspace = w.id
	w.bus.Publish(e)
}
