package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/preview"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/sandbox"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/scheduler"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/monitoring"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/id"
)

// Config tunes new workspaces.
type Config struct {
	Delay       time.Duration
	Mode        scheduler.Mode
	Clock       scheduler.Clock // nil means the real clock
	MaxPerOwner int             // 0 means unlimited
}

// DefaultConfig returns the editor defaults.
func DefaultConfig() Config {
	return Config{
		Delay:       scheduler.DefaultDelay,
		Mode:        scheduler.Automatic,
		MaxPerOwner: 8,
	}
}

// OpenRequest says what a new workspace starts from. ProjectID loads a
// stored project; Files starts an unsaved project from a template;
// otherwise the default project is used.
type OpenRequest struct {
	OwnerID   string
	ProjectID string
	Title     string
	Files     *project.Files
}

// Manager owns the open workspaces.
type Manager struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace // Protected by mu
	opening    map[string]int        // opens in flight per owner, protected by mu

	compiler *preview.Compiler
	sandbox  sandbox.Sandbox
	store    Persister
	bus      *Bus
	urlFor   func(sandbox.Handle) string
	config   Config
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewManager creates a manager mounting previews into sb.
func NewManager(compiler *preview.Compiler, sb sandbox.Sandbox, store Persister, config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Mode == "" {
		config.Mode = scheduler.Automatic
	}
	return &Manager{
		workspaces: make(map[string]*Workspace),
		opening:    make(map[string]int),
		compiler:   compiler,
		sandbox:    sb,
		store:      store,
		bus:        NewBus(logger),
		config:     config,
		logger:     logger,
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithPreviewURL sets how mount handles map to browser URLs.
func (m *Manager) WithPreviewURL(fn func(sandbox.Handle) string) *Manager {
	m.urlFor = fn
	return m
}

// Bus returns the event bus.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Open creates a workspace, compiles it once and mounts the preview.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Workspace, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("open workspace: %w", ErrForbidden)
	}
	if err := m.reserve(req.OwnerID); err != nil {
		return nil, err
	}
	registered := false
	defer func() {
		if !registered {
			m.mu.Lock()
			m.release(req.OwnerID)
			m.mu.Unlock()
		}
	}()

	var p project.Project
	switch {
	case req.ProjectID != "":
		if m.store == nil {
			return nil, ErrNoStore
		}
		loaded, err := m.store.Get(ctx, req.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("open workspace: %w", err)
		}
		if loaded.OwnerID != req.OwnerID {
			return nil, ErrForbidden
		}
		p = loaded
	case req.Files != nil:
		p = project.New(req.OwnerID)
		p.Files = req.Files.Clone()
		if req.Title != "" {
			p.Title = project.SanitizeTitle(req.Title)
		}
	default:
		p = project.New(req.OwnerID)
		p.Title = project.DefaultTitle
	}

	w := newWorkspace(id.NewWorkspaceID().String(), req.OwnerID, options{
		compiler: m.compiler,
		sandbox:  m.sandbox,
		store:    m.store,
		bus:      m.bus,
		urlFor:   m.urlFor,
		config:   m.config,
		logger:   m.logger,
		metrics:  m.metrics,
	})
	if _, err := w.Load(p); err != nil {
		w.Close()
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	m.mu.Lock()
	m.workspaces[w.id] = w
	m.release(req.OwnerID)
	registered = true
	n := len(m.workspaces)
	m.mu.Unlock()
	m.metrics.SetWorkspacesActive(n)

	m.logger.Info("Opened workspace",
		zap.String("workspace", w.id),
		zap.String("owner", req.OwnerID),
		zap.String("project", p.ID))
	return w, nil
}

// Get returns an open workspace.
func (m *Manager) Get(workspaceID string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workspaces[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	return w, nil
}

// GetOwned returns an open workspace if ownerID owns it.
func (m *Manager) GetOwned(workspaceID, ownerID string) (*Workspace, error) {
	w, err := m.Get(workspaceID)
	if err != nil {
		return nil, err
	}
	if w.owner != ownerID {
		return nil, ErrNotFound
	}
	return w, nil
}

// Close closes and forgets a workspace.
func (m *Manager) Close(workspaceID string) error {
	m.mu.Lock()
	w, ok := m.workspaces[workspaceID]
	delete(m.workspaces, workspaceID)
	n := len(m.workspaces)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	w.Close()
	m.bus.Drop(workspaceID)
	m.metrics.SetWorkspacesActive(n)
	return nil
}

// DeleteProject removes a project from the store and resets every open
// workspace of the owner that has it loaded.
func (m *Manager) DeleteProject(ctx context.Context, ownerID, projectID string) error {
	if m.store == nil {
		return ErrNoStore
	}
	p, err := m.store.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if p.OwnerID != ownerID {
		return ErrForbidden
	}
	if err := m.store.Delete(ctx, projectID); err != nil {
		return err
	}
	for _, w := range m.owned(ownerID) {
		if w.ProjectDeleted(projectID) {
			m.logger.Info("Reset workspace after project delete",
				zap.String("workspace", w.id), zap.String("project", projectID))
		}
	}
	return nil
}

// DispatchReport hands a sandbox report to the workspace whose live mount
// produced it.
func (m *Manager) DispatchReport(r sandbox.Report) {
	m.mu.RLock()
	all := make([]*Workspace, 0, len(m.workspaces))
	for _, w := range m.workspaces {
		all = append(all, w)
	}
	m.mu.RUnlock()

	for _, w := range all {
		if w.HandleReport(r) {
			return
		}
	}
}

// Len returns the number of open workspaces.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}

// Shutdown closes every workspace.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := m.workspaces
	m.workspaces = make(map[string]*Workspace)
	m.mu.Unlock()

	for id, w := range all {
		w.Close()
		m.bus.Drop(id)
	}
	m.metrics.SetWorkspacesActive(0)
}

func (m *Manager) owned(ownerID string) []*Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Workspace
	for _, w := range m.workspaces {
		if w.owner == ownerID {
			out = append(out, w)
		}
	}
	return out
}

// reserve claims a workspace slot for ownerID. Opens still compiling count
// against MaxPerOwner, so concurrent opens cannot exceed it.
func (m *Manager) reserve(ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config.MaxPerOwner > 0 && m.countOwnedLocked(ownerID)+m.opening[ownerID] >= m.config.MaxPerOwner {
		return ErrTooManyOpen
	}
	m.opening[ownerID]++
	return nil
}

// release returns a slot claimed by reserve. Callers hold mu.
func (m *Manager) release(ownerID string) {
	m.opening[ownerID]--
	if m.opening[ownerID] <= 0 {
		delete(m.opening, ownerID)
	}
}

func (m *Manager) countOwnedLocked(ownerID string) int {
	n := 0
	for _, w := range m.workspaces {
		if w.owner == ownerID {
			n++
		}
	}
	return n
}
