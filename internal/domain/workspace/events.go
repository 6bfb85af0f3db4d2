package workspace

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/preview"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/sandbox"
)

// EventType names what happened in a workspace.
type EventType string

const (
	EventCompiled     EventType = "compiled"
	EventMounted      EventType = "mounted"
	EventReport       EventType = "report"
	EventNotification EventType = "notification"
	EventProjects     EventType = "projects"
)

// Level is a notification severity.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a user-facing message, such as a failed save.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Event is pushed to subscribers of a workspace.
type Event struct {
	Type         EventType            `json:"type"`
	Workspace    string               `json:"workspace"`
	Generation   sandbox.Generation   `json:"generation,omitempty"`
	Token        string               `json:"token,omitempty"`
	URL          string               `json:"url,omitempty"`
	ETag         string               `json:"etag,omitempty"`
	Diagnostics  []preview.Diagnostic `json:"diagnostics,omitempty"`
	Report       *sandbox.Report      `json:"report,omitempty"`
	Notification *Notification        `json:"notification,omitempty"`
	Projects     []project.Project    `json:"projects,omitempty"`
	Time         time.Time            `json:"time"`
}

// Bus fans events out to per-workspace subscribers. Publishing never
// blocks; a subscriber that falls behind loses events.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	next   int
	logger *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subs: make(map[string]map[int]chan Event), logger: logger}
}

// Subscribe receives events for workspaceID until the returned func is
// called.
func (b *Bus) Subscribe(workspaceID string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.next++
	key := b.next
	if b.subs[workspaceID] == nil {
		b.subs[workspaceID] = make(map[int]chan Event)
	}
	b.subs[workspaceID][key] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			chans, ok := b.subs[workspaceID]
			if !ok {
				return
			}
			// Drop may already have closed ch.
			if _, live := chans[key]; live {
				delete(chans, key)
				close(ch)
			}
			if len(chans) == 0 {
				delete(b.subs, workspaceID)
			}
		})
	}
}

// Drop closes every subscription of workspaceID, ending their streams.
func (b *Bus) Drop(workspaceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[workspaceID] {
		close(ch)
	}
	delete(b.subs, workspaceID)
}

// Publish delivers e to the subscribers of e.Workspace.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e.Workspace] {
		select {
		case ch <- e:
		default:
			b.logger.Debug("Dropped workspace event",
				zap.String("workspace", e.Workspace),
				zap.String("type", string(e.Type)))
		}
	}
}

// Subscribers returns the number of subscribers of workspaceID.
func (b *Bus) Subscribers(workspaceID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[workspaceID])
}
