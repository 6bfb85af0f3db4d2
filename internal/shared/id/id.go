// Package id provides centralized ID generation for the service.
//
// All identifiers are ULIDs, optionally prefixed with their type:
//   - prj_*: persisted projects
//   - ws_*: open editor workspaces
//   - usr_*: project owners (anonymous or token-backed)
//   - mnt_*: sandbox mount tokens
//   - req_*: API requests
//
// ULIDs sort lexicographically by creation time, which keeps store
// tie-breaks and log lines in a stable order.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProjectID identifies a persisted project
type ProjectID string

// WorkspaceID identifies an open editor workspace
type WorkspaceID string

// OwnerID identifies a project owner
type OwnerID string

// MountToken identifies one sandbox mount
type MountToken string

// RequestID identifies an API request
type RequestID string

const (
	ProjectPrefix   = "prj"
	WorkspacePrefix = "ws"
	OwnerPrefix     = "usr"
	MountPrefix     = "mnt"
	RequestPrefix   = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// entropy, so IDs minted within the same millisecond still sort in order.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewProjectID generates a new project ID
func NewProjectID() ProjectID {
	return ProjectID(Default().GenerateWithPrefix(ProjectPrefix))
}

// NewWorkspaceID generates a new workspace ID
func NewWorkspaceID() WorkspaceID {
	return WorkspaceID(Default().GenerateWithPrefix(WorkspacePrefix))
}

// NewOwnerID generates a new owner ID
func NewOwnerID() OwnerID {
	return OwnerID(Default().GenerateWithPrefix(OwnerPrefix))
}

// NewMountToken generates a new sandbox mount token
func NewMountToken() MountToken {
	return MountToken(Default().GenerateWithPrefix(MountPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id ProjectID) String() string   { return string(id) }
func (id WorkspaceID) String() string { return string(id) }
func (id OwnerID) String() string     { return string(id) }
func (id MountToken) String() string  { return string(id) }
func (id RequestID) String() string   { return string(id) }

// IsValid checks if an ID string is a valid ULID, with or without prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// HasPrefix reports whether id is a valid ULID carrying prefix
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_") && IsValid(id)
}

// Parse parses a ULID string, stripping a type prefix when present
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
