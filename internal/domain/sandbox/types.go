package sandbox

import (
	"errors"
	"strings"
	"time"
)

// CapabilityList is the full grant of a preview frame. Nothing else (top
// navigation, forms, popups) is allowed.
var CapabilityList = []string{"allow-scripts", "allow-modals", "allow-same-origin"}

// Capabilities is CapabilityList as an iframe sandbox attribute value.
var Capabilities = strings.Join(CapabilityList, " ")

var (
	ErrNothingMounted = errors.New("nothing mounted")
	ErrClosed         = errors.New("sandbox closed")
)

// Generation identifies one mount of a frame.
type Generation uint64

// Handle identifies a mounted document.
type Handle struct {
	Token      string     `json:"token"`
	Generation Generation `json:"generation"`
	MountedAt  time.Time  `json:"mounted_at"`
}

// Channel names the overlay channel an error arrived through.
type Channel string

const (
	// ChannelRuntime is the window.onerror channel.
	ChannelRuntime Channel = "runtime"
	// ChannelCompile is the app block's catch clause.
	ChannelCompile Channel = "compile"
)

// Report is what a sandbox exposes about an execution: the overlay text, as
// rendered inside the document.
type Report struct {
	Token   string     `json:"token"`
	Channel Channel    `json:"channel,omitempty"`
	Visible bool       `json:"visible"`
	Text    string     `json:"text,omitempty"`
	Console []LogEntry `json:"console,omitempty"`
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// DOMChange represents a DOM modification
type DOMChange struct {
	Type     string `json:"type"`
	Selector string `json:"selector"`
	Property string `json:"property"`
	Value    string `json:"value"`
}

// Reporter receives reports out-of-band.
type Reporter func(Report)

// Sandbox mounts assembled documents in an isolated context. Execution
// errors never come back through these calls.
type Sandbox interface {
	Mount(document string) (Handle, error)
	Unmount(h Handle)
}

// ClassifyOverlay maps overlay text to its channel.
func ClassifyOverlay(text string) Channel {
	t := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(t, "Compilation/Execution Error"):
		return ChannelCompile
	case strings.HasPrefix(t, "Runtime Error"):
		return ChannelRuntime
	default:
		return ""
	}
}
