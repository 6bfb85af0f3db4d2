package sandbox

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/id"
)

// Host serves mounted documents to browsers. Each mount gets a fresh token,
// so a remount is always a new URL and never a reused frame.
type Host struct {
	mu      sync.RWMutex
	docs    map[string]hosted
	baseURL string
	logger  *zap.Logger
	closed  bool
}

type hosted struct {
	document  string
	mountedAt time.Time
}

// NewHost creates a host whose documents live under baseURL + "/preview/".
func NewHost(baseURL string, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		docs:    make(map[string]hosted),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Mount registers document under a new token.
func (h *Host) Mount(document string) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return Handle{}, ErrClosed
	}

	token := id.NewMountToken().String()
	now := time.Now()
	h.docs[token] = hosted{document: document, mountedAt: now}

	h.logger.Debug("Mounted preview", zap.String("token", token), zap.Int("bytes", len(document)))
	return Handle{Token: token, MountedAt: now}, nil
}

// Unmount forgets the document; its URL stops resolving.
func (h *Host) Unmount(handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.docs, handle.Token)
}

// Document returns a mounted document by token.
func (h *Host) Document(token string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	d, ok := h.docs[token]
	return d.document, ok
}

// URL returns where a mounted document is served.
func (h *Host) URL(handle Handle) string {
	return h.baseURL + "/preview/" + handle.Token
}

// Len returns the number of live mounts.
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.docs)
}

// Close drops every mount and rejects new ones.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.docs = make(map[string]hosted)
}

// SetHeaders applies the isolation headers for a served preview document.
func SetHeaders(header http.Header) {
	header.Set("Content-Security-Policy", "sandbox "+Capabilities)
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Cache-Control", "no-store")
	header.Set("Referrer-Policy", "no-referrer")
}

// IframeAttributes returns the attributes an embedding page should use.
func IframeAttributes(src string) map[string]string {
	return map[string]string{
		"src":     src,
		"sandbox": Capabilities,
		"title":   "preview",
	}
}
