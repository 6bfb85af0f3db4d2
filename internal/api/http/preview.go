package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/preview"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/sandbox"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/workspace"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/utils"
)

const (
	htmlContentType = "text/html; charset=utf-8"
	jsonContentType = "application/json; charset=utf-8"
)

// checkTimeout bounds a headless check on top of the runtime's own budget.
var checkTimeout = 10 * time.Second

// Document returns the last compiled document. ?format=html serves the raw
// markup; the default is the JSON form with dependencies and diagnostics.
// Both honour If-None-Match and compress large bodies.
func (h *Handlers) Document(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	doc := w.Document()
	if doc.HTML == "" {
		h.fail(c, workspace.ErrNothingMounted)
		return
	}

	etag := utils.ETag(doc.ETag)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	if notModified(c.Request, etag) {
		c.Status(http.StatusNotModified)
		return
	}

	if c.Query("format") == "html" {
		writeBody(c, http.StatusOK, htmlContentType, []byte(doc.HTML))
		return
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []preview.Diagnostic{}
	}
	body, err := sonic.Marshal(doc)
	if err != nil {
		h.fail(c, err)
		return
	}
	writeBody(c, http.StatusOK, jsonContentType, body)
}

// Manifest lists the scripts and stylesheets the current document loads.
func (h *Handlers) Manifest(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	doc := w.Document()
	if doc.HTML == "" {
		h.fail(c, workspace.ErrNothingMounted)
		return
	}
	m, err := preview.Inspect(doc.HTML)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"etag":             doc.ETag,
		"manifest":         m,
		"external_scripts": nonNil(m.ExternalScripts()),
	})
}

// Check runs the current document headlessly and returns what the error
// overlay would show.
func (h *Handlers) Check(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "headless checks are disabled"})
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	result, err := w.Check(ctx, h.runner)
	if result == nil {
		h.fail(c, err)
		return
	}
	body := gin.H{"result": result}
	if err != nil {
		body["error"] = err.Error()
		body["timed_out"] = errors.Is(err, sandbox.ErrTimeout)
		h.logger.Debug("Headless check aborted", zap.String("workspace", w.ID()), zap.Error(err))
	}
	c.JSON(http.StatusOK, body)
}

// CheckDependencies probes the CDN for every resolved dependency.
func (h *Handlers) CheckDependencies(c *gin.Context) {
	if h.prober == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dependency checks are disabled"})
		return
	}
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	report := h.prober.Probe(c.Request.Context(), w.Document().Dependencies)
	c.JSON(http.StatusOK, report)
}

// Preview serves a mounted document with the sandbox isolation headers.
// Unknown or unmounted tokens are 404: a superseded mount never resolves.
func (h *Handlers) Preview(c *gin.Context) {
	doc, ok := h.host.Document(c.Param("token"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}
	sandbox.SetHeaders(c.Writer.Header())
	writeBody(c, http.StatusOK, htmlContentType, []byte(doc))
}
