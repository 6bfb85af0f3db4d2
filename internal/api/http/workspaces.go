package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/sandbox"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/scheduler"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/workspace"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/utils"
)

type openWorkspaceRequest struct {
	ProjectID  string `json:"project_id"`
	TemplateID string `json:"template_id"`
	Title      string `json:"title"`
	Mode       string `json:"mode"`
}

// OpenWorkspace starts an editor session from a stored project, a template
// or the default project, compiles it and mounts the first preview.
func (h *Handlers) OpenWorkspace(c *gin.Context) {
	var req openWorkspaceRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	open := workspace.OpenRequest{OwnerID: owner(c), ProjectID: req.ProjectID, Title: req.Title}
	if req.ProjectID != "" {
		if err := utils.ValidateID(req.ProjectID, "project_id"); err != nil {
			badRequest(c, err)
			return
		}
	} else if req.TemplateID != "" {
		tmpl, err := h.templates.Get(req.TemplateID)
		if err != nil {
			h.fail(c, err)
			return
		}
		open.Files = &tmpl.Files
		if open.Title == "" {
			open.Title = tmpl.Title
		}
	}

	var mode scheduler.Mode
	if req.Mode != "" {
		m, err := scheduler.ParseMode(req.Mode)
		if err != nil {
			badRequest(c, err)
			return
		}
		mode = m
	}

	w, err := h.workspaces.Open(c.Request.Context(), open)
	if err != nil {
		h.fail(c, err)
		return
	}
	if mode != "" {
		w.SetMode(mode)
	}
	c.JSON(http.StatusCreated, w.State())
}

// GetWorkspace returns the workspace state.
func (h *Handlers) GetWorkspace(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// CloseWorkspace closes a workspace and unmounts its preview.
func (h *Handlers) CloseWorkspace(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := h.workspaces.Close(w.ID()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": w.ID()})
}

type editRequest struct {
	Content *string `json:"content" binding:"required"`
}

// EditFile replaces one file. In automatic mode the edit arms the debounced
// compile; the response says whether it did.
func (h *Handlers) EditFile(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	name := c.Param("name")
	if err := utils.ValidateFileName(name); err != nil {
		badRequest(c, err)
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	scheduled, err := w.Edit(name, *req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": name, "scheduled": scheduled})
}

type activeRequest struct {
	File string `json:"file" binding:"required"`
}

// SetActive selects the file shown in the editor.
func (h *Handlers) SetActive(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := w.SetActive(req.File); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_file": req.File})
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// SetMode switches between automatic and manual compilation.
func (h *Handlers) SetMode(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	mode, err := scheduler.ParseMode(strings.ToLower(req.Mode))
	if err != nil {
		badRequest(c, err)
		return
	}
	w.SetMode(mode)
	c.JSON(http.StatusOK, gin.H{"mode": mode})
}

type titleRequest struct {
	Title string `json:"title"`
}

// SetTitle renames the workspace project.
func (h *Handlers) SetTitle(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": w.SetTitle(req.Title)})
}

// Run compiles synchronously and remounts the preview.
func (h *Handlers) Run(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	mount, err := w.Run()
	if err != nil {
		h.fail(c, err)
		return
	}
	doc := w.Document()
	setGeneration(c, mount.Generation)
	c.JSON(http.StatusOK, gin.H{
		"mount":        mount,
		"etag":         doc.ETag,
		"dependencies": doc.Dependencies,
		"diagnostics":  nonNil(doc.Diagnostics),
	})
}

// Refresh remounts the last document without compiling.
func (h *Handlers) Refresh(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	mount, err := w.Refresh()
	if err != nil {
		h.fail(c, err)
		return
	}
	setGeneration(c, mount.Generation)
	c.JSON(http.StatusOK, gin.H{"mount": mount})
}

// Save persists the workspace. A save already in flight yields 409.
func (h *Handlers) Save(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	projectID, err := w.Save(c.Request.Context())
	if err != nil {
		if status := statusFor(err); status < http.StatusInternalServerError {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Save failed", zap.String("workspace", w.ID()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":        "Save failed",
			"notification": workspace.Notification{Level: workspace.LevelError, Message: "Save failed", Detail: err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": projectID})
}

func setGeneration(c *gin.Context, g sandbox.Generation) {
	c.Header("X-Preview-Generation", strconv.FormatUint(uint64(g), 10))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
