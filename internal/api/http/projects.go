package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/templates"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/workspace"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/utils"
)

// ListProjects returns the caller's projects, most recently updated first.
func (h *Handlers) ListProjects(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), owner(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []project.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": list})
}

type createProjectRequest struct {
	WorkspaceID string `json:"workspace_id"`
	TemplateID  string `json:"template_id"`
	Title       string `json:"title"`
}

// CreateProject saves a new project. With workspace_id it persists that
// workspace, which adopts the new id; otherwise it starts from a template.
func (h *Handlers) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	if req.WorkspaceID != "" {
		w, err := h.workspaces.GetOwned(req.WorkspaceID, owner(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		if req.Title != "" {
			w.SetTitle(req.Title)
		}
		projectID, err := w.Save(ctx)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": projectID, "workspace_id": w.ID()})
		return
	}

	templateID := req.TemplateID
	if templateID == "" {
		templateID = templates.DefaultID
	}
	tmpl, err := h.templates.Get(templateID)
	if err != nil {
		h.fail(c, err)
		return
	}

	p := project.New(owner(c))
	p.Files = tmpl.Files
	p.Title = tmpl.Title
	if req.Title != "" {
		p.Title = project.SanitizeTitle(req.Title)
	}
	projectID, err := h.store.Create(ctx, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": projectID})
}

type updateProjectRequest struct {
	Title *string        `json:"title"`
	Files *project.Files `json:"files"`
}

// UpdateProject replaces the title and/or files of a stored project.
func (h *Handlers) UpdateProject(c *gin.Context) {
	p, ok := h.ownedProject(c)
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Title != nil {
		p.Title = project.SanitizeTitle(*req.Title)
	}
	if req.Files != nil {
		if err := validateFiles(*req.Files); err != nil {
			badRequest(c, err)
			return
		}
		p.Files = project.Normalize(*req.Files)
	}

	if err := h.store.Update(c.Request.Context(), p.ID, p); err != nil {
		h.fail(c, err)
		return
	}
	updated, err := h.store.Get(c.Request.Context(), p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteProject removes a project. Open workspaces showing it are reset to
// a new project.
func (h *Handlers) DeleteProject(c *gin.Context) {
	projectID := c.Param("id")
	if err := utils.ValidateID(projectID, "project_id"); err != nil {
		badRequest(c, err)
		return
	}
	err := h.workspaces.DeleteProject(c.Request.Context(), owner(c), projectID)
	if errors.Is(err, workspace.ErrForbidden) {
		err = fmt.Errorf("%w: %s", workspace.ErrNotFound, projectID)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("Deleted project", zap.String("project", projectID), zap.String("owner", owner(c)))
	c.JSON(http.StatusOK, gin.H{"success": true, "id": projectID})
}

// ListTemplates returns the starter templates.
func (h *Handlers) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": h.templates.List()})
}

// ownedProject loads the :id project if the caller owns it. Projects of
// other owners are reported as missing.
func (h *Handlers) ownedProject(c *gin.Context) (project.Project, bool) {
	projectID := c.Param("id")
	if err := utils.ValidateID(projectID, "project_id"); err != nil {
		badRequest(c, err)
		return project.Project{}, false
	}
	p, err := h.store.Get(c.Request.Context(), projectID)
	if err == nil && p.OwnerID != owner(c) {
		err = fmt.Errorf("%w: %s", workspace.ErrNotFound, projectID)
	}
	if err != nil {
		h.fail(c, err)
		return project.Project{}, false
	}
	return p, true
}

func validateFiles(f project.Files) error {
	if f.Len() > utils.MaxProjectFiles {
		return fmt.Errorf("%d files exceeds maximum %d", f.Len(), utils.MaxProjectFiles)
	}
	for _, name := range f.Names() {
		if err := utils.ValidateFileName(name); err != nil {
			return err
		}
		if err := utils.ValidateFileContent(name, f.Content(name)); err != nil {
			return err
		}
	}
	return nil
}
