package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/api/middleware"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/identity"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/sandbox"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/templates"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/workspace"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/monitoring"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/providers/cdn"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/utils"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/store"
)

const (
	serviceName    = "react-editor"
	serviceVersion = "1.0.0"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Workspaces *workspace.Manager
	Store      *store.Store
	Identity   *identity.Service
	Templates  *templates.Catalog
	Host       *sandbox.Host
	Runner     workspace.Runner // nil disables headless checks
	Prober     *cdn.Prober      // nil disables dependency checks
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	workspaces *workspace.Manager
	store      *store.Store
	identity   *identity.Service
	templates  *templates.Catalog
	host       *sandbox.Host
	runner     workspace.Runner
	prober     *cdn.Prober
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(d Deps) *Handlers {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := d.Templates
	if catalog == nil {
		catalog = templates.NewCatalog()
	}
	return &Handlers{
		workspaces: d.Workspaces,
		store:      d.Store,
		identity:   d.Identity,
		templates:  catalog,
		host:       d.Host,
		runner:     d.Runner,
		prober:     d.Prober,
		metrics:    d.Metrics,
		logger:     logger,
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":     "healthy",
		"workspaces": h.workspaces.Len(),
		"mounts":     h.host.Len(),
		"templates":  h.templates.Len(),
		"headless":   h.runner != nil,
	}
	if h.prober != nil {
		body["cdn_breaker"] = h.prober.BreakerState().String()
	}
	c.JSON(http.StatusOK, body)
}

// SignInAnonymously issues a session for a fresh anonymous owner.
func (h *Handlers) SignInAnonymously(c *gin.Context) {
	session, err := h.identity.SignInAnonymously()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// SignInWithToken exchanges a custom token for a session.
func (h *Handlers) SignInWithToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, err := h.identity.SignInWithCustomToken(req.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// owner returns the caller's owner id. Routes behind middleware.Auth always
// have one.
func owner(c *gin.Context) string {
	p, _ := middleware.Principal(c)
	return p.OwnerID
}

// workspace resolves the :id parameter to a workspace the caller owns.
func (h *Handlers) workspace(c *gin.Context) (*workspace.Workspace, bool) {
	wsID := c.Param("id")
	if err := utils.ValidateID(wsID, "workspace_id"); err != nil {
		badRequest(c, err)
		return nil, false
	}
	w, err := h.workspaces.GetOwned(wsID, owner(c))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return w, true
}
