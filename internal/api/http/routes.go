package http

import (
	"github.com/gin-gonic/gin"
)

// Register mounts the API on r. auth guards everything that is scoped to an
// owner; the preview route stays public because frames load it directly.
func (h *Handlers) Register(r gin.IRouter, auth gin.HandlerFunc) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics/json", h.AggregatedMetrics)
	r.GET("/templates", h.ListTemplates)
	r.GET("/preview/:token", h.Preview)

	a := r.Group("/auth")
	{
		a.POST("/anonymous", h.SignInAnonymously)
		a.POST("/token", h.SignInWithToken)
	}

	p := r.Group("/projects", auth)
	{
		p.GET("", h.ListProjects)
		p.POST("", h.CreateProject)
		p.PUT("/:id", h.UpdateProject)
		p.DELETE("/:id", h.DeleteProject)
	}

	w := r.Group("/workspaces", auth)
	{
		w.POST("", h.OpenWorkspace)
		w.GET("/:id", h.GetWorkspace)
		w.DELETE("/:id", h.CloseWorkspace)
		w.PUT("/:id/files/:name", h.EditFile)
		w.PUT("/:id/active", h.SetActive)
		w.PUT("/:id/mode", h.SetMode)
		w.PUT("/:id/title", h.SetTitle)
		w.POST("/:id/run", h.Run)
		w.POST("/:id/refresh", h.Refresh)
		w.POST("/:id/save", h.Save)
		w.POST("/:id/check", h.Check)
		w.POST("/:id/dependencies/check", h.CheckDependencies)
		w.GET("/:id/document", h.Document)
		w.GET("/:id/manifest", h.Manifest)
	}
}
