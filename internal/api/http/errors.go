package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/identity"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/templates"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/workspace"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/store"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrSaveInProgress),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, workspace.ErrNothingMounted):
		return http.StatusConflict
	case errors.Is(err, workspace.ErrInvalidContent),
		errors.Is(err, project.ErrUnknownFile),
		errors.Is(err, store.ErrNoOwner):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, workspace.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, workspace.ErrTooManyOpen):
		return http.StatusTooManyRequests
	case errors.Is(err, workspace.ErrClosed):
		return http.StatusGone
	case errors.Is(err, workspace.ErrNoStore):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error body. Server errors are logged and their
// detail is kept out of the response.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// bindOptional decodes a JSON body that may be absent.
func bindOptional(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
