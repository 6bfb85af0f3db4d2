package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/api/middleware"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/project"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/workspace"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/monitoring"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	bufferSize = 64

	// Frames up to maxMessageSize are handled; larger ones get an error
	// reply. Past readLimit the connection is dropped.
	maxMessageSize = 2 * utils.MaxFileSize
	readLimit      = 8 * utils.MaxFileSize
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Access is gated by the session token, not the origin
	},
}

// ProjectSource streams an owner's project list.
type ProjectSource interface {
	Subscribe(ctx context.Context, ownerID string) (<-chan []project.Project, func())
}

// Message is a client request.
type Message struct {
	Type    string `json:"type"`
	File    string `json:"file,omitempty"`
	Content string `json:"content,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	workspaces *workspace.Manager
	projects   ProjectSource
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewHandler creates a new WebSocket handler. projects may be nil, in
// which case no project lists are pushed.
func NewHandler(workspaces *workspace.Manager, projects ProjectSource, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		workspaces: workspaces,
		projects:   projects,
		metrics:    metrics,
		logger:     logger,
	}
}

// HandleConnection upgrades /stream?workspace=<id> and streams the
// workspace until either side goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
		return
	}
	wsID := c.Query("workspace")
	if err := utils.ValidateID(wsID, "workspace"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.workspaces.GetOwned(wsID, principal.OwnerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	log := h.logger.With(zap.String("workspace", wsID), zap.String("owner", principal.OwnerID))
	log.Debug("Stream connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe := h.workspaces.Bus().Subscribe(wsID, bufferSize)
	defer unsubscribe()

	var projects <-chan []project.Project
	if h.projects != nil {
		ch, stop := h.projects.Subscribe(ctx, principal.OwnerID)
		defer stop()
		projects = ch
	}

	replies := make(chan gin.H, bufferSize)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		h.readLoop(ctx, conn, w, replies, log)
	}()

	h.send(conn, gin.H{
		"type":      "system",
		"message":   "Connected to workspace",
		"workspace": wsID,
		"state":     w.State(),
		"timestamp": time.Now().Unix(),
	})
	h.writeLoop(ctx, conn, wsID, events, projects, replies, log)

	// The reader may be blocked handing over a reply; cancel before waiting.
	cancel()
	conn.Close()
	<-readerDone
	log.Debug("Stream closed")
}

func (h *Handler) writeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	wsID string,
	events <-chan workspace.Event,
	projects <-chan []project.Project,
	replies <-chan gin.H,
	log *zap.Logger,
) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "workspace closed"))
				return
			}
			err = h.sendEvent(conn, e)
		case list, ok := <-projects:
			if !ok {
				projects = nil
				continue
			}
			err = h.sendEvent(conn, workspace.Event{
				Type:      workspace.EventProjects,
				Workspace: wsID,
				Projects:  list,
				Time:      time.Now(),
			})
		case r := <-replies:
			err = h.send(conn, r)
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			log.Debug("WebSocket write error", zap.Error(err))
			return
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, w *workspace.Workspace, replies chan<- gin.H, log *zap.Logger) {
	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		reply := h.decode(w, data)
		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

// decode checks and parses one frame, then handles it.
func (h *Handler) decode(w *workspace.Workspace, data []byte) gin.H {
	if err := utils.ValidateSize(data, maxMessageSize); err != nil {
		h.metrics.RecordWSMessage("in", "rejected")
		return errorReply(err)
	}
	var msg Message
	if err := sonic.Unmarshal(data, &msg); err != nil {
		h.metrics.RecordWSMessage("in", "rejected")
		return errorReply(fmt.Errorf("invalid message: %w", err))
	}
	h.metrics.RecordWSMessage("in", messageLabel(msg.Type))
	return h.handle(w, msg)
}

// handle applies one client message and returns the reply.
func (h *Handler) handle(w *workspace.Workspace, msg Message) gin.H {
	switch msg.Type {
	case "ping":
		return gin.H{"type": "pong", "timestamp": time.Now().Unix()}
	case "edit":
		scheduled, err := w.Edit(msg.File, msg.Content)
		if err != nil {
			return errorReply(err)
		}
		return ack(msg.Type, gin.H{"file": msg.File, "scheduled": scheduled})
	case "run":
		mount, err := w.Run()
		if err != nil {
			return errorReply(err)
		}
		return ack(msg.Type, gin.H{"mount": mount})
	case "refresh":
		mount, err := w.Refresh()
		if err != nil {
			return errorReply(err)
		}
		return ack(msg.Type, gin.H{"mount": mount})
	}
	return errorReply(errors.New("unknown message type: " + msg.Type))
}

func messageLabel(t string) string {
	switch t {
	case "ping", "edit", "run", "refresh":
		return t
	}
	return "unknown"
}

func ack(action string, fields gin.H) gin.H {
	fields["type"] = "ack"
	fields["action"] = action
	fields["timestamp"] = time.Now().Unix()
	return fields
}

func errorReply(err error) gin.H {
	return gin.H{
		"type":      "error",
		"message":   err.Error(),
		"timestamp": time.Now().Unix(),
	}
}

func (h *Handler) sendEvent(conn *websocket.Conn, e workspace.Event) error {
	h.metrics.RecordWSMessage("out", string(e.Type))
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}

func (h *Handler) send(conn *websocket.Conn, data gin.H) error {
	if t, ok := data["type"].(string); ok {
		h.metrics.RecordWSMessage("out", t)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(data)
}
