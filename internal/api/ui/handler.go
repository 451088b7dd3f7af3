package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eduquery/eduquery/internal/api/middleware"
	"github.com/eduquery/eduquery/internal/config"
	"github.com/eduquery/eduquery/internal/domain"
	"github.com/eduquery/eduquery/internal/notify"
	"github.com/eduquery/eduquery/internal/render"
	"github.com/eduquery/eduquery/internal/service"
	"github.com/eduquery/eduquery/internal/workspace"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Handler serves the UI API of one page: file selection, upload, query,
// rendered answer and notifications
type Handler struct {
	renderer *render.Renderer
	upload   config.UploadConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new UI handler
func NewHandler(renderer *render.Renderer, upload config.UploadConfig, allowOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		renderer: renderer,
		upload:   upload,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowOrigins, origin)
			},
		},
	}
}

// RegisterRoutes registers UI routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/state", h.GetState)
	r.PUT("/file", h.SelectFile)
	r.DELETE("/file", h.ClearFile)
	r.POST("/upload", h.Upload)
	r.POST("/query", h.Query)
	r.GET("/answer", h.GetAnswer)
	r.GET("/notifications", h.ListNotifications)
	r.DELETE("/notifications/:id", h.DismissNotification)
	r.GET("/ws", h.Stream)
}

// AnswerView is the rendered answer plus the backend object it came from
type AnswerView struct {
	HTML   string               `json:"html"`
	Result *domain.AnswerResult `json:"result,omitempty"`
}

// FlowView is the state of one flow
type FlowView struct {
	State    domain.RequestState `json:"state"`
	Pending  *domain.PendingFile `json:"pending,omitempty"`
	Question string              `json:"question,omitempty"`
}

// StateView is a snapshot of the whole workspace
type StateView struct {
	SessionID     string                `json:"session_id"`
	Upload        FlowView              `json:"upload"`
	Query         FlowView              `json:"query"`
	Answer        AnswerView            `json:"answer"`
	Notifications []notify.Notification `json:"notifications"`
}

func (h *Handler) answerView(ws *workspace.Workspace) AnswerView {
	result := ws.Query.Result()
	return AnswerView{
		HTML:   string(h.renderer.Render(result)),
		Result: result,
	}
}

// GetState returns the workspace snapshot
func (h *Handler) GetState(c *gin.Context) {
	ws := middleware.WorkspaceFrom(c)

	c.JSON(http.StatusOK, StateView{
		SessionID: ws.ID,
		Upload: FlowView{
			State:   ws.Upload.State(),
			Pending: ws.Upload.Pending(),
		},
		Query: FlowView{
			State:    ws.Query.State(),
			Question: ws.Query.Question(),
		},
		Answer:        h.answerView(ws),
		Notifications: ws.Notices.Visible(),
	})
}

// SelectFile stores the uploaded form file as the pending file
func (h *Handler) SelectFile(c *gin.Context) {
	ws := middleware.WorkspaceFrom(c)

	file, err := c.FormFile("file")
	if err != nil {
		h.rejectSelection(c, ws, &domain.ValidationError{Field: "file", Message: service.MsgNoFileSelected})
		return
	}

	fileType := domain.DetectFileType(file.Filename)
	if !h.upload.AllowsType(fileType) {
		h.rejectSelection(c, ws, &domain.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("Unsupported file type %q.", fileType),
			Err:     domain.ErrUnsupportedFile,
		})
		return
	}
	if file.Size > h.upload.MaxSize {
		h.rejectSelection(c, ws, &domain.ValidationError{
			Field:   "file",
			Message: "The selected file is too large.",
			Err:     domain.ErrFileTooLarge,
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, h.upload.MaxSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}
	if int64(len(content)) > h.upload.MaxSize {
		h.rejectSelection(c, ws, &domain.ValidationError{
			Field:   "file",
			Message: "The selected file is too large.",
			Err:     domain.ErrFileTooLarge,
		})
		return
	}

	pending := domain.NewPendingFile(file.Filename, content)
	ws.Upload.Select(pending)

	c.JSON(http.StatusOK, FlowView{State: ws.Upload.State(), Pending: pending})
}

func (h *Handler) rejectSelection(c *gin.Context, ws *workspace.Workspace, err *domain.ValidationError) {
	ws.Notices.Notify(notify.KindWarning, err.Message)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Message})
}

// ClearFile drops the pending file
func (h *Handler) ClearFile(c *gin.Context) {
	middleware.WorkspaceFrom(c).Upload.Clear()
	c.Status(http.StatusNoContent)
}

// Upload runs the upload flow
func (h *Handler) Upload(c *gin.Context) {
	ws := middleware.WorkspaceFrom(c)

	closeDialog := false
	// A started upload runs to completion even if the browser goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := ws.Upload.Submit(ctx, func() { closeDialog = true }); err != nil {
		writeFlowError(c, err, service.MsgUploadFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"message":      service.MsgUploadSuccess,
		"close_dialog": closeDialog,
	})
}

type queryRequest struct {
	Question string `json:"question"`
}

// Query sets the question and runs the query flow
func (h *Handler) Query(c *gin.Context) {
	ws := middleware.WorkspaceFrom(c)

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if ws.Query.State() == domain.StateInFlight {
		writeFlowError(c, domain.ErrInFlight, service.MsgQueryFailed)
		return
	}
	ws.Query.SetQuestion(req.Question)

	ctx := context.WithoutCancel(c.Request.Context())
	if _, err := ws.Query.Submit(ctx); err != nil {
		writeFlowError(c, err, service.MsgQueryFailed)
		return
	}

	c.JSON(http.StatusOK, h.answerView(ws))
}

// GetAnswer returns the currently displayed answer
func (h *Handler) GetAnswer(c *gin.Context) {
	c.JSON(http.StatusOK, h.answerView(middleware.WorkspaceFrom(c)))
}

// ListNotifications returns the visible notifications
func (h *Handler) ListNotifications(c *gin.Context) {
	ws := middleware.WorkspaceFrom(c)
	c.JSON(http.StatusOK, gin.H{"notifications": ws.Notices.Visible()})
}

// DismissNotification removes a notification before it expires
func (h *Handler) DismissNotification(c *gin.Context) {
	ws := middleware.WorkspaceFrom(c)
	if !ws.Notices.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream pushes notifications over a websocket as they are raised
func (h *Handler) Stream(c *gin.Context) {
	ws := middleware.WorkspaceFrom(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	notes, cancel := ws.Notices.Subscribe()
	defer cancel()

	conn.SetReadLimit(4 << 10)
	conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		return nil
	})

	// The client never sends anything meaningful; reading detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("Websocket read error", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case n, ok := <-notes:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// writeFlowError maps flow errors to HTTP responses. The user has already
// been notified by the flow.
func writeFlowError(c *gin.Context, err error, fallback string) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": domain.NotificationMessage(err, fallback)})
	}
}
