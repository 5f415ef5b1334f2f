package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"querai-chat/internal/app"
	"querai-chat/internal/exchange"
	"querai-chat/internal/lifecycle"
	"querai-chat/internal/model"
	"querai-chat/internal/storage"
	"querai-chat/internal/switcher"
	"querai-chat/internal/utils"
	"querai-chat/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

type ChatHandler struct {
	app *app.App
}

func NewChatHandler(a *app.App) *ChatHandler {
	return &ChatHandler{app: a}
}

func (h *ChatHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.state())
}

func (h *ChatHandler) state() gin.H {
	return gin.H{
		"state":   h.app.Snapshot(),
		"notices": h.app.Notices.Drain(),
	}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	// An empty body starts a chat on the current data source.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.app.NewChat(c.Request.Context(), req.DataSourceID, req.Title)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrCreateInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case errors.Is(err, app.ErrNoDataSource):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id": id,
		"state":   h.app.Snapshot(),
	})
}

func (h *ChatHandler) OpenSession(c *gin.Context) {
	chatID := c.Param("id")

	if _, err := h.app.OpenChat(c.Request.Context(), chatID); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.app.Snapshot())
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	chatID := c.Param("id")

	if err := h.app.DeleteChat(c.Request.Context(), chatID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (h *ChatHandler) ClearAllSessions(c *gin.Context) {
	ran, err := h.app.DeleteAllChats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if !ran {
		c.JSON(http.StatusOK, gin.H{"message": "No sessions to delete"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All sessions cleared successfully"})
}

func (h *ChatHandler) GetSessionList(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if err := h.app.Sessions.Refresh(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions":       h.app.Sessions.Views(h.app.Store.ActiveChatID()),
		"can_delete_all": h.app.Sessions.CanDeleteAll(),
	})
}

func (h *ChatHandler) SelectSource(c *gin.Context) {
	var req model.SelectSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.app.Switcher.Select(c.Request.Context(), req.DataSourceID)
	h.switchResponse(c, out, err)
}

func (h *ChatHandler) ConfirmSwitch(c *gin.Context) {
	out, err := h.app.Switcher.Confirm(c.Request.Context())
	h.switchResponse(c, out, err)
}

func (h *ChatHandler) CancelSwitch(c *gin.Context) {
	out, err := h.app.Switcher.Cancel()
	h.switchResponse(c, out, err)
}

func (h *ChatHandler) switchResponse(c *gin.Context, out switcher.Outcome, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, out)
	case errors.Is(err, switcher.ErrNoPendingSwitch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrCreateInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "outcome": out})
	}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.app.Exchange.SendQuestion(c.Request.Context(), req.Message)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": reply, "state": h.app.Snapshot()})
	case errors.Is(err, exchange.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, exchange.ErrEmptyQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, exchange.ErrNoActiveSession):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	default:
		// The failure is already recorded in the log as an assistant message.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   err.Error(),
			"message": reply,
			"state":   h.app.Snapshot(),
		})
	}
}

func (h *ChatHandler) LoadOlder(c *gin.Context) {
	h.app.Store.LoadOlder()
	c.JSON(http.StatusOK, h.app.Snapshot())
}

func (h *ChatHandler) Logout(c *gin.Context) {
	h.app.Logout()
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Events streams one "refresh" event per refresh-bus signal until the
// client goes away.
func (h *ChatHandler) Events(c *gin.Context) {
	events, unsubscribe := h.app.Bus.Subscribe()
	defer unsubscribe()

	sseWriter := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)
	if err := sseWriter.Write("ready", "{}"); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := sseWriter.Heartbeat(); err != nil {
				logger.Warnf("heartbeat failed: %v", err)
				return
			}
		case _, ok := <-events:
			if !ok {
				return
			}
			if err := sseWriter.WriteJSON("refresh", gin.H{"active_chat_id": h.app.Store.ActiveChatID()}); err != nil {
				logger.WithFields(logrus.Fields{"error": err}).Warn("event stream write failed")
				return
			}
		}
	}
}
