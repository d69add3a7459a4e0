package handlers

import (
	"net/http"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DefaultKeepAlive is how often an idle event stream sends a ping
const DefaultKeepAlive = 15 * time.Second

// eventBuffer bounds the events queued for one slow stream client
const eventBuffer = 64

// SyncHandler handles sync status, manual sync and the event stream
type SyncHandler struct {
	sync      SyncController
	events    EventSource
	keepAlive time.Duration
	logger    *logrus.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(sync SyncController, events EventSource, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		sync:      sync,
		events:    events,
		keepAlive: DefaultKeepAlive,
		logger:    logger,
	}
}

// @Summary Sync status
// @Description Connectivity, in-progress flag, last successful sync and the errors of the current or last run
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncStatusSnapshot
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.GetSyncStatus())
}

// @Summary Run a full sync
// @Description Runs the sync pipeline and waits for it. Returns immediately when a sync is already running.
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncStatusSnapshot
// @Failure 503 {object} ErrorResponse
// @Router /sync [post]
func (h *SyncHandler) SyncNow(c *gin.Context) {
	if err := h.sync.SyncNow(c.Request.Context()); err != nil {
		respondError(c, "Sync failed", err)
		return
	}
	c.JSON(http.StatusOK, h.sync.GetSyncStatus())
}

// @Summary Event stream
// @Description Server-sent events for connection and sync notifications. The first event is a status snapshot.
// @Tags sync
// @Produce text/event-stream
// @Router /events [get]
func (h *SyncHandler) Events(c *gin.Context) {
	ch := make(chan services.Event, eventBuffer)
	unsubscribe := h.events.SubscribeAll(func(e services.Event) {
		select {
		case ch <- e:
		default:
			h.logger.WithField("event", e.Name).Warn("Event stream client is too slow, dropping event")
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("status", h.sync.GetSyncStatus())
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			c.SSEvent(string(e.Name), e)
		case t := <-ticker.C:
			c.SSEvent("ping", t.UTC().Format(time.RFC3339))
		}
		c.Writer.Flush()
	}
}
