package sla

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"SLAMonitor/internal/notification"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// NotificationHistory lists past delivery attempts for a ticket.
type NotificationHistory interface {
	RecentForTicket(ctx context.Context, ticketID primitive.ObjectID, limit int64) ([]*notification.LogEntry, error)
}

// SLAHandler exposes the monitor over HTTP.
type SLAHandler struct {
	monitor      *Monitor
	history      NotificationHistory
	sweepTimeout time.Duration
	logger       *zap.Logger
}

const defaultSweepTimeout = 5 * time.Minute

func NewSLAHandler(monitor *Monitor, history NotificationHistory, sweepTimeout time.Duration, logger *zap.Logger) *SLAHandler {
	if sweepTimeout <= 0 {
		sweepTimeout = defaultSweepTimeout
	}
	return &SLAHandler{monitor: monitor, history: history, sweepTimeout: sweepTimeout, logger: logger}
}

// CronCheck runs a batch sweep and returns its summary. The sweep outlives a
// caller that disconnects early and is bounded by the sweep timeout instead.
func (h *SLAHandler) CronCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.sweepTimeout)
	defer cancel()

	summary := h.monitor.CheckAndNotifySLA(ctx)
	return c.JSON(http.StatusOK, summary)
}

// CheckTicket re-evaluates one ticket, typically after the portal showed or
// updated it.
func (h *SLAHandler) CheckTicket(c echo.Context) error {
	id := c.Param("id")
	if !primitive.IsValidObjectID(id) {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "Invalid ticket id", "notified": false})
	}
	notified := h.monitor.CheckTicketSLA(c.Request().Context(), id)
	return c.JSON(http.StatusOK, map[string]any{"ticket_id": id, "notified": notified})
}

// TicketNotifications returns the latest delivery attempts for a ticket.
func (h *SLAHandler) TicketNotifications(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid ticket id"})
	}
	limit := int64(50)
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	entries, err := h.history.RecentForTicket(c.Request().Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list ticket notifications", zap.String("ticket_id", id.Hex()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list notifications"})
	}
	if entries == nil {
		entries = []*notification.LogEntry{}
	}
	return c.JSON(http.StatusOK, map[string]any{"ticket_id": id.Hex(), "notifications": entries})
}

// Health reports liveness.
func (h *SLAHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
