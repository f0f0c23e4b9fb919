package handlers

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/spec-kit/fieldops/internal/api/dto"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/events"
	"github.com/spec-kit/fieldops/internal/service"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

const (
	defaultHeartbeat = 15 * time.Second
	streamBuffer     = 32
)

// ActivityHandler serves the activity feed and its live stream.
type ActivityHandler struct {
	service    *service.ActivityService
	dispatcher events.Dispatcher
	heartbeat  time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewActivityHandler constructs handler. A non-positive heartbeat uses 15s.
func NewActivityHandler(activityService *service.ActivityService, dispatcher events.Dispatcher, heartbeat time.Duration) *ActivityHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &ActivityHandler{
		service:    activityService,
		dispatcher: dispatcher,
		heartbeat:  heartbeat,
		done:       make(chan struct{}),
	}
}

// Close ends every open stream.
func (h *ActivityHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// List GET /activity/:entityType/:entityId.
func (h *ActivityHandler) List(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	entityType := domain.EntityType(c.Params("entityType"))
	page, err := h.service.List(c.UserContext(), tenantID, userID, entityType, c.Params("entityId"), pageQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.ActivityEventResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, activityResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Total: page.Total, Limit: page.Limit, Offset: page.Offset},
	})
}

// Archive DELETE /activity/events/:eventId.
func (h *ActivityHandler) Archive(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.service.Archive(c.UserContext(), tenantID, userID, c.Params("eventId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Stream GET /activity/:entityType/:entityId/stream pushes notifications as server-sent events.
// Membership is enforced by the tenant route group before the stream opens.
func (h *ActivityHandler) Stream(c *fiber.Ctx) error {
	tenantID, _, err := caller(c)
	if err != nil {
		return err
	}
	entityType := domain.EntityType(c.Params("entityType"))
	if !entityType.Valid() {
		return apperrors.NewInvalidInput("unknown entity type", map[string]any{"entityType": entityType})
	}
	topic := events.Topic(tenantID, entityType, c.Params("entityId"))
	encode := c.App().Config().JSONEncoder

	queue := make(chan events.Notification, streamBuffer)
	unsubscribe := h.dispatcher.Subscribe(topic, func(_ context.Context, n events.Notification) {
		select {
		case queue <- n:
		default:
			// slow reader; it can recover from the list endpoint
		}
	})

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		fmt.Fprintf(w, ": subscribed %s\n\n", topic)
		if w.Flush() != nil {
			return
		}
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			case n := <-queue:
				body, err := encode(n)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: activity\ndata: %s\n\n", n.ActivityEventID, body)
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}

func activityResponse(e *domain.ActivityEvent) dto.ActivityEventResponse {
	return dto.ActivityEventResponse{
		ID:         e.ID,
		ActorID:    e.ActorID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		EventType:  e.EventType,
		Message:    e.Message,
		Metadata:   e.Metadata,
		CreatedAt:  e.CreatedAt,
	}
}
