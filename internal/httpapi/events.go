package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/notify"
)

// heartbeat keeps idle event streams from being cut by proxies.
var heartbeat = 30 * time.Second

// streamNotifications runs a reconciler for the caller on the requested
// project and forwards its notifications as server-sent events until the
// client disconnects.
func (h *handler) streamNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("project")
	who := IdentityFromContext(c)

	queue := notify.NewQueue(h.queueSize)
	r, err := notify.Start(ctx, notify.Config{
		Store:     h.store,
		Paths:     h.board.Paths(),
		ProjectID: projectID,
		UserID:    who.ID,
		Sink:      queue,
		Logger:    h.log,
	})
	if err != nil {
		h.writeError(c, "", err)
		return
	}
	defer r.Stop()

	h.log.Info("notification stream opened", "project", projectID, "user", who.ID)
	defer func() {
		h.log.Info("notification stream closed", "project", projectID, "user", who.ID,
			"dropped", queue.Dropped())
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"project": projectID})
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n := <-queue.C():
			c.SSEvent(notificationEvent(n), n)
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
		}
		return true
	})
}

// notificationEvent names the event a notification is sent as.
func notificationEvent(n model.Notification) string {
	if n.TaskID != "" {
		return "comment"
	}
	return string(n.Severity)
}
