package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"syncline/internal/gateway/hub"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type EventsHandler struct {
	log *zap.Logger
	hub *hub.Hub
}

func NewEventsHandler(log *zap.Logger, h *hub.Hub) *EventsHandler {
	return &EventsHandler{
		log: log,
		hub: h,
	}
}

// Stream upgrades the request to a websocket session subscribed to the
// tenant's event channels. The optional "channels" query parameter is a
// comma-separated filter; absent means all channels.
func (h *EventsHandler) Stream(c *gin.Context) {
	tenantID, err := TenantFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ResponseWithMessage{
			Status:  StatusNotPermitted,
			Message: err.Error(),
		})
		return
	}

	var channels []string
	if raw := c.Query("channels"); raw != "" {
		for _, channel := range strings.Split(raw, ",") {
			if channel = strings.TrimSpace(channel); channel != "" {
				channels = append(channels, channel)
			}
		}
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	h.log.Debug("Event session opened",
		zap.String("tenant_id", tenantID),
		zap.Strings("channels", channels),
	)

	client := hub.NewClient(h.hub, conn, tenantID, channels)
	client.Serve(c.Request.Context())
}
