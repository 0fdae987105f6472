package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"linkara.id/linkaraconnect/internal/realtime"
)

// WSHandler upgrades HTTP requests into authenticated realtime
// channels and hands them to the hub.
type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is enforced at the router level
			},
		},
	}
}

// HandleWebSocket authenticates the bearer credential (header or
// `token` query parameter) and runs the channel's pumps. A failed
// channel-open never completes: no upgrade side effects beyond the
// close frame, and no registry entry.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	credential := c.Query("token")
	if credential == "" {
		if t, ok := c.Get("token"); ok {
			credential = t.(string)
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[ws] failed to upgrade websocket: %v", err)
		return
	}

	client, err := h.hub.Connect(c.Request.Context(), credential, conn)
	if err != nil {
		log.Printf("[ws] channel-open rejected: %v", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(h.hub)
}
