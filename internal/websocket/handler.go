package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/academy/internal/auth"
)

// HandleWebSocket upgrades the request and runs it as a Hub client until it
// disconnects. Origins are checked against originPatterns; an empty list
// only allows same-origin connections.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, auth.IsAdmin(r.Context()))
		client.Run(r.Context())
	}
}
