package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Handler returns an HTTP handler that upgrades connections and runs them
// as hub clients.
func Handler(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN clients connect from arbitrary origins
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := newClient(hub, conn)
		client.run(r.Context())
	}
}
