package realtime

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	myMiddleware "chatsync/internal/middleware"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Handler upgrades authenticated requests into hub clients.
type Handler struct {
	hub       *Hub
	chats     ChatService
	log       *slog.Logger
	upgrader  websocket.Upgrader
	sendQueue int
}

// NewHandler builds the /ws endpoint. An empty allowedOrigins accepts any origin.
func NewHandler(hub *Hub, chats ChatService, log *slog.Logger, sendQueue int, allowedOrigins []string) *Handler {
	if log == nil {
		log = slog.Default()
	}
	origins := lo.FilterMap(allowedOrigins, func(o string, _ int) (string, bool) {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		return o, o != ""
	})
	return &Handler{
		hub:       hub,
		chats:     chats,
		log:       log,
		sendQueue: sendQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(origins),
		},
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin.
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return lo.Contains(allowed, strings.ToLower(u.Scheme+"://"+u.Host))
	}
}

// ServeWs handles GET /ws. The caller must already be authenticated.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Info("ws.upgrade.fail", "user_id", userID, "err", err)
		return
	}

	client := newClient(h.hub, conn, userID, h.chats, h.sendQueue, h.log)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}
	h.log.Debug("ws.connect", "user_id", userID)

	go client.writePump()
	go client.readPump()
}
