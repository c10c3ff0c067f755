package handler

import (
	"net/http"
	"strings"

	"carelink/internal/middleware"
	"carelink/internal/realtime"
	"carelink/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now (CORS)
	},
}

// RealtimeHandler upgrades authenticated clients onto the location push
// channel.
type RealtimeHandler struct {
	hub      *realtime.Hub
	verifier middleware.TokenVerifier
	logger   logger.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, verifier middleware.TokenVerifier, log logger.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:      hub,
		verifier: verifier,
		logger:   log,
	}
}

// ServeWS authenticates the handshake with the same token verification as the
// HTTP API, then hands the connection to the hub.
func (h *RealtimeHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	identity, err := h.verifier.VerifyToken(r.Context(), token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired session")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	realtime.NewClient(h.hub, conn, identity.UserID)
}
