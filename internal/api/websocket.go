package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"echobox/internal/auth"
	"echobox/internal/db"
	"echobox/internal/models"
	"echobox/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub        *ws.Hub
	jwtService *auth.JWTService
	userRepo   *db.UserRepository
}

func NewWebSocketHandler(hub *ws.Hub, jwtService *auth.JWTService, userRepo *db.UserRepository) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		jwtService: jwtService,
		userRepo:   userRepo,
	}
}

// ServeWS upgrades to a listener connection. Listening is open to anyone; a
// token, when supplied, must be valid.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	var user *models.User
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := h.jwtService.ValidateToken(token)
		if err != nil {
			unauthorized(w, "Invalid token")
			return
		}

		user, err = h.userRepo.FindByID(r.Context(), claims.UserID)
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				slog.Error("error resolving websocket user", "user_id", claims.UserID, "error", err)
			}
			unauthorized(w, "User not found")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := ws.NewClient(h.hub, conn, user)
	client.SendHello()

	if err := client.Register(); err != nil {
		slog.Warn("websocket registration failed", "session_id", client.SessionID(), "error", err)
		client.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
