package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/watchpay-backend/internal/http/handlers/common"
	"github.com/ignatzorin/watchpay-backend/internal/logger"
	"github.com/ignatzorin/watchpay-backend/internal/service"
	"github.com/ignatzorin/watchpay-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub          *ws.Hub
	tokenManager *service.TokenManager
	upgrader     websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. Пустой allowedOrigins разрешает любой Origin.
func NewWSHandler(hub *ws.Hub, tokens *service.TokenManager, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:          hub,
		tokenManager: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

// Handle обслуживает GET /api/ws?token=...
// Браузер не может передать заголовок Authorization при апгрейде, поэтому токен в query.
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		common.RespondUnauthorized(c, "access токен обязателен")
		return
	}

	identity, err := h.tokenManager.ParseAccess(rawToken)
	if err != nil || identity.UserID == uuid.Nil {
		common.RespondUnauthorized(c, "невалидный access токен")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту.
		logger.WithFields(logrus.Fields{"user_id": identity.UserID, "error": err.Error()}).Warn("ws: upgrade failed")
		return
	}

	client := ws.NewClient(conn, h.hub, identity.UserID)
	if err := h.hub.Register(client); err != nil {
		logger.WithFields(logrus.Fields{"user_id": identity.UserID, "error": err.Error()}).Warn("ws: хаб недоступен")
		client.Close()
		return
	}

	client.Run(c.Request.Context())
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
