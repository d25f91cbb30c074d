package api

import (
	"net/http"
	"os"
	"strings"

	"fieldbox/internal/ws"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The board UI is served from the same origin in deployments;
		// cross-origin checks are left to the reverse proxy.
		return true
	},
}

func (d Dependencies) wsHandler(w http.ResponseWriter, r *http.Request) {
	if d.Hub == nil {
		d.Log.Error("websocket hub not initialized")
		http.Error(w, "WebSocket hub not initialized", http.StatusInternalServerError)
		return
	}

	clientID := extractClientID(r)
	if clientID == "" {
		clientID = "anonymous"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Log.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	d.Log.Info("websocket connected",
		zap.String("remote", r.RemoteAddr), zap.String("client_id", clientID))

	wsConn := ws.NewConn(conn, d.Hub, clientID)
	d.Hub.Register(wsConn)

	go wsConn.WritePump()
	go wsConn.ReadPump()
}

// extractClientID resolves the caller identity used as the replay cursor
// key: a JWT subject when the jwt subprotocol is negotiated, or the
// X-Client-ID development header.
func extractClientID(r *http.Request) string {
	for _, subprotocol := range websocket.Subprotocols(r) {
		if subprotocol != "jwt" {
			continue
		}
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			tokenString = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if tokenString == "" {
			continue
		}

		jwtSecret := os.Getenv("JWT_SECRET")
		if jwtSecret == "" {
			jwtSecret = "dev-secret-change-in-production"
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			continue
		}
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if sub, _ := claims["sub"].(string); sub != "" {
				return sub
			}
		}
	}

	return r.Header.Get("X-Client-ID")
}
