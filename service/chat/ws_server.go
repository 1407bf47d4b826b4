package chat

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"QTalk/logger"
	"QTalk/tools/ids"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const pongWait = 60 * time.Second

// GroupResolver supplies the rooms a user's connection subscribes to.
type GroupResolver interface {
	RoomsForUser(ctx context.Context, userID string) ([]string, error)
}

// Server owns the websocket endpoint.
type Server struct {
	hub    *Hub
	groups GroupResolver
}

func NewServer(hub *Hub, groups GroupResolver) *Server {
	return &Server{hub: hub, groups: groups}
}

// HandleWS upgrades the connection and runs its read loop until the peer
// goes away. The user id comes from the handshake query and is not
// re-verified against a credential here.
func (s *Server) HandleWS(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.String(http.StatusBadRequest, "missing userId")
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[WS] upgrade failed: %v", err)
		return
	}

	ctx := context.Background()

	groupIDs, err := s.groups.RoomsForUser(ctx, userID)
	if err != nil {
		// The connection is still useful for direct messages.
		logger.Errorf("[WS] resolve rooms user=%s: %v", userID, err)
	}

	client := NewClient(ids.GenerateString(), userID, ws)
	if err := s.hub.Register(ctx, client, groupIDs); err != nil {
		logger.Errorf("[WS] register user=%s: %v", userID, err)
		_ = ws.Close()
		return
	}
	logger.Infof("[WS] connected user=%s session=%s", userID, client.SessionID)

	s.hub.BroadcastRoster(ctx)

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		s.hub.OnPong(ctx, userID)
		return nil
	})

	// Read loop. Clients don't send application frames over the socket
	// (sends go through the REST API); this loop exists to process
	// control frames and to notice the disconnect.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed user=%s session=%s", userID, client.SessionID)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout user=%s session=%s", userID, client.SessionID)
			} else {
				logger.Infof("[WS] read error user=%s session=%s: %v", userID, client.SessionID, err)
			}
			break
		}
	}

	s.hub.Unregister(ctx, client)
	s.hub.BroadcastRoster(ctx)
}
