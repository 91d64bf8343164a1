// Package ws is the live connection gateway: it authenticates websocket
// connections, joins each one to its room on the event bus, and fans bus
// events out to the socket until it disconnects.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"taskflow/internal/bus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Authenticator validates a live-connection credential and returns the user
// identity. The same JWT scheme as the REST boundary, carried in the ?token=
// query parameter because browsers cannot set websocket headers.
type Authenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

// ChannelMembership checks whether a user may join a chat channel's room.
type ChannelMembership interface {
	IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error)
}

type Gateway struct {
	bus      *bus.Bus
	auth     Authenticator
	channels ChannelMembership
	upgrader websocket.Upgrader
}

func NewGateway(b *bus.Bus, auth Authenticator, channels ChannelMembership) *Gateway {
	return &Gateway{
		bus:      b,
		auth:     auth,
		channels: channels,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Notifications joins the caller to their own per-user notification room.
func (g *Gateway) Notifications(c *gin.Context) {
	userID, ok := g.authenticate(c)
	if !ok {
		return
	}
	g.serve(c, bus.NotificationsRoom(userID), false)
}

// Chat joins the caller to a channel room after a membership check. Inbound
// messages are rebroadcast to the room.
func (g *Gateway) Chat(c *gin.Context) {
	userID, ok := g.authenticate(c)
	if !ok {
		return
	}
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel ID"})
		return
	}
	member, err := g.channels.IsMember(c.Request.Context(), channelID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a channel member"})
		return
	}
	g.serve(c, bus.ChatRoom(channelID), true)
}

// TaskComments joins the caller to a task's comment room.
func (g *Gateway) TaskComments(c *gin.Context) {
	if _, ok := g.authenticate(c); !ok {
		return
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return
	}
	g.serve(c, bus.TaskCommentsRoom(taskID), false)
}

// authenticate rejects the attempt before any upgrade or registration happens,
// so a failed handshake leaves no partial state behind.
func (g *Gateway) authenticate(c *gin.Context) (uuid.UUID, bool) {
	userID, err := g.auth.Authenticate(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return uuid.Nil, false
	}
	return userID, true
}

// serve upgrades the connection, subscribes it to the room, and runs the read
// and write pumps until either side closes. The subscription is the
// connection's only room membership; unsubscribing on exit removes every
// trace of the connection from the bus.
func (g *Gateway) serve(c *gin.Context, room string, rebroadcast bool) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	sub := g.bus.Subscribe(room)
	done := make(chan struct{})

	go g.writePump(conn, sub, done)
	g.readPump(conn, room, rebroadcast)

	g.bus.Unsubscribe(sub)
	close(done)
	conn.Close()
}

// writePump drains the subscription into the socket, with a ping keepalive.
// It exits when the subscription channel is closed or a write fails.
func (g *Gateway) writePump(conn *websocket.Conn, sub *bus.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump consumes inbound frames until the peer disconnects. Chat sockets
// rebroadcast well-formed JSON messages to their room; malformed input is
// dropped without a reply.
func (g *Gateway) readPump(conn *websocket.Conn, room string, rebroadcast bool) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !rebroadcast {
			continue
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(data, &payload); err != nil {
			continue
		}
		g.bus.Publish(room, bus.Event{Type: bus.EventChatMessage, Payload: payload})
	}
}
