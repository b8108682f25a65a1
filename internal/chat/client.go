package chat

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/umar/agency-chat/internal/auth"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	Identity auth.Identity
	send     chan []byte
	limiter  *rate.Limiter
}

func ServeWS(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateToken(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}

		client := &Client{
			hub:      hub,
			conn:     conn,
			Identity: claims.Identity(),
			send:     make(chan []byte, 256),
			limiter:  rate.NewLimiter(hub.sendRate, hub.sendBurst),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}
		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws read error", "error", err, "session", c.Identity.Key())
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			sendError(c, "malformed frame", CodeInvalidPayload)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.hub.refreshPresence(c.Identity.Key())
		}
	}
}

func (c *Client) handleMessage(msg WSMessage) {
	switch msg.Type {
	case TypeMessageSend:
		var payload SendMessagePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			sendError(c, "invalid message.send payload", CodeInvalidPayload)
			return
		}
		HandleSendMessage(c, payload)
	case TypeBookingSend:
		var payload SendBookingPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			sendError(c, "invalid booking.send payload", CodeInvalidPayload)
			return
		}
		HandleSendBooking(c, payload)
	case TypeChatRead:
		var payload ChatPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			sendError(c, "invalid chat.read payload", CodeInvalidPayload)
			return
		}
		HandleChatRead(c, payload)
	case TypeChatReadAll:
		HandleChatReadAll(c)
	case TypeTypingStart:
		var payload ChatPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		HandleTyping(c, payload, true)
	case TypeTypingStop:
		var payload ChatPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		HandleTyping(c, payload, false)
	case TypePing:
		data, _ := NewWSMessage(TypePong, nil)
		c.enqueue(data)
	default:
		sendError(c, "unknown frame type "+msg.Type, CodeInvalidPayload)
	}
}

// enqueue queues a frame for this connection only while the hub still holds
// it; the hub closes send under the same lock when it drops a client.
func (c *Client) enqueue(data []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.hub.clients[c.Identity.Key()] != c {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
