// Package realtime pushes notification frames to connected websocket clients.
// Every user has a room; with Redis configured, frames are fanned out across
// API instances over pub/sub so a client connected anywhere receives them.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/gov-appointments/internal/observability"
)

const (
	channelPrefix = "realtime:user:"
	sendBuffer    = 16
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
)

// Frame is the envelope written to clients.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type envelope struct {
	UserID uuid.UUID `json:"user_id"`
	Frame  Frame     `json:"frame"`
}

type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

type Hub struct {
	rdb      *redis.Client
	logger   *observability.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*client]struct{}
}

// NewHub creates a hub. rdb may be nil, in which case frames only reach
// clients connected to this instance.
func NewHub(rdb *redis.Client, logger *observability.Logger) *Hub {
	return &Hub{
		rdb:    rdb,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		rooms: make(map[uuid.UUID]map[*client]struct{}),
	}
}

// Publish sends event to every connection in the user's room.
func (h *Hub) Publish(ctx context.Context, userID uuid.UUID, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", event, err)
	}
	frame := Frame{Event: event, Data: raw}

	if h.rdb == nil {
		h.deliver(userID, frame)
		return nil
	}

	payload, err := json.Marshal(envelope{UserID: userID, Frame: frame})
	if err != nil {
		return err
	}
	if err := h.rdb.Publish(ctx, channelPrefix+userID.String(), payload).Err(); err != nil {
		return fmt.Errorf("publish %s frame: %w", event, err)
	}
	return nil
}

// Run relays frames published by any instance to local clients. It blocks
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}

	sub := h.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe realtime channel: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("realtime subscription closed")
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("dropping malformed realtime frame", "channel", msg.Channel, "error", err)
				continue
			}
			if id := strings.TrimPrefix(msg.Channel, channelPrefix); id != env.UserID.String() {
				h.logger.Warn("realtime frame user mismatch", "channel", msg.Channel)
				continue
			}
			h.deliver(env.UserID, env.Frame)
		}
	}
}

// deliver queues the frame on each local connection in the room and returns
// how many accepted it. Slow clients are skipped.
func (h *Hub) deliver(userID uuid.UUID, frame Frame) int {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("marshal realtime frame", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[userID] {
		select {
		case c.send <- payload:
			delivered++
		default:
			h.logger.Warn("realtime client buffer full, frame dropped", "user_id", userID)
		}
	}
	return delivered
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.userID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.userID] = room
	}
	room[c] = struct{}{}
	observability.RealtimeConnections.Inc()
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[c.userID]
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.userID)
	}
	close(c.send)
	observability.RealtimeConnections.Dec()
}

// Connections reports how many local connections are in the user's room.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Serve upgrades the request and joins the connection to the user's room.
// It returns once the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.join(c)
	h.logger.Debug("realtime client connected", "user_id", userID)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// readPump discards client messages and watches for disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.leave(c)
		c.conn.Close()
		h.logger.Debug("realtime client disconnected", "user_id", c.userID)
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
