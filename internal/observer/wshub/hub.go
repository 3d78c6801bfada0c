// Package wshub broadcasts replicated ledger entries to connected
// operator-dashboard clients over WebSocket. It implements
// coresync.Observer, so a Hub can be registered directly on a Job
// alongside the logging and counting observers.
package wshub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/catalogsync/replicator/internal/logging"
	"github.com/catalogsync/replicator/internal/models"
	coresync "github.com/catalogsync/replicator/internal/sync"
)

var _ coresync.Observer = (*Hub)(nil)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return r.Host == "localhost" || r.Host == "localhost:8090"
	},
}

// EventReplicationItem is the single event type a Hub broadcasts: one
// saved ReplicationItem per ledger write.
const EventReplicationItem = "replication.item"

// Envelope wraps every message a Hub sends to clients.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// client is one connected WebSocket subscriber.
type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	mu      sync.Mutex
	filters map[string]bool // empty means "all filters"
}

// subscribed reports whether c should receive a message for filterID:
// true if c has no subscriptions (the default, meaning "all filters")
// or if filterID is explicitly in c's subscription set.
func (c *client) subscribed(filterID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.filters) == 0 {
		return true
	}
	return c.filters[filterID]
}

func (c *client) subscribe(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.filters[id] = true
	}
}

func (c *client) unsubscribe(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.filters, id)
	}
}

// outgoing pairs a marshaled envelope with the filter id it was
// produced from, so the broadcast loop can route it only to
// subscribed clients.
type outgoing struct {
	filterID string
	data     []byte
}

// Hub maintains active client connections and fans out every saved
// ReplicationItem it is given via Observe.
type Hub struct {
	clients    map[string]*client
	broadcast  chan outgoing
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
}

// NewHub creates a Hub and starts its broadcast loop.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[string]*client),
		broadcast:  make(chan outgoing, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			logging.Debug("wshub client connected", map[string]interface{}{"client_id": c.id})

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
			logging.Debug("wshub client disconnected", map[string]interface{}{"client_id": c.id})

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				if !c.subscribed(message.filterID) {
					continue
				}
				select {
				case c.send <- message.data:
				default:
					close(c.send)
					delete(h.clients, c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Observe implements coresync.Observer: every saved ReplicationItem is
// marshaled and pushed to every connected client whose subscription
// set is empty or includes the item's filter.
func (h *Hub) Observe(item models.ReplicationItem) {
	envelope := Envelope{
		Type:      EventReplicationItem,
		Data:      item,
		Timestamp: time.Now().Unix(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("wshub failed to marshal replication item", err, nil)
		return
	}

	h.broadcast <- outgoing{filterID: item.FilterID, data: data}
}

// HandleWebSocket upgrades r into a WebSocket connection registered
// with h.
func (h *Hub) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error("wshub failed to upgrade connection", err, nil)
			return
		}

		c := &client{
			id:      time.Now().Format("20060102150405.000") + "-" + r.RemoteAddr,
			conn:    conn,
			send:    make(chan []byte, 256),
			hub:     h,
			filters: make(map[string]bool),
		}

		h.register <- c

		go c.writePump()
		go c.readPump()
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		action, _ := msg["action"].(string)
		switch action {
		case "subscribe":
			if ids, ok := msg["filterIds"].([]interface{}); ok {
				c.subscribe(filterIDStrings(ids))
			}
		case "unsubscribe":
			if ids, ok := msg["filterIds"].([]interface{}); ok {
				c.unsubscribe(filterIDStrings(ids))
			}
		}
	}
}

// filterIDStrings extracts the string elements of a decoded JSON array,
// ignoring anything that isn't a string.
func filterIDStrings(ids []interface{}) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if s, ok := id.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
