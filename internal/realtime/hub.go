// Package realtime рассылает события журнала изменений websocket-клиентам.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"boards/internal/mutation"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// клиенту писать почти нечего
	maxMessageSize = 4096
)

// Message: то, что уходит в сокет.
type Message struct {
	Type string         `json:"type"`
	Data mutation.Event `json:"data"`
}

// Client: одно websocket-подключение.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	actor string
}

// Hub держит подключения и раздаёт им события из Broadcaster.
type Hub struct {
	events     *mutation.Broadcaster
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *log.Logger
	upgrader   websocket.Upgrader
}

func NewHub(events *mutation.Broadcaster, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		events:     events,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			// авторизации нет, источник не проверяем
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run: главный цикл; завершается с ctx, закрывая все подключения.
func (h *Hub) Run(ctx context.Context) {
	sub := h.events.Subscribe()
	defer h.events.Unsubscribe(sub)
	defer close(h.done)
	defer func() {
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = true
			h.logger.Printf("ws: client connected: %s", c.actor)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Printf("ws: client disconnected: %s", c.actor)
			}
		case ev, ok := <-sub:
			if !ok {
				return
			}
			msg, err := json.Marshal(Message{Type: "mutation", Data: ev})
			if err != nil {
				h.logger.Printf("ws: marshal event: %v", err)
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// буфер клиента полон — считаем его отвалившимся
					h.logger.Printf("ws: send buffer full, dropping client: %s", c.actor)
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// ServeWS апгрейдит запрос и подключает клиента. Hub должен быть запущен (Run).
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, actor string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws: upgrade: %v", err)
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, 64), actor: actor}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump только держит соединение живым: входящие сообщения игнорируются.
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
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Printf("ws: read: %v", err)
			}
			return
		}
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
				// The hub closed the channel
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
		}
	}
}
