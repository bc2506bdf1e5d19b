package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"arcade-wager-backend/internal/models"
	"arcade-wager-backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var messageTypes = map[services.EventKind]string{
	services.KindActiveBetsLoaded: "ACTIVE_BETS_LOADED",
	services.KindUserBetsLoaded:   "USER_BETS_LOADED",
	services.KindBetCreated:       "BET_CREATED",
	services.KindBetAccepted:      "BET_ACCEPTED",
	services.KindBetCompleted:     "BET_COMPLETED",
	services.KindBetCancelled:     "BET_CANCELLED",
	services.KindBoostActivated:   "BOOST_ACTIVATED",
}

type WebSocketHandler struct {
	sync *services.Synchronizer
	hub  *WebSocketHub
	log  slog.Logger
}

type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	direct     chan directMessage
	count      chan chan int
	done       chan struct{}
	log        slog.Logger
}

type Client struct {
	SessionID string
	Conn      *websocket.Conn
	send      chan *Message
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type directMessage struct {
	client *Client
	msg    *Message
}

func NewWebSocketHandler(sync *services.Synchronizer, log slog.Logger) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		direct:     make(chan directMessage, 100),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		log:        log,
	}

	return &WebSocketHandler{
		sync: sync,
		hub:  hub,
		log:  log,
	}
}

// Run drives the hub until ctx is done, then disconnects every client.
func (h *WebSocketHandler) Run(ctx context.Context) error {
	h.hub.run(ctx)
	return nil
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("ws: failed to upgrade: %v", err)
		return
	}

	client := &Client{
		SessionID: c.GetString("session_id"),
		Conn:      conn,
		send:      make(chan *Message, clientSendSize),
	}

	if !h.hub.add(client) {
		conn.Close()
		return
	}
	defer h.hub.remove(client)

	go client.writePump()

	h.hub.sendTo(client, snapshotMessage(h.sync.ActiveBets()))

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warnf("ws: session %s: %v", client.SessionID, err)
			}
			return
		}

		h.handleMessage(c.Request.Context(), client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.hub.sendTo(client, &Message{
			Type: "PONG",
			Data: gin.H{"timestamp": time.Now().Unix()},
		})
	case "GET_BALANCE":
		h.sendBalance(ctx, client)
	case "GET_MY_BETS":
		h.hub.sendTo(client, &Message{
			Type: messageTypes[services.KindUserBetsLoaded],
			Data: gin.H{"bets": h.sync.UserBets()},
		})
	}
}

func (h *WebSocketHandler) sendBalance(ctx context.Context, client *Client) {
	balance, err := h.sync.Balance(ctx)
	if err != nil {
		h.hub.sendTo(client, &Message{Type: "ERROR", Data: gin.H{"error": err.Error()}})
		return
	}
	h.hub.sendTo(client, &Message{Type: "BALANCE_UPDATE", Data: balance})
}

// BroadcastBetEvent queues ev for every client. It never blocks the
// publisher; when the queue is full the event is dropped.
func (h *WebSocketHandler) BroadcastBetEvent(ev services.Event) {
	msg := &Message{Type: messageTypes[ev.Kind()], Data: ev}

	select {
	case h.hub.broadcast <- msg:
	default:
		h.log.Warnf("ws: broadcast queue full, dropping %s", ev.Kind())
	}
}

func (h *WebSocketHandler) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.hub.count <- reply:
	case <-h.hub.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-h.hub.done:
		return 0
	}
}

func (hub *WebSocketHub) run(ctx context.Context) {
	defer func() {
		for client := range hub.clients {
			delete(hub.clients, client)
			close(client.send)
		}
		close(hub.done)
	}()

	for {
		select {
		case client := <-hub.register:
			hub.clients[client] = true
			hub.log.Debugf("ws: client registered: %s", client.SessionID)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				close(client.send)
				hub.log.Debugf("ws: client unregistered: %s", client.SessionID)
			}

		case reply := <-hub.count:
			reply <- len(hub.clients)

		case dm := <-hub.direct:
			if hub.clients[dm.client] {
				hub.deliver(dm.client, dm.msg)
			}

		case message := <-hub.broadcast:
			for client := range hub.clients {
				hub.deliver(client, message)
			}

		case <-ctx.Done():
			return
		}
	}
}

// deliver drops clients whose send buffer is full.
func (hub *WebSocketHub) deliver(client *Client, msg *Message) {
	select {
	case client.send <- msg:
	default:
		delete(hub.clients, client)
		close(client.send)
		hub.log.Warnf("ws: client %s too slow, disconnected", client.SessionID)
	}
}

func (hub *WebSocketHub) add(client *Client) bool {
	select {
	case hub.register <- client:
		return true
	case <-hub.done:
		return false
	}
}

func (hub *WebSocketHub) remove(client *Client) {
	select {
	case hub.unregister <- client:
	case <-hub.done:
	}
}

func (hub *WebSocketHub) sendTo(client *Client, msg *Message) {
	select {
	case hub.direct <- directMessage{client: client, msg: msg}:
	case <-hub.done:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// snapshotMessage is the first message a client receives.
func snapshotMessage(bets []*models.Bet) *Message {
	return &Message{
		Type: messageTypes[services.KindActiveBetsLoaded],
		Data: gin.H{"bets": bets},
	}
}
