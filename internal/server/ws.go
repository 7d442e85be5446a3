package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/config"
	"github.com/magefree/deckledger/internal/game"
	"github.com/magefree/deckledger/internal/game/tokens"
)

// ErrHubClosed is returned by Hub.Submit once the hub has stopped.
var ErrHubClosed = errors.New("websocket hub closed")

// Message types.
const (
	TypeSubmit     = "submit"
	TypeQuery      = "query"
	TypeState      = "state"
	TypeSubscribe  = "subscribe"
	TypeResult     = "result"
	TypeEntries    = "entries"
	TypeSubscribed = "subscribed"
	TypeError      = "error"
)

// Request is a client message. Action is an externally tagged payload,
// the same form the log persists.
type Request struct {
	ID        string           `json:"id,omitempty"`
	Type      string           `json:"type"`
	Action    json.RawMessage  `json:"action,omitempty"`
	Actor     string           `json:"actor,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
	Version   uint32           `json:"version,omitempty"`
	Filter    actionlog.Filter `json:"filter,omitempty"`
}

// Response is a server message. Live tail entries arrive with type
// "entries" and no id.
type Response struct {
	ID       string            `json:"id,omitempty"`
	Type     string            `json:"type"`
	Entry    *actionlog.Entry  `json:"entry,omitempty"`
	Entries  []actionlog.Entry `json:"entries,omitempty"`
	Seed     uint64            `json:"seed,omitempty"`
	Phase    string            `json:"phase,omitempty"`
	Balances []tokens.Amount   `json:"balances,omitempty"`
	Checksum string            `json:"checksum,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Client is one websocket connection.
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	subscribed atomic.Bool
}

// Hub fans appended log entries out to subscribed clients. It implements
// actionlog.Sink so it can sit next to the persistence worker.
type Hub struct {
	logger     *zap.Logger
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a hub. Run must be started before entries are submitted.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("websocket client registered", zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("websocket client unregistered", zap.Int("clients", len(h.clients)))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.subscribed.Load() {
					continue
				}
				select {
				case client.send <- message:
				default:
					// slow subscriber
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropping slow websocket subscriber")
				}
			}
		}
	}
}

// Submit queues entries for every subscribed client.
func (h *Hub) Submit(entries []actionlog.Entry) error {
	msg, err := json.Marshal(Response{Type: TypeEntries, Entries: entries})
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// WebSocketServer binds game operations and log queries to websocket
// messages.
type WebSocketServer struct {
	cfg      config.WebSocketConfig
	game     *game.Game
	hub      *Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	http *http.Server
}

// NewWebSocketServer creates the server. The hub should already be
// running.
func NewWebSocketServer(cfg config.WebSocketConfig, g *game.Game, hub *Hub, logger *zap.Logger) *WebSocketServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketServer{
		cfg:    cfg,
		game:   g,
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler serves the websocket endpoint at /ws.
func (s *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// ListenAndServe blocks until Shutdown is called.
func (s *WebSocketServer) ListenAndServe() error {
	s.mu.Lock()
	s.http = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	s.logger.Info("starting websocket server", zap.String("address", s.cfg.Address))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections. Open websockets are closed when
// the hub stops.
func (s *WebSocketServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *WebSocketServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}
	if !s.hub.join(client) {
		conn.Close()
		return
	}

	go s.writePump(client)
	go s.readPump(client)
}

func (s *WebSocketServer) readPump(c *Client) {
	defer func() {
		s.hub.leave(c)
		c.conn.Close()
	}()

	if s.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(s.cfg.MaxMessageSize)
	}
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(message, &req); err != nil {
			resp = Response{Type: TypeError, Error: "malformed request: " + err.Error()}
		} else {
			resp = s.handle(c, req)
		}

		out, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error("failed to encode websocket response", zap.Error(err))
			continue
		}
		// the hub closes send on shutdown or when the client is dropped
		if !s.deliver(c, out) {
			return
		}
	}
}

func (s *WebSocketServer) deliver(c *Client, msg []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	c.send <- msg
	return true
}

func (s *WebSocketServer) writePump(c *Client) {
	defer c.conn.Close()

	for message := range c.send {
		if s.cfg.WriteTimeout > 0 {
			c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *WebSocketServer) handle(c *Client, req Request) Response {
	fail := func(err error) Response {
		return Response{ID: req.ID, Type: TypeError, Error: err.Error()}
	}

	switch req.Type {
	case TypeSubmit:
		payload, err := actionlog.UnmarshalPayload(req.Action)
		if err != nil {
			return fail(err)
		}
		requestID := req.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}
		entry, err := s.game.Submit(payload,
			actionlog.WithActor(req.Actor),
			actionlog.WithRequestID(requestID),
			actionlog.WithVersion(req.Version),
		)
		if err != nil {
			s.logger.Info("websocket action rejected",
				zap.String("request_id", requestID),
				zap.String("action_type", payload.Variant()),
				zap.Error(err),
			)
			return fail(err)
		}
		return Response{ID: req.ID, Type: TypeResult, Entry: &entry}

	case TypeQuery:
		return Response{ID: req.ID, Type: TypeEntries, Entries: s.game.Log().Query(req.Filter)}

	case TypeState:
		checksum, err := s.game.Checksum()
		if err != nil {
			return fail(err)
		}
		return Response{
			ID:       req.ID,
			Type:     TypeState,
			Seed:     s.game.Seed(),
			Phase:    s.game.Phase().String(),
			Balances: s.game.Balances(),
			Checksum: checksum,
		}

	case TypeSubscribe:
		c.subscribed.Store(true)
		return Response{ID: req.ID, Type: TypeSubscribed}

	default:
		return fail(fmt.Errorf("unknown request type %q", req.Type))
	}
}
