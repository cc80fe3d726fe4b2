package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"guestbook/internal/middleware"
	"guestbook/internal/models"
)

// live feed event types
const (
	EventInit           = "init"
	EventError          = "error"
	EventPostCreated    = "post_created"
	EventPostUpdated    = "post_updated"
	EventPostDeleted    = "post_deleted"
	EventLikeToggled    = "like_toggled"
	EventCommentCreated = "comment_created"
	EventCommentUpdated = "comment_updated"
	EventCommentDeleted = "comment_deleted"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 25 * time.Second
	pongWait   = 90 * time.Second
)

// Event is one message of the live feed websocket contract
type Event struct {
	Type         string          `json:"type"`
	Post         *models.Post    `json:"post,omitempty"`
	Comment      *models.Comment `json:"comment,omitempty"`
	PostID       int             `json:"post_id,omitempty"`
	CommentID    int             `json:"comment_id,omitempty"`
	CurrentLikes *int            `json:"current_likes,omitempty"`
	UserID       int             `json:"user_id,omitempty"`
	Clients      int             `json:"clients,omitempty"`
	Message      string          `json:"message,omitempty"`
}

func postEvent(typ string, p *models.Post) Event {
	return Event{Type: typ, Post: p, PostID: p.ID}
}

func commentEvent(typ string, c *models.Comment) Event {
	return Event{Type: typ, Comment: c, CommentID: c.ID, PostID: c.PostID}
}

func likeEvent(postID, count int) Event {
	return Event{Type: EventLikeToggled, PostID: postID, CurrentLikes: &count}
}

// Client is one websocket connection; userID is 0 for anonymous viewers
type Client struct {
	userID int
	conn   *websocket.Conn
	send   chan Event
	done   chan struct{}
}

// Hub fans live feed events out to every connected client
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	broadcast chan Event
	onChange  func(clients int)
}

// NewHub creates a hub. onChange, if set, is called with the client count
// whenever a client connects or leaves.
func NewHub(onChange func(clients int)) *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan Event, 64),
		onChange:  onChange,
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.onChange != nil {
		h.onChange(n)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if h.onChange != nil {
		h.onChange(n)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event without blocking; it is dropped when the queue is full
func (h *Hub) Broadcast(e Event) {
	select {
	case h.broadcast <- e:
	default:
	}
}

// Run dispatches queued events until ctx is done, then closes every connection
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.RLock()
			for c := range h.clients {
				c.conn.Close()
			}
			h.mu.RUnlock()
			return
		case e := <-h.broadcast:
			// snapshot under read lock, send without holding it
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				select {
				case c.send <- e:
				default:
					// slow client, drop
				}
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeHTTP upgrades GET /ws. The feed is public; the user, when known, is
// taken from the context set by the session middleware.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{conn: conn, send: make(chan Event, 16), done: make(chan struct{})}
	if u := middleware.UserFromContext(r.Context()); u != nil {
		client.userID = u.ID
	}
	h.addClient(client)
	logger.Info().Int("user_id", client.userID).Msg("WebSocket client connected")

	// the writer loop is not running yet so this write is not concurrent
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Event{Type: EventInit, UserID: client.userID, Clients: h.ClientCount()}); err != nil {
		h.removeClient(client)
		conn.Close()
		return
	}

	go h.writerLoop(client)
	h.readerLoop(client, logger)
}

func (h *Hub) writerLoop(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case e := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(e); err != nil {
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

// readerLoop keeps the connection alive; the feed is server-to-client only
func (h *Hub) readerLoop(c *Client, logger *zerolog.Logger) {
	defer func() {
		h.removeClient(c)
		close(c.done)
		logger.Info().Int("user_id", c.userID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		select {
		case c.send <- Event{Type: EventError, Message: "The live feed is read-only"}:
		default:
		}
	}
}
