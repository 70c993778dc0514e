package websocket

import (
	"encoding/json/v2"
	"sync"

	"github.com/google/uuid"
)

// registration carries a client and its freshly assigned ID through the
// register channel, since the ID must exist before the event loop commits
// the client to the clients/byID maps.
type registration struct {
	conn *Conn
	id   uuid.UUID
}

// unicastRequest asks the event loop to deliver a message to one client
// by ID, reporting the outcome back on result.
type unicastRequest struct {
	id          uuid.UUID
	messageType MessageType
	data        []byte
	result      chan error
}

// Hub manages multiple WebSocket connections for broadcasting.
//
// Hub provides a central point for managing WebSocket clients and
// broadcasting messages to all connected clients simultaneously.
//
// Thread-safe operations allow concurrent client registration,
// unregistration, and broadcasting from multiple goroutines.
//
// Example Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Close()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//	    conn, _ := websocket.Upgrade(w, r, nil)
//	    hub.Register(conn)
//
//	    go func() {
//	        defer hub.Unregister(conn)
//	        for {
//	            _, data, err := conn.Read()
//	            if err != nil {
//	                break
//	            }
//	            hub.Broadcast(data)
//	        }
//	    }()
//	})
type Hub struct {
	// Client management
	clients map[*Conn]uuid.UUID // Registered clients -> assigned ID
	byID    map[uuid.UUID]*Conn // Assigned ID -> client, for Lookup/SendTo

	// Channels for event loop
	register   chan registration   // Register new client
	unregister chan *Conn          // Unregister client
	broadcast  chan []byte         // Broadcast message to all
	unicast    chan unicastRequest // Send message to one client by ID

	// Lifecycle management
	done   chan struct{}  // Shutdown signal
	closed bool           // Track if hub is closed
	wg     sync.WaitGroup // Wait for goroutines

	// Thread-safety for clients map and closed flag
	mu sync.RWMutex
}

// NewHub creates a new WebSocket Hub.
//
// The Hub must be started by calling Run() in a goroutine:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Close()
//
// Returns a ready-to-use Hub with initialized channels.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Conn]uuid.UUID),
		byID:       make(map[uuid.UUID]*Conn),
		register:   make(chan registration),
		unregister: make(chan *Conn),
		broadcast:  make(chan []byte, 256), // Buffered for performance
		unicast:    make(chan unicastRequest),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's event loop.
//
// This method blocks and should be called in a goroutine:
//
//	go hub.Run()
//
// The event loop handles:
//   - Client registration/unregistration
//   - Message broadcasting to all clients
//   - Graceful shutdown
//
// Run exits when Close() is called.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	for {
		select {
		case reg := <-h.register:
			// Register new client
			h.mu.Lock()
			h.clients[reg.conn] = reg.id
			h.byID[reg.id] = reg.conn
			h.mu.Unlock()

		case client := <-h.unregister:
			// Unregister client
			h.mu.Lock()
			if id, ok := h.clients[client]; ok {
				delete(h.clients, client)
				delete(h.byID, id)
				_ = client.Close() // Close connection
			}
			h.mu.Unlock()

		case req := <-h.unicast:
			// Deliver to one client by ID
			h.mu.RLock()
			target, ok := h.byID[req.id]
			h.mu.RUnlock()
			if !ok {
				req.result <- ErrClientNotFound
				continue
			}
			req.result <- target.Write(req.messageType, req.data)

		case message := <-h.broadcast:
			// Broadcast to all clients
			h.mu.RLock()
			for client := range h.clients {
				// Send in goroutine to avoid blocking on slow clients
				go func(c *Conn, msg []byte) {
					if err := c.Write(BinaryMessage, msg); err != nil {
						// Auto-unregister on write failure
						h.Unregister(c)
					}
				}(client, message)
			}
			h.mu.RUnlock()

		case <-h.done:
			// Shutdown
			return
		}
	}
}

// Register adds a client to the Hub.
//
// The client will receive all messages sent via Broadcast().
//
// Typically called after successful WebSocket upgrade:
//
//	conn, _ := websocket.Upgrade(w, r, nil)
//	hub.Register(conn)
//
// Thread-safe: can be called from multiple goroutines.
//
// Returns the UUID assigned to this client, usable with Lookup/SendTo.
// Returns uuid.Nil if the Hub is already closed.
func (h *Hub) Register(client *Conn) uuid.UUID {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return uuid.Nil
	}
	h.mu.RUnlock()

	id := uuid.New()
	h.register <- registration{conn: client, id: id}
	return id
}

// Unregister removes a client from the Hub.
//
// The client's connection will be closed.
//
// Typically called in a defer after client registration:
//
//	defer hub.Unregister(conn)
//
// Thread-safe: can be called from multiple goroutines.
// Safe to call multiple times for the same client (no-op after first call).
func (h *Hub) Unregister(client *Conn) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.unregister <- client
}

// Broadcast sends a message to all connected clients as a binary message.
//
// The message is queued for delivery. Actual delivery happens
// asynchronously in the event loop.
//
// If a client write fails, that client is automatically unregistered.
//
// Example:
//
//	hub.Broadcast([]byte("Hello, everyone!"))
//
// Thread-safe: can be called from multiple goroutines.
// Queues the message on a channel buffered for 256 messages and returns;
// blocks while that buffer is full.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.broadcast <- message
}

// BroadcastText sends text to all connected clients.
//
// Convenience wrapper around Broadcast(): the bytes of text go out as a
// binary message, not as a text-opcode frame.
//
// Example:
//
//	hub.BroadcastText("Server notification")
//
// Thread-safe: can be called from multiple goroutines.
func (h *Hub) BroadcastText(text string) {
	h.Broadcast([]byte(text))
}

// BroadcastJSON sends a JSON message to all connected clients.
//
// Marshals the value to JSON and passes the bytes to Broadcast, so they
// go out as a binary message.
//
// Example:
//
//	type Message struct {
//	    Type string `json:"type"`
//	    Text string `json:"text"`
//	}
//	hub.BroadcastJSON(Message{Type: "notification", Text: "Hello"})
//
// Returns error if JSON marshaling fails.
// Thread-safe: can be called from multiple goroutines.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of currently connected clients.
//
// Thread-safe: can be called from multiple goroutines.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the UUIDs of all currently registered clients.
//
// Thread-safe: can be called from multiple goroutines.
func (h *Hub) ClientIDs() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(h.byID))
	for id := range h.byID {
		ids = append(ids, id)
	}
	return ids
}

// Lookup returns the client registered under id, if any.
//
// Thread-safe: can be called from multiple goroutines.
func (h *Hub) Lookup(id uuid.UUID) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.byID[id]
	return conn, ok
}

// SendTo writes a message to a single client identified by its UUID,
// unlike Broadcast which fans out to every registered client.
//
// Returns ErrClientNotFound if id is not currently registered, ErrClosed
// if the Hub is closed, or any error from the underlying Conn.Write.
//
// Thread-safe: can be called from multiple goroutines. Blocks until the
// event loop has attempted delivery (unlike Broadcast, which is
// fire-and-forget).
func (h *Hub) SendTo(id uuid.UUID, messageType MessageType, data []byte) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrClosed
	}
	h.mu.RUnlock()

	result := make(chan error, 1)
	h.unicast <- unicastRequest{id: id, messageType: messageType, data: data, result: result}
	return <-result
}

// Close stops the Hub and disconnects all clients.
//
// Performs graceful shutdown:
//  1. Sets closed flag to prevent new operations
//  2. Stops the event loop
//  3. Waits for Run() to exit
//  4. Closes all client connections
//  5. Closes all channels
//
// Safe to call multiple times (no-op after first call).
//
// Example:
//
//	defer hub.Close()
func (h *Hub) Close() error {
	// Set closed flag first (prevents new Register/Unregister/Broadcast)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	// Signal shutdown to event loop
	close(h.done)

	// Wait for event loop to exit
	h.wg.Wait()

	// Close all client connections
	h.mu.Lock()
	for client := range h.clients {
		_ = client.Close()
	}
	h.clients = make(map[*Conn]uuid.UUID) // Clear maps
	h.byID = make(map[uuid.UUID]*Conn)
	h.mu.Unlock()

	// Close channels (safe now that event loop exited and no new sends)
	close(h.register)
	close(h.unregister)
	close(h.broadcast)
	close(h.unicast)

	return nil
}
