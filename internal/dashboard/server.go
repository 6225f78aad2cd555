// Package dashboard provides a read-only live view of the task list.
//
// The server broadcasts task list changes and sync events to connected
// WebSocket clients. It subscribes to the signal journal, so any surface
// that saves tasks lights up every open dashboard.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/tasklyapp/taskly/internal/cache"
	"github.com/tasklyapp/taskly/internal/signal"
	"github.com/tasklyapp/taskly/internal/task"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeTaskList carries the full task list for today
	MessageTypeTaskList MessageType = "task_list"

	// MessageTypeSyncEvent indicates a sync-related signal was observed
	MessageTypeSyncEvent MessageType = "sync_event"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// TaskListData contains the current day's tasks
type TaskListData struct {
	Day     string      `json:"day"`
	Tasks   []task.Task `json:"tasks"`
	Pending int         `json:"pending"`
}

// SyncEventData describes the signal that triggered a broadcast
type SyncEventData struct {
	Kind signal.Kind `json:"kind"`
}

// Server manages WebSocket connections and broadcasts task updates
type Server struct {
	addr  string
	cache *cache.Cache
	bus   *signal.Bus

	listener net.Listener
	server   *http.Server

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Addr to listen on (default: localhost:8571)
	Addr string

	// Logger for server activity (default: log.Default())
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:   "localhost:8571",
		Logger: log.Default(),
	}
}

// NewServer creates a dashboard server over the given cache. The bus is
// optional; without it the dashboard only serves snapshot requests.
func NewServer(c *cache.Cache, bus *signal.Bus, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      config.Addr,
		cache:     c,
		bus:       bus,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	if s.bus != nil {
		events, err := s.bus.Subscribe(s.ctx)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to subscribe to signals: %w", err)
		}
		s.wg.Add(1)
		go s.watchSignals(events)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Dashboard stopped")
	return nil
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// BroadcastTaskList broadcasts the current state of today's partition.
func (s *Server) BroadcastTaskList(ctx context.Context) error {
	day := task.Today()
	tasks, err := s.cache.Day(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to read tasks: %w", err)
	}

	data, err := json.Marshal(TaskListData{
		Day:     day,
		Tasks:   tasks,
		Pending: task.Pending(tasks),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal task list: %w", err)
	}

	s.Broadcast(Message{Type: MessageTypeTaskList, Data: data})
	return nil
}

// watchSignals turns journal events into dashboard broadcasts.
func (s *Server) watchSignals(events <-chan signal.Event) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			data, _ := json.Marshal(SyncEventData{Kind: ev.Kind})
			s.Broadcast(Message{Type: MessageTypeSyncEvent, Data: data})

			if err := s.BroadcastTaskList(s.ctx); err != nil {
				s.logger.Printf("Failed to broadcast task list: %v", err)
			}
		}
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send outside the read lock to avoid blocking broadcasts.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// New clients get the current list immediately.
	if err := s.BroadcastTaskList(r.Context()); err != nil {
		s.logger.Printf("Failed to send initial task list: %v", err)
	}

	go s.readLoop(conn)
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Clients are read-only; inbound messages are ignored.
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleTasks returns today's tasks as JSON
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		day = task.Today()
	}
	if _, err := task.ParseDay(day); err != nil {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}

	tasks, err := s.cache.Day(r.Context(), day)
	if err != nil {
		http.Error(w, "failed to read tasks", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(TaskListData{
		Day:     day,
		Tasks:   tasks,
		Pending: task.Pending(tasks),
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Taskly Dashboard</title>
</head>
<body>
    <h1>Taskly Dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Today's tasks: <a href="/tasks">/tasks</a></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
