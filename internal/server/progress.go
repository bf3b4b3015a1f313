package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ssd-technologies/mixfile/internal/transfer"
)

// wsMessage is the JSON message format for WebSocket communication.
type wsMessage struct {
	Type    string          `json:"type"` // "list", "cancel"
	Payload json.RawMessage `json:"payload"`
}

// wsResponse is a JSON message sent back to the client.
type wsResponse struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type cancelPayload struct {
	ID string `json:"id"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// progressHub fans task updates out to every connected websocket and takes
// cancel requests from them.
type progressHub struct {
	tasks   *transfer.Tasks
	limiter *rateLimiter

	mu      sync.Mutex
	clients map[chan wsResponse]struct{}
}

func newProgressHub(tasks *transfer.Tasks, limiter *rateLimiter) *progressHub {
	return &progressHub{
		tasks:   tasks,
		limiter: limiter,
		clients: make(map[chan wsResponse]struct{}),
	}
}

// broadcast sends t's status to every client. Slow clients miss updates
// rather than stall the upload.
func (h *progressHub) broadcast(t *transfer.Task) {
	msg := wsResponse{Type: "progress", Payload: t.Status()}
	h.mu.Lock()
	defer h.mu.Unlock()
	for send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
}

func (h *progressHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handle upgrades the connection and processes client messages.
func (h *progressHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[progress] websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan wsResponse, 64)
	h.mu.Lock()
	h.clients[send] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("[progress] websocket write error: %v", err)
				conn.Close()
				return
			}
		}
	}()
	defer func() {
		h.mu.Lock()
		delete(h.clients, send)
		close(send)
		h.mu.Unlock()
		<-done
	}()

	// answers block until queued so they are never dropped
	reply := func(msg wsResponse) {
		select {
		case send <- msg:
		case <-done:
		}
	}

	reply(wsResponse{Type: "tasks", Payload: h.tasks.List()})
	ip := getIP(r)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[progress] websocket read error: %v", err)
			}
			return
		}

		if !h.limiter.allow(ip) {
			reply(errorResponse("rate limit exceeded"))
			continue
		}

		switch msg.Type {
		case "list":
			reply(wsResponse{Type: "tasks", Payload: h.tasks.List()})

		case "cancel":
			var payload cancelPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.ID == "" {
				reply(errorResponse("invalid cancel payload"))
				continue
			}
			if !h.tasks.Cancel(payload.ID) {
				reply(errorResponse("task not found: "+payload.ID))
				continue
			}
			reply(wsResponse{Type: "canceled", Payload: map[string]string{"id": payload.ID}})

		default:
			reply(errorResponse("unknown message type: "+msg.Type))
		}
	}
}

func errorResponse(message string) wsResponse {
	return wsResponse{Type: "error", Payload: map[string]string{"error": message}}
}
