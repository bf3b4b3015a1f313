package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ssd-technologies/mixfile/internal/transfer"
)

func dialProgress(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.srv)
	t.Cleanup(ts.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws/progress", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

type wsReply struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func TestProgress_CancelTask(t *testing.T) {
	env := setupTestServer(t, "")
	stopped := make(chan struct{})
	task := transfer.NewTask("slow.bin", 10, true, transfer.TaskHooks{})
	task.OnStop(func() { close(stopped) })
	env.srv.tasks.Add(task)

	conn := dialProgress(t, env)
	var first struct {
		Type    string                `json:"type"`
		Payload []transfer.TaskStatus `json:"payload"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read task list: %v", err)
	}
	if first.Type != "tasks" || len(first.Payload) != 1 || first.Payload[0].ID != task.ID {
		t.Fatalf("unexpected greeting %+v", first)
	}

	conn.WriteJSON(map[string]any{"type": "cancel", "payload": map[string]string{"id": task.ID}})
	var resp wsReply
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read cancel reply: %v", err)
	}
	if resp.Type != "canceled" || resp.Payload["id"] != task.ID {
		t.Fatalf("unexpected reply %+v", resp)
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("task was not stopped")
	}

	conn.WriteJSON(map[string]any{"type": "cancel", "payload": map[string]string{"id": "nope"}})
	conn.ReadJSON(&resp)
	if resp.Type != "error" {
		t.Fatalf("cancel of unknown task should fail, got %+v", resp)
	}

	conn.WriteJSON(map[string]any{"type": "bogus"})
	conn.ReadJSON(&resp)
	if resp.Type != "error" {
		t.Fatalf("unknown type should fail, got %+v", resp)
	}
}

func TestProgress_Broadcast(t *testing.T) {
	env := setupTestServer(t, "")
	conn := dialProgress(t, env)

	var greeting wsReply
	conn.ReadJSON(&greeting)

	deadline := time.Now().Add(time.Second)
	for env.srv.hub.clientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	env.uploadTestFile(t, "p.txt", []byte("progress"))

	seen := map[string]bool{}
	for !seen["done"] {
		var msg struct {
			Type    string              `json:"type"`
			Payload transfer.TaskStatus `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read progress: %v (seen %v)", err, seen)
		}
		if msg.Type == "progress" {
			seen[msg.Payload.State] = true
		}
	}
	if !seen["running"] {
		t.Fatal("expected running updates before done")
	}
}
