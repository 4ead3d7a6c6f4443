package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsidianstack/reportvault/server/internal/queue"
	wsHub "github.com/obsidianstack/reportvault/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

// fakeQueue satisfies api.Queue with a mutable status.
type fakeQueue struct {
	mu     sync.Mutex
	status queue.Status
}

func (f *fakeQueue) Dir() string    { return "/q" }
func (f *fakeQueue) Target() string { return "reports" }
func (f *fakeQueue) Running() bool  { return true }
func (f *fakeQueue) Stats() queue.Stats {
	return queue.Stats{}
}

func (f *fakeQueue) Status() (queue.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeQueue) setFiles(n int) {
	f.mu.Lock()
	f.status.FileCount = n
	f.mu.Unlock()
}

func newQueue(files int) *fakeQueue {
	return &fakeQueue{status: queue.Status{QueuePath: "/q", FileCount: files}}
}

// startHub starts a test HTTP server with the hub as its handler and runs
// the hub loop with a cancellable context.
func startHub(t *testing.T, q *fakeQueue) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(q, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// waitCount polls hub.Count until it equals want.
func waitCount(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Count: got %d, want %d", hub.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateStatus(t *testing.T) {
	wsURL, _, _ := startHub(t, newQueue(2))

	m := readMessage(t, dial(t, wsURL))
	if m["event"] != wsHub.EventQueue {
		t.Errorf("event: got %v, want queue", m["event"])
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data: missing or wrong type")
	}
	if data["fileCount"].(float64) != 2 {
		t.Errorf("fileCount: got %v, want 2", data["fileCount"])
	}
	if data["generated_at"] == nil || data["generated_at"] == "" {
		t.Error("generated_at: missing")
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newQueue(0))

	for i := 0; i < 3; i++ {
		readMessage(t, dial(t, wsURL))
	}
	waitCount(t, hub, 3)
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newQueue(0))

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)

	conn.Close()
	waitCount(t, hub, 0)
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	q := newQueue(0)
	wsURL, _, _ := startHub(t, q)

	conn := dial(t, wsURL)
	readMessage(t, conn) // immediate status

	q.setFiles(5)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		data := m["data"].(map[string]interface{})
		if data["fileCount"].(float64) == 5 {
			return
		}
	}
	t.Fatal("no broadcast with fileCount 5")
}

func TestHub_PublishItem(t *testing.T) {
	wsURL, hub, _ := startHub(t, newQueue(0))

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)

	hub.Publish(queue.Result{File: "report_1.json", Collection: "reports", Outcome: queue.Ingested, DocumentID: "report_1"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		if m["event"] != wsHub.EventItem {
			continue // periodic status
		}
		data := m["data"].(map[string]interface{})
		if data["outcome"] != "ingested" || data["document_id"] != "report_1" {
			t.Errorf("item: got %v", data)
		}
		return
	}
	t.Fatal("no item event received")
}

func TestHub_ForwardStopsWhenChannelCloses(t *testing.T) {
	hub := wsHub.New(newQueue(0), testInterval)
	results := make(chan queue.Result, 1)
	results <- queue.Result{File: "a.json", Outcome: queue.Skipped}
	close(results)

	done := make(chan struct{})
	go func() {
		hub.Forward(context.Background(), results)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Forward did not return after channel close")
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newQueue(0))

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)

	cancel()
	waitCount(t, hub, 0)
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newQueue(0), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
