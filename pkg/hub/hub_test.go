package hub

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/triple4t/ai-interview/pkg/protocol"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startMonitorServer(t *testing.T, h *Hub) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/monitor", h.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return "ws://" + ln.Addr().String() + "/ws/monitor"
}

func TestNew(t *testing.T) {
	h := New("monitor")
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", h.ClientCount())
	}
	if h.IsRunning() {
		t.Error("hub should not be running before Run")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := New("monitor")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	waitFor(t, h.IsRunning)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if h.IsRunning() {
		t.Error("IsRunning true after Run returned")
	}
}

func TestBroadcast_EmptyHub(t *testing.T) {
	h := New("monitor")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	if err := h.Publish("s1", map[string]int{"face_count": 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestBroadcast_QueueFullDrops(t *testing.T) {
	h := New("monitor")
	for i := 0; i < cap(h.broadcast)+5; i++ {
		h.Broadcast(Message{SessionID: "s1", Data: []byte("{}")})
	}
	if h.Dropped() != 5 {
		t.Errorf("Dropped = %d, want 5", h.Dropped())
	}
}

func TestPublish_ReachesMonitor(t *testing.T) {
	h := New("monitor")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	url := startMonitorServer(t, h)
	var ws *websocket.Conn
	waitFor(t, func() bool {
		var err error
		ws, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	})
	defer ws.Close()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	if err := h.Publish("cand-42", map[string]any{"attention_score": 0.7}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Errorf("frame type = %d, want text", mt)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Type != protocol.TypeAnalysisResult {
		t.Errorf("Type = %q, want analysis_result", msg.Type)
	}
	res, err := msg.GetAnalysisResult()
	if err != nil {
		t.Fatalf("GetAnalysisResult: %v", err)
	}
	if res.SessionID != "cand-42" {
		t.Errorf("SessionID = %q, want cand-42", res.SessionID)
	}
	var rec struct {
		AttentionScore float64 `json:"attention_score"`
	}
	json.Unmarshal(res.Analysis, &rec)
	if rec.AttentionScore != 0.7 {
		t.Errorf("attention_score = %v, want 0.7", rec.AttentionScore)
	}

	ws.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}
