package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/triple4t/ai-interview/pkg/analysis"
	"github.com/triple4t/ai-interview/pkg/hub"
	"github.com/triple4t/ai-interview/pkg/pipeline"
	"github.com/triple4t/ai-interview/pkg/protocol"
	"github.com/triple4t/ai-interview/pkg/session"
	"github.com/triple4t/ai-interview/pkg/vision/detection"
	"github.com/triple4t/ai-interview/pkg/voicesignal"
)

type absentLocator struct{}

func (absentLocator) Locate(context.Context, gocv.Mat) detection.Detection {
	return detection.Detection{}
}

type fixture struct {
	srv      *Server
	sessions *session.Manager
	monitors *hub.Hub
	voice    *voicesignal.Store
}

func newFixture(t *testing.T, opts Options, sessOpts ...session.Option) *fixture {
	t.Helper()
	voice := voicesignal.NewStore()
	monitors := hub.New("monitor")
	factory := func(id string, l *slog.Logger) *pipeline.Pipeline {
		return pipeline.New(absentLocator{}, nil, voice, pipeline.DefaultConfig(), pipeline.WithLogger(l))
	}
	sessOpts = append(sessOpts, session.WithRecordHook(func(id string, rec analysis.Record) {
		monitors.Publish(id, rec)
	}))
	sessions := session.NewManager(factory, sessOpts...)
	return &fixture{
		srv:      NewServer(sessions, monitors, voice, opts),
		sessions: sessions,
		monitors: monitors,
		voice:    voice,
	}
}

// serve starts the server and the hub on a random port and returns its address.
func (f *fixture) serve(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go f.monitors.Run(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		f.srv.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	var ws *websocket.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		var err error
		ws, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial %s: %v", url, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func send(t *testing.T, ws *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, err := msg.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func receive(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return msg
}

func jpegFrame(t *testing.T) string {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 240, 320, gocv.MatTypeCV8UC3)
	defer img.Close()
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		t.Fatalf("IMEncode: %v", err)
	}
	defer buf.Close()
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.GetBytes())
}

func doJSON(t *testing.T, f *fixture, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.srv.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{})
	code, body := doJSON(t, f, "GET", "/healthz", "")
	if code != 200 || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", code, body)
	}
}

func TestMetricsRoute(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "proctor_frames_processed_total 3\n")
	})
	f := newFixture(t, Options{Metrics: h})

	resp, err := f.srv.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "proctor_frames_processed") {
		t.Errorf("metrics body = %q", body)
	}
}

func TestStartStopStatus(t *testing.T) {
	f := newFixture(t, Options{})

	code, body := doJSON(t, f, "POST", "/face-detection/start", "")
	if code != 200 || body["status"] != "success" {
		t.Fatalf("start = %d %v", code, body)
	}

	_, st := doJSON(t, f, "GET", "/face-detection/status", "")
	if st["is_streaming"] != true || st["camera_started"] != true || st["camera_available"] != false {
		t.Errorf("status after start = %v", st)
	}
	if st["active_connections"] != float64(0) {
		t.Errorf("active_connections = %v", st["active_connections"])
	}
	if feats, _ := st["features"].([]any); len(feats) != len(session.Features) {
		t.Errorf("features = %v", st["features"])
	}

	doJSON(t, f, "POST", "/face-detection/stop", "")
	if f.sessions.Armed() {
		t.Error("stop did not disarm")
	}
}

func TestStartCamera_UnknownClient(t *testing.T) {
	f := newFixture(t, Options{})
	code, body := doJSON(t, f, "POST", "/face-detection/start-camera/ghost", "")
	if code != 404 || body["status"] != "error" || body["message"] != "Client not connected" {
		t.Errorf("start-camera = %d %v", code, body)
	}
}

func TestUpdateVoiceAnalysis(t *testing.T) {
	f := newFixture(t, Options{})

	code, body := doJSON(t, f, "POST", "/face-detection/update-voice-analysis",
		`{"text_data":"I definitely implemented the API. The database design was clearly optimized."}`)
	if code != 200 || body["status"] != "success" {
		t.Fatalf("update = %d %v", code, body)
	}
	snap := f.voice.Latest()
	if !snap.Speaking || snap.Confidence <= 0.5 {
		t.Errorf("snapshot after text = %+v", snap)
	}

	doJSON(t, f, "POST", "/face-detection/update-voice-analysis", `{"audio_data":"AAAA"}`)
	if snap := f.voice.Latest(); snap.Speaking || snap.Confidence != 0 {
		t.Errorf("snapshot after audio-only body = %+v", snap)
	}

	code, body = doJSON(t, f, "POST", "/face-detection/update-voice-analysis", `{not json`)
	if code != 400 || body["status"] != "error" {
		t.Errorf("bad body = %d %v", code, body)
	}
}

func TestFrameSocket_PlainHTTPRejected(t *testing.T) {
	f := newFixture(t, Options{})
	resp, err := f.srv.App().Test(httptest.NewRequest("GET", "/face-detection/ws/c1", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

func TestFrameSocket_AnalysisAndPing(t *testing.T) {
	f := newFixture(t, Options{})
	addr := f.serve(t)
	ws := dial(t, "ws://"+addr+"/face-detection/ws/cand-1")

	waitFor(t, func() bool { return f.sessions.Count() == 1 })

	// an undecodable frame gets no reply, so the next message read is the
	// analysis of the good frame
	bad, _ := protocol.NewVideoFrameMessage("data:image/jpeg;base64,@@@@")
	send(t, ws, bad)
	good, _ := protocol.NewVideoFrameMessage(jpegFrame(t))
	send(t, ws, good)

	msg := receive(t, ws)
	if msg.Type != protocol.TypeAnalysisResult {
		t.Fatalf("Type = %q, want analysis_result", msg.Type)
	}
	res, err := msg.GetAnalysisResult()
	if err != nil {
		t.Fatal(err)
	}
	var rec analysis.Record
	if err := json.Unmarshal(res.Analysis, &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.FaceDetected || rec.HeadPose.Label != "unknown" {
		t.Errorf("record for empty frame = %+v", rec)
	}
	if res.Timestamp <= 0 {
		t.Error("timestamp missing")
	}

	send(t, ws, protocol.NewPingMessage())
	if msg := receive(t, ws); msg.Type != protocol.TypePong {
		t.Errorf("Type = %q, want pong", msg.Type)
	}

	ws.Close()
	waitFor(t, func() bool { return f.sessions.Count() == 0 })
}

func TestFrameSocket_RequireArmed(t *testing.T) {
	f := newFixture(t, Options{}, session.WithRequireArmed(true))
	addr := f.serve(t)
	ws := dial(t, "ws://"+addr+"/face-detection/ws/cand-1")

	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("read err = %v, want policy-violation close", err)
	}
}

func TestMonitorReceivesTaggedRecords(t *testing.T) {
	f := newFixture(t, Options{})
	addr := f.serve(t)

	mon := dial(t, "ws://"+addr+"/ws/monitor")
	waitFor(t, func() bool { return f.monitors.ClientCount() == 1 })

	ws := dial(t, "ws://"+addr+"/face-detection/ws/cand-7")
	frame, _ := protocol.NewVideoFrameMessage(jpegFrame(t))
	send(t, ws, frame)
	receive(t, ws)

	msg := receive(t, mon)
	res, err := msg.GetAnalysisResult()
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionID != "cand-7" {
		t.Errorf("SessionID = %q, want cand-7", res.SessionID)
	}
}
