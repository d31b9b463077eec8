// Package session orchestrates per-client analysis sessions. Every session
// owns its own pipeline so hysteresis state is never shared; the manager
// tracks the sessions, the service-wide armed flag and capability discovery.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/triple4t/ai-interview/internal/log"
	"github.com/triple4t/ai-interview/internal/metrics"
	"github.com/triple4t/ai-interview/pkg/analysis"
	"github.com/triple4t/ai-interview/pkg/pipeline"
)

var (
	// ErrNotArmed is returned by Open when the manager requires arming and
	// the service has not been started.
	ErrNotArmed = errors.New("face detection is not started")

	// ErrUnknownSession is returned for operations on a client that is not connected.
	ErrUnknownSession = errors.New("client not connected")
)

// Features lists the analysis capabilities reported by Status.
var Features = []string{
	"Eye tracking",
	"Head pose detection",
	"Multiple face detection",
	"Screen sharing detection",
	"Mobile device detection",
	"Suspicious object detection",
	"Voice analysis integration",
	"Temporal smoothing",
}

// Factory builds a fresh pipeline for a new session.
type Factory func(id string, logger *slog.Logger) *pipeline.Pipeline

// RecordHook observes every record a session produces.
type RecordHook func(sessionID string, rec analysis.Record)

// Session is one connected client.
type Session struct {
	ID     string
	Opened time.Time

	log  *slog.Logger
	hook RecordHook

	mu       sync.Mutex // one frame at a time
	pipeline *pipeline.Pipeline

	frames        atomic.Uint64
	cameraStarted atomic.Bool
}

// Info is a point-in-time view of a session.
type Info struct {
	ID            string    `json:"id"`
	Opened        time.Time `json:"opened"`
	Frames        uint64    `json:"frames"`
	CameraStarted bool      `json:"camera_started"`
}

// Process analyzes one decoded frame. Calls are serialized per session.
func (s *Session) Process(ctx context.Context, img gocv.Mat) analysis.Record {
	s.mu.Lock()
	rec := s.pipeline.Process(ctx, img)
	s.mu.Unlock()

	s.frames.Add(1)
	if s.hook != nil {
		s.hook(s.ID, rec)
	}
	return rec
}

// ProcessBase64 decodes and analyzes one frame payload. Undecodable
// payloads return pipeline.ErrDecode and do not count as frames.
func (s *Session) ProcessBase64(ctx context.Context, payload string) (analysis.Record, error) {
	img, err := pipeline.DecodeBase64(payload)
	defer img.Close()
	if err != nil {
		return analysis.Record{}, err
	}
	return s.Process(ctx, img), nil
}

// Info returns the session's current counters.
func (s *Session) Info() Info {
	return Info{
		ID:            s.ID,
		Opened:        s.Opened,
		Frames:        s.frames.Load(),
		CameraStarted: s.cameraStarted.Load(),
	}
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *slog.Logger {
	return s.log
}

// Option customizes a Manager
type Option func(*Manager)

// WithMetrics counts active sessions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithRequireArmed makes Open fail with ErrNotArmed until Arm is called.
func WithRequireArmed(require bool) Option {
	return func(mgr *Manager) { mgr.requireArmed = require }
}

// WithRecordHook registers an observer for every session's records.
func WithRecordHook(h RecordHook) Option {
	return func(mgr *Manager) { mgr.hook = h }
}

// Manager tracks the connected sessions.
type Manager struct {
	factory      Factory
	metrics      *metrics.Metrics
	hook         RecordHook
	requireArmed bool

	armed atomic.Bool

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Arm marks the service as streaming.
func (m *Manager) Arm() {
	if !m.armed.Swap(true) {
		log.Info("face detection streaming started")
	}
}

// Disarm marks the service as stopped. Connected sessions are kept.
func (m *Manager) Disarm() {
	if m.armed.Swap(false) {
		log.Info("face detection streaming stopped")
	}
}

// Armed reports whether the service is streaming.
func (m *Manager) Armed() bool {
	return m.armed.Load()
}

// Open starts a session with fresh state. An empty id gets a generated one.
// Opening an id that is already connected replaces the old session.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if m.requireArmed && !m.Armed() {
		return nil, ErrNotArmed
	}
	if id == "" {
		id = uuid.NewString()
	}

	logger := log.Session(id)
	s := &Session{
		ID:       id,
		Opened:   time.Now(),
		log:      logger,
		hook:     m.hook,
		pipeline: m.factory(id, logger),
	}

	m.mu.Lock()
	_, replaced := m.sessions[id]
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	if replaced {
		logger.Warn("session replaced by a new connection")
	} else {
		m.metrics.SessionOpened(ctx)
	}
	logger.Info("session opened", "active", n)
	return s, nil
}

// Close ends a session and discards its state. Closing a session that was
// already replaced leaves the newer one in place.
func (m *Manager) Close(ctx context.Context, s *Session) {
	m.mu.Lock()
	cur, ok := m.sessions[s.ID]
	if ok && cur == s {
		delete(m.sessions, s.ID)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if ok && cur == s {
		m.metrics.SessionClosed(ctx)
		s.log.Info("session closed", "frames", s.frames.Load(), "active", n)
	}
}

// Get returns a connected session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Count returns the number of connected sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sessions returns info for every connected session.
func (m *Manager) Sessions() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// StartCamera arms the service on behalf of a connected client.
func (m *Manager) StartCamera(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.cameraStarted.Store(true)
	m.Arm()
	return nil
}

// StopCamera disarms the service on behalf of a connected client.
func (m *Manager) StopCamera(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.cameraStarted.Store(false)
	m.Disarm()
	return nil
}

// Status is the service status report.
type Status struct {
	IsStreaming       bool     `json:"is_streaming"`
	CameraAvailable   bool     `json:"camera_available"`
	CameraStarted     bool     `json:"camera_started"`
	ActiveConnections int      `json:"active_connections"`
	Features          []string `json:"features"`
}

// Status reports the armed flag, connection count and feature list. Frames
// come from clients, so no local camera is ever available.
func (m *Manager) Status() Status {
	armed := m.Armed()
	return Status{
		IsStreaming:       armed,
		CameraAvailable:   false,
		CameraStarted:     armed,
		ActiveConnections: m.Count(),
		Features:          append([]string(nil), Features...),
	}
}
