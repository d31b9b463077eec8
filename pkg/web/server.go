// Package web serves the proctoring API: REST controls, the per-client frame
// websocket, the proctor monitor websocket, health and metrics.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/triple4t/ai-interview/internal/log"
	"github.com/triple4t/ai-interview/pkg/hub"
	"github.com/triple4t/ai-interview/pkg/session"
	"github.com/triple4t/ai-interview/pkg/voicesignal"
)

// Options configures the server surface.
type Options struct {
	Port        string
	CORSOrigins string       // comma separated, "*" for any
	Metrics     http.Handler // served on /metrics when set
	Debug       bool         // request logging
}

// Server is the proctoring HTTP/WebSocket server
type Server struct {
	app  *fiber.App
	port string

	sessions *session.Manager
	monitors *hub.Hub
	voice    *voicesignal.Store
}

// NewServer wires the routes. monitors may be nil, which disables /ws/monitor.
func NewServer(sessions *session.Manager, monitors *hub.Hub, voice *voicesignal.Store, opts Options) *Server {
	s := &Server{
		port:     opts.Port,
		sessions: sessions,
		monitors: monitors,
		voice:    voice,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Interview Proctor",
		DisableStartupMessage: true,
		BodyLimit:             maxFrameSize,
	})

	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if opts.Debug {
		app.Use(logger.New())
	}

	app.Get("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	fd := app.Group("/face-detection")
	fd.Post("/start", s.handleStart)
	fd.Post("/stop", s.handleStop)
	fd.Post("/start-camera/:client_id", s.handleStartCamera)
	fd.Post("/stop-camera/:client_id", s.handleStopCamera)
	fd.Post("/update-voice-analysis", s.handleUpdateVoice)
	fd.Get("/status", s.handleStatus)
	fd.Get("/sessions", s.handleSessions)
	fd.Get("/ws/:client_id", requireUpgrade, websocket.New(s.handleFrames))

	if monitors != nil {
		app.Get("/ws/monitor", requireUpgrade, monitors.Handler())
	}

	s.app = app
	return s
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()
	log.Info("proctor server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errc
	}
}
