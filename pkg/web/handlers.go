package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/triple4t/ai-interview/pkg/pipeline"
	"github.com/triple4t/ai-interview/pkg/protocol"
	"github.com/triple4t/ai-interview/pkg/session"
	"github.com/triple4t/ai-interview/pkg/voicesignal"
)

// maxFrameSize bounds one inbound frame message.
const maxFrameSize = 8 * 1024 * 1024

func success(c *fiber.Ctx, msg string) error {
	return c.JSON(fiber.Map{"status": "success", "message": msg})
}

func failure(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"status": "error", "message": msg})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	s.sessions.Arm()
	return success(c, "Enhanced face detection started")
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.sessions.Disarm()
	return success(c, "Enhanced face detection stopped")
}

func (s *Server) handleStartCamera(c *fiber.Ctx) error {
	if err := s.sessions.StartCamera(c.Params("client_id")); err != nil {
		return cameraError(c, err)
	}
	return success(c, "Camera started successfully")
}

func (s *Server) handleStopCamera(c *fiber.Ctx) error {
	if err := s.sessions.StopCamera(c.Params("client_id")); err != nil {
		return cameraError(c, err)
	}
	return success(c, "Camera stopped successfully")
}

func cameraError(c *fiber.Ctx, err error) error {
	if errors.Is(err, session.ErrUnknownSession) {
		return failure(c, fiber.StatusNotFound, "Client not connected")
	}
	return failure(c, fiber.StatusInternalServerError, err.Error())
}

// VoiceUpdateRequest feeds the voice signal. Only text is analyzed; a body
// without text_data records that the candidate is not speaking.
type VoiceUpdateRequest struct {
	TextData  string `json:"text_data"`
	AudioData string `json:"audio_data,omitempty"`
}

func (s *Server) handleUpdateVoice(c *fiber.Ctx) error {
	var req VoiceUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return failure(c, fiber.StatusBadRequest, err.Error())
	}
	s.voice.Push(voicesignal.AnalyzeText(req.TextData))
	return success(c, "Voice analysis updated")
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.sessions.Status())
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	infos := s.sessions.Sessions()
	return c.JSON(fiber.Map{"sessions": infos, "count": len(infos)})
}

// handleFrames runs one client session. Frames are analyzed synchronously in
// arrival order; the socket is not read again until the reply is written, so
// a slow pipeline back-pressures the client.
func (s *Server) handleFrames(c *websocket.Conn) {
	ctx := context.Background()

	sess, err := s.sessions.Open(ctx, c.Params("client_id"))
	if err != nil {
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		c.Close()
		return
	}
	defer s.sessions.Close(ctx, sess)
	logger := sess.Logger()
	c.SetReadLimit(maxFrameSize)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("client read error", "error", err)
			}
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			logger.Debug("ignoring malformed message", "error", err)
			continue
		}

		var reply *protocol.Message
		switch msg.Type {
		case protocol.TypeVideoFrame:
			frame, err := msg.GetVideoFrame()
			if err != nil {
				continue
			}
			rec, err := sess.ProcessBase64(ctx, frame.Image)
			if err != nil {
				// undecodable frames get no reply
				logger.Debug("skipping frame", "error", err, "decode", errors.Is(err, pipeline.ErrDecode))
				continue
			}
			reply, err = protocol.NewAnalysisMessage("", rec, time.Now())
			if err != nil {
				logger.Error("encode analysis", "error", err)
				continue
			}

		case protocol.TypePing:
			reply = protocol.NewPongMessage()

		default:
			continue
		}

		out, err := reply.Bytes()
		if err != nil {
			logger.Error("encode reply", "error", err)
			continue
		}
		if err := c.WriteMessage(websocket.TextMessage, out); err != nil {
			logger.Warn("client write error", "error", err)
			return
		}
	}
}
