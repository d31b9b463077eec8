package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// NewVideoFrameMessage creates a video_frame message from a base64 image.
func NewVideoFrameMessage(image string) (*Message, error) {
	return NewMessage(TypeVideoFrame, VideoFrameData{Image: image})
}

// NewAnalysisMessage wraps an analysis record. sessionID is empty on the
// per-client stream and set on the monitor stream.
func NewAnalysisMessage(sessionID string, analysis any, at time.Time) (*Message, error) {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return NewMessage(TypeAnalysisResult, AnalysisResultData{
		SessionID: sessionID,
		Analysis:  raw,
		Timestamp: float64(at.UnixNano()) / float64(time.Second),
	})
}

// NewPingMessage creates a ping message
func NewPingMessage() *Message {
	return &Message{Type: TypePing, Timestamp: time.Now().UnixMilli()}
}

// NewPongMessage creates a pong message
func NewPongMessage() *Message {
	return &Message{Type: TypePong, Timestamp: time.Now().UnixMilli()}
}
