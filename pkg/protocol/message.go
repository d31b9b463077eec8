// Package protocol defines the WebSocket messages exchanged between interview
// clients, the analysis server and proctor monitors.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Server
	TypeVideoFrame MessageType = "video_frame" // base64 encoded camera frame

	// Server → Client / Monitor
	TypeAnalysisResult MessageType = "analysis_result" // per-frame analysis record

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// ErrNoImage is returned when a video_frame message carries no image.
var ErrNoImage = errors.New("video frame has no image")

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// ParseData unmarshals the message data into v. A message without data
// leaves v untouched.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// VideoFrameData carries one encoded camera frame.
type VideoFrameData struct {
	// Image is base64 JPEG/PNG, optionally with a data-URL prefix.
	Image string `json:"image"`
}

// AnalysisResultData wraps one analysis record. Analysis is kept as raw
// JSON so this package stays independent of the record type.
type AnalysisResultData struct {
	SessionID string          `json:"session_id,omitempty"`
	Analysis  json.RawMessage `json:"analysis"`
	Timestamp float64         `json:"timestamp"` // Unix seconds
}

// GetVideoFrame extracts the frame payload of a video_frame message.
func (m *Message) GetVideoFrame() (*VideoFrameData, error) {
	var d VideoFrameData
	if err := m.ParseData(&d); err != nil {
		return nil, fmt.Errorf("failed to parse video frame: %w", err)
	}
	if d.Image == "" {
		return nil, ErrNoImage
	}
	return &d, nil
}

// GetAnalysisResult extracts the payload of an analysis_result message.
func (m *Message) GetAnalysisResult() (*AnalysisResultData, error) {
	var d AnalysisResultData
	if err := m.ParseData(&d); err != nil {
		return nil, fmt.Errorf("failed to parse analysis result: %w", err)
	}
	return &d, nil
}
