package voicesignal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/triple4t/ai-interview/internal/log"
	"github.com/triple4t/ai-interview/pkg/debug"
)

// feedMessage is what an external voice-analysis service sends. A message
// carrying Text is scored locally; otherwise the scores are taken as given.
type feedMessage struct {
	Text           *string  `json:"text,omitempty"`
	Speaking       bool     `json:"speaking"`
	Confidence     float64  `json:"confidence"`
	Nervousness    float64  `json:"nervousness"`
	SpeechPatterns []string `json:"speech_patterns"`
}

func (m feedMessage) snapshot() Snapshot {
	if m.Text != nil {
		return AnalyzeText(*m.Text)
	}
	return Snapshot{
		Speaking:    m.Speaking,
		Confidence:  m.Confidence,
		Nervousness: m.Nervousness,
		Patterns:    m.SpeechPatterns,
	}
}

// Feed subscribes to an external voice-analysis websocket and pushes every
// reading it receives into a Store.
type Feed struct {
	url    string
	store  *Store
	dialer websocket.Dialer

	// RetryDelay is the pause between reconnect attempts.
	RetryDelay time.Duration
}

// NewFeed creates a feed writing into store
func NewFeed(url string, store *Store) *Feed {
	return &Feed{
		url:        url,
		store:      store,
		dialer:     websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		RetryDelay: 2 * time.Second,
	}
}

// Run connects and consumes messages until ctx is done, reconnecting after
// failures. The store falls back to neutral while disconnected.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.consume(ctx)
		f.store.Reset()
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("voice feed disconnected", "url", f.url, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.RetryDelay):
		}
	}
}

func (f *Feed) consume(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial voice feed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	log.Info("voice feed connected", "url", f.url)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("voice feed closed by peer")
			}
			return fmt.Errorf("read voice feed: %w", err)
		}

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("voice feed: skipping malformed message", "error", err)
			continue
		}
		snap := msg.snapshot()
		f.store.Push(snap)
		debug.Log("voice snapshot", "speaking", snap.Speaking, "confidence", snap.Confidence, "nervousness", snap.Nervousness)
	}
}
