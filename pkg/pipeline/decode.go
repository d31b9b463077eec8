package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"github.com/triple4t/ai-interview/pkg/analysis"
)

// ErrDecode is returned when a frame payload is not a decodable image.
var ErrDecode = errors.New("frame decode failed")

// DecodeBase64 decodes a base64 image payload, with or without a
// "data:image/...;base64," prefix, into a BGR Mat. The caller owns the Mat.
func DecodeBase64(payload string) (gocv.Mat, error) {
	if i := strings.Index(payload, ","); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return DecodeImage(raw)
}

// DecodeImage decodes encoded image bytes (JPEG, PNG) into a BGR Mat.
func DecodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty payload", ErrDecode)
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Empty() {
		return img, fmt.Errorf("%w: not an image", ErrDecode)
	}
	return img, nil
}

// ProcessBase64 decodes and analyzes one frame payload. Decode failures are
// returned as ErrDecode and leave the session state untouched.
func (p *Pipeline) ProcessBase64(ctx context.Context, payload string) (analysis.Record, error) {
	img, err := DecodeBase64(payload)
	defer img.Close()
	if err != nil {
		return analysis.Record{}, err
	}
	return p.Process(ctx, img), nil
}
