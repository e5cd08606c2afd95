package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand/v2"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
)

// Mock renders solid-colour frames with a banded pattern so every frame of
// a burst encodes to different bytes.
type Mock struct {
	width   int
	height  int
	quality int
	now     func() time.Time
}

func NewMock(width, height, quality int) *Mock {
	return &Mock{width: width, height: height, quality: quality, now: time.Now}
}

func (m *Mock) Capture(ctx context.Context, n int) ([]models.Frame, error) {
	frames := make([]models.Frame, 0, n)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return frames, fmt.Errorf("%w: burst interrupted after %d frames: %w", common.ErrCapture, i, err)
		}

		data, err := m.render(i)
		if err != nil {
			return frames, fmt.Errorf("%w: encode frame %d: %w", common.ErrCapture, i, err)
		}
		frames = append(frames, models.Frame{
			Data:       data,
			CapturedAt: m.now().UTC(),
			Width:      m.width,
			Height:     m.height,
			Format:     FormatJPEG,
		})
	}
	return frames, nil
}

func (m *Mock) render(seq int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))

	base := color.RGBA{R: uint8(rand.IntN(256)), G: uint8(rand.IntN(256)), B: uint8(rand.IntN(256)), A: 255}
	inv := color.RGBA{R: 255 - base.R, G: 255 - base.G, B: 255 - base.B, A: 255}
	band := max(m.height/16, 1)

	for y := 0; y < m.height; y++ {
		c := base
		if (y/band+seq)%4 == 0 {
			c = inv
		}
		for x := 0; x < m.width; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: m.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
