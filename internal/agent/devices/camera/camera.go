// Package camera provides the image capture backends. The capture loop only
// sees the Camera interface; the backend is picked once from configuration.
package camera

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/config"
)

const FormatJPEG = "jpeg"

// Camera captures bursts of frames.
//
// Capture may return fewer than n frames together with an error describing
// why the burst stopped short; callers keep whatever frames came back.
type Camera interface {
	Capture(ctx context.Context, n int) ([]models.Frame, error)
}

// New builds the backend named by cfg.CameraBackend.
func New(cfg *config.Config) (Camera, error) {
	switch cfg.CameraBackend {
	case config.CameraMock:
		return NewMock(cfg.ImageWidth, cfg.ImageHeight, cfg.JPEGQuality), nil
	case config.CameraLibcamera:
		return NewLibcamera(LibcameraOptions{
			Command: cfg.CameraCommand,
			Width:   cfg.ImageWidth,
			Height:  cfg.ImageHeight,
			Quality: cfg.JPEGQuality,
		}), nil
	default:
		return nil, fmt.Errorf("unknown camera backend %q", cfg.CameraBackend)
	}
}
