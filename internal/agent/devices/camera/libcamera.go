package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
)

// libcamera-still expands the counter in the output name itself.
const framePattern = "frame_%03d.jpg"

type LibcameraOptions struct {
	Command string // libcamera-still or rpicam-still
	Width   int
	Height  int
	Quality int
	// Interval between frames of a burst.
	Interval time.Duration
	// WorkDir holds the files of a burst until they are read back.
	// Defaults to os.TempDir().
	WorkDir string
}

// Libcamera captures bursts by running libcamera-still in timelapse mode and
// reading back whatever files it managed to write.
type Libcamera struct {
	opts LibcameraOptions
}

func NewLibcamera(opts LibcameraOptions) *Libcamera {
	if opts.Command == "" {
		opts.Command = "libcamera-still"
	}
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	return &Libcamera{opts: opts}
}

func (c *Libcamera) args(pattern string, n int) []string {
	return []string{
		"-n",
		"-o", pattern,
		"--width", strconv.Itoa(c.opts.Width),
		"--height", strconv.Itoa(c.opts.Height),
		"--quality", strconv.Itoa(c.opts.Quality),
		"--timelapse", strconv.FormatInt(c.opts.Interval.Milliseconds(), 10),
		"--frames", strconv.Itoa(n),
	}
}

func (c *Libcamera) Capture(ctx context.Context, n int) ([]models.Frame, error) {
	dir, err := os.MkdirTemp(c.opts.WorkDir, "burst-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCapture, err)
	}
	defer os.RemoveAll(dir)

	pattern := filepath.Join(dir, framePattern)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.opts.Command, c.args(pattern, n)...)
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	frames := make([]models.Frame, 0, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf(framePattern, i))
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		at := time.Now().UTC()
		if fi, err := os.Stat(path); err == nil {
			at = fi.ModTime().UTC()
		}
		frames = append(frames, models.Frame{
			Data:       data,
			CapturedAt: at,
			Width:      c.opts.Width,
			Height:     c.opts.Height,
			Format:     FormatJPEG,
		})
	}

	switch {
	case errors.Is(runErr, exec.ErrNotFound):
		return frames, fmt.Errorf("%w: %s is not available on this system: %w", common.ErrCapture, c.opts.Command, runErr)
	case runErr != nil:
		return frames, fmt.Errorf("%w: %s: %w: %s", common.ErrCapture, c.opts.Command, runErr, strings.TrimSpace(stderr.String()))
	case len(frames) < n:
		return frames, fmt.Errorf("%w: %s wrote %d of %d frames", common.ErrCapture, c.opts.Command, len(frames), n)
	}
	return frames, nil
}
