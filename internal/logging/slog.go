package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}

// Options select the handler built by New.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	File   string // optional; output is written to both stdout and this file
}

// ParseLevel maps a level name to slog.Level. An empty name means info;
// unknown names yield an error.
func ParseLevel(name string) (slog.Level, error) {
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// New builds a SlogLogger writing to out (stdout when nil) and, when
// opts.File is set, to that file as well. The returned closer releases the
// file and is never nil.
func New(out io.Writer, opts Options) (*SlogLogger, io.Closer, error) {
	if out == nil {
		out = os.Stdout
	}

	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	switch opts.Format {
	case "", "json", "text":
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	var closer io.Closer = io.NopCloser(nil)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		closer = f
	}

	ho := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler = slog.NewJSONHandler(out, ho)
	if opts.Format == "text" {
		h = slog.NewTextHandler(out, ho)
	}

	return NewSlogLogger(slog.New(h)), closer, nil
}
