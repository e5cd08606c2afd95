package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/flagx"
)

// parseFlags overlays cfg with the command-line flags it recognises. The
// argument list is filtered first so flags owned by other consumers (such as
// -c) do not cause a parse error.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-b", "-m", "-n", "-r", "-i", "-s", "-l"})

	fs := flag.NewFlagSet("agent", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server base URL")
	fs.StringVar(&cfg.DeviceID, "d", cfg.DeviceID, "device id")
	fs.StringVar(&cfg.DBPath, "b", cfg.DBPath, "path of the local database")
	fs.StringVar(&cfg.ImageDir, "m", cfg.ImageDir, "directory for captured images")
	fs.IntVar(&cfg.BurstSize, "n", cfg.BurstSize, "images per burst")
	fs.IntVar(&cfg.RetentionDays, "r", cfg.RetentionDays, "retention window (days)")
	captureInterval := fs.Int("i", int(cfg.CaptureInterval.Seconds()), "capture interval (in seconds)")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.CaptureInterval = time.Duration(*captureInterval) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	return nil
}
