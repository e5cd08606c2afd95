package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	CameraMock      = "mock"
	CameraLibcamera = "libcamera"

	SensorMock = "mock"
	SensorIIO  = "iio"

	SinkAPI = "api"
	SinkS3  = "s3"

	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// Config holds runtime settings for the edge agent.
//
// Units: all intervals and timeouts are time.Duration; RetentionDays is in
// days; UploadRate is images per second (0 disables throttling).
type Config struct {
	DeviceID  string
	ServerURL string
	CrateID   string

	DBPath   string
	ImageDir string

	BurstSize         int
	CaptureInterval   time.Duration
	HeartbeatInterval time.Duration
	SyncInterval      time.Duration
	CleanupInterval   time.Duration
	RetentionDays     int
	SyncBatchSize     int
	CleanupBatchSize  int

	RequestTimeout  time.Duration
	RetryBase       time.Duration
	RetryMax        time.Duration
	ShutdownTimeout time.Duration
	UploadRate      float64

	CameraBackend string
	CameraCommand string
	CameraName    string
	ImageWidth    int
	ImageHeight   int
	JPEGQuality   int

	SensorEnabled bool
	SensorBackend string
	SensorIIOPath string

	ImageSink   string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	HeartbeatTransport string
	MQTTBroker         string
	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTTopic          string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// LoadDefaults populates c with defaults suitable for a development machine.
func (c *Config) LoadDefaults() {
	c.DeviceID = "edge-001"
	c.ServerURL = "http://127.0.0.1:8080/api"

	c.DBPath = "./edge_data/edgekeeper.db"
	c.ImageDir = "./edge_data/images"

	c.BurstSize = 10
	c.CaptureInterval = 60 * time.Second
	c.HeartbeatInterval = 300 * time.Second
	c.SyncInterval = 120 * time.Second
	c.CleanupInterval = time.Hour
	c.RetentionDays = 30
	c.SyncBatchSize = 20
	c.CleanupBatchSize = 100

	c.RequestTimeout = 10 * time.Second
	c.RetryBase = 30 * time.Second
	c.RetryMax = time.Hour
	c.ShutdownTimeout = 10 * time.Second

	c.CameraBackend = CameraMock
	c.CameraCommand = "libcamera-still"
	c.CameraName = "camera_0"
	c.ImageWidth = 640
	c.ImageHeight = 480
	c.JPEGQuality = 90

	c.SensorEnabled = true
	c.SensorBackend = SensorMock
	c.SensorIIOPath = "/sys/bus/iio/devices/iio:device0"

	c.ImageSink = SinkAPI
	c.S3Region = "us-east-1"

	c.HeartbeatTransport = TransportHTTP

	c.LogLevel = "info"
	c.LogFormat = "json"
	c.LogFile = "./edge_data/edge.log"
}

// Retention returns the retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// HeartbeatTopic returns the configured MQTT topic or the per-device default.
func (c *Config) HeartbeatTopic() string {
	if c.MQTTTopic != "" {
		return c.MQTTTopic
	}
	return fmt.Sprintf("edge/%s/heartbeat", c.DeviceID)
}

// Validate reports every setting the agent cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.DeviceID == "" {
		errs = append(errs, errors.New("device_id must not be empty"))
	}
	if c.ServerURL == "" {
		errs = append(errs, errors.New("server_url must not be empty"))
	}
	if c.BurstSize <= 0 {
		errs = append(errs, fmt.Errorf("burst_size must be positive, got %d", c.BurstSize))
	}
	if c.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("retention_days must be positive, got %d", c.RetentionDays))
	}
	for name, d := range map[string]time.Duration{
		"capture_interval":   c.CaptureInterval,
		"heartbeat_interval": c.HeartbeatInterval,
		"sync_interval":      c.SyncInterval,
		"cleanup_interval":   c.CleanupInterval,
		"request_timeout":    c.RequestTimeout,
		"retry_base":         c.RetryBase,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.RetryMax < c.RetryBase {
		errs = append(errs, fmt.Errorf("retry_max (%s) must not be below retry_base (%s)", c.RetryMax, c.RetryBase))
	}
	if c.CameraBackend != CameraMock && c.CameraBackend != CameraLibcamera {
		errs = append(errs, fmt.Errorf("unknown camera_backend %q", c.CameraBackend))
	}
	if c.SensorBackend != SensorMock && c.SensorBackend != SensorIIO {
		errs = append(errs, fmt.Errorf("unknown sensor_backend %q", c.SensorBackend))
	}
	switch c.ImageSink {
	case SinkAPI:
	case SinkS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("s3_bucket is required when image_sink is s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown image_sink %q", c.ImageSink))
	}
	switch c.HeartbeatTransport {
	case TransportHTTP:
	case TransportMQTT:
		if c.MQTTBroker == "" {
			errs = append(errs, errors.New("mqtt_broker is required when heartbeat_transport is mqtt"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown heartbeat_transport %q", c.HeartbeatTransport))
	}

	return errors.Join(errs...)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if any) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
