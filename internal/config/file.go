package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/edgekeeper/internal/flagx"
	"github.com/dmitrijs2005/edgekeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the DTO decoded from a config file. It is pre-filled from
// the current Config so keys missing from the file keep their values.
type fileConfig struct {
	DeviceID  string `json:"device_id" yaml:"device_id"`
	ServerURL string `json:"server_url" yaml:"server_url"`
	CrateID   string `json:"crate_id" yaml:"crate_id"`

	DBPath   string `json:"db_path" yaml:"db_path"`
	ImageDir string `json:"image_dir" yaml:"image_dir"`

	BurstSize         int            `json:"burst_size" yaml:"burst_size"`
	CaptureInterval   timex.Duration `json:"capture_interval" yaml:"capture_interval"`
	HeartbeatInterval timex.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	SyncInterval      timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	CleanupInterval   timex.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
	RetentionDays     int            `json:"retention_days" yaml:"retention_days"`
	SyncBatchSize     int            `json:"sync_batch_size" yaml:"sync_batch_size"`
	CleanupBatchSize  int            `json:"cleanup_batch_size" yaml:"cleanup_batch_size"`

	RequestTimeout  timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	RetryBase       timex.Duration `json:"retry_base" yaml:"retry_base"`
	RetryMax        timex.Duration `json:"retry_max" yaml:"retry_max"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	UploadRate      float64        `json:"upload_rate" yaml:"upload_rate"`

	CameraBackend string `json:"camera_backend" yaml:"camera_backend"`
	CameraCommand string `json:"camera_command" yaml:"camera_command"`
	CameraName    string `json:"camera_name" yaml:"camera_name"`
	ImageWidth    int    `json:"image_width" yaml:"image_width"`
	ImageHeight   int    `json:"image_height" yaml:"image_height"`
	JPEGQuality   int    `json:"jpeg_quality" yaml:"jpeg_quality"`

	SensorEnabled bool   `json:"sensor_enabled" yaml:"sensor_enabled"`
	SensorBackend string `json:"sensor_backend" yaml:"sensor_backend"`
	SensorIIOPath string `json:"sensor_iio_path" yaml:"sensor_iio_path"`

	ImageSink   string `json:"image_sink" yaml:"image_sink"`
	S3Bucket    string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region    string `json:"s3_region" yaml:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Prefix    string `json:"s3_prefix" yaml:"s3_prefix"`

	HeartbeatTransport string `json:"heartbeat_transport" yaml:"heartbeat_transport"`
	MQTTBroker         string `json:"mqtt_broker" yaml:"mqtt_broker"`
	MQTTClientID       string `json:"mqtt_client_id" yaml:"mqtt_client_id"`
	MQTTUsername       string `json:"mqtt_username" yaml:"mqtt_username"`
	MQTTPassword       string `json:"mqtt_password" yaml:"mqtt_password"`
	MQTTTopic          string `json:"mqtt_topic" yaml:"mqtt_topic"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
	LogFile   string `json:"log_file" yaml:"log_file"`
}

func toFileConfig(c *Config) fileConfig {
	return fileConfig{
		DeviceID:           c.DeviceID,
		ServerURL:          c.ServerURL,
		CrateID:            c.CrateID,
		DBPath:             c.DBPath,
		ImageDir:           c.ImageDir,
		BurstSize:          c.BurstSize,
		CaptureInterval:    timex.Duration{Duration: c.CaptureInterval},
		HeartbeatInterval:  timex.Duration{Duration: c.HeartbeatInterval},
		SyncInterval:       timex.Duration{Duration: c.SyncInterval},
		CleanupInterval:    timex.Duration{Duration: c.CleanupInterval},
		RetentionDays:      c.RetentionDays,
		SyncBatchSize:      c.SyncBatchSize,
		CleanupBatchSize:   c.CleanupBatchSize,
		RequestTimeout:     timex.Duration{Duration: c.RequestTimeout},
		RetryBase:          timex.Duration{Duration: c.RetryBase},
		RetryMax:           timex.Duration{Duration: c.RetryMax},
		ShutdownTimeout:    timex.Duration{Duration: c.ShutdownTimeout},
		UploadRate:         c.UploadRate,
		CameraBackend:      c.CameraBackend,
		CameraCommand:      c.CameraCommand,
		CameraName:         c.CameraName,
		ImageWidth:         c.ImageWidth,
		ImageHeight:        c.ImageHeight,
		JPEGQuality:        c.JPEGQuality,
		SensorEnabled:      c.SensorEnabled,
		SensorBackend:      c.SensorBackend,
		SensorIIOPath:      c.SensorIIOPath,
		ImageSink:          c.ImageSink,
		S3Bucket:           c.S3Bucket,
		S3Region:           c.S3Region,
		S3Endpoint:         c.S3Endpoint,
		S3AccessKey:        c.S3AccessKey,
		S3SecretKey:        c.S3SecretKey,
		S3Prefix:           c.S3Prefix,
		HeartbeatTransport: c.HeartbeatTransport,
		MQTTBroker:         c.MQTTBroker,
		MQTTClientID:       c.MQTTClientID,
		MQTTUsername:       c.MQTTUsername,
		MQTTPassword:       c.MQTTPassword,
		MQTTTopic:          c.MQTTTopic,
		LogLevel:           c.LogLevel,
		LogFormat:          c.LogFormat,
		LogFile:            c.LogFile,
	}
}

func (fc fileConfig) apply(c *Config) {
	c.DeviceID, c.ServerURL, c.CrateID = fc.DeviceID, fc.ServerURL, fc.CrateID
	c.DBPath, c.ImageDir = fc.DBPath, fc.ImageDir

	c.BurstSize = fc.BurstSize
	c.CaptureInterval = fc.CaptureInterval.Duration
	c.HeartbeatInterval = fc.HeartbeatInterval.Duration
	c.SyncInterval = fc.SyncInterval.Duration
	c.CleanupInterval = fc.CleanupInterval.Duration
	c.RetentionDays = fc.RetentionDays
	c.SyncBatchSize = fc.SyncBatchSize
	c.CleanupBatchSize = fc.CleanupBatchSize

	c.RequestTimeout = fc.RequestTimeout.Duration
	c.RetryBase = fc.RetryBase.Duration
	c.RetryMax = fc.RetryMax.Duration
	c.ShutdownTimeout = fc.ShutdownTimeout.Duration
	c.UploadRate = fc.UploadRate

	c.CameraBackend, c.CameraCommand, c.CameraName = fc.CameraBackend, fc.CameraCommand, fc.CameraName
	c.ImageWidth, c.ImageHeight, c.JPEGQuality = fc.ImageWidth, fc.ImageHeight, fc.JPEGQuality

	c.SensorEnabled, c.SensorBackend, c.SensorIIOPath = fc.SensorEnabled, fc.SensorBackend, fc.SensorIIOPath

	c.ImageSink = fc.ImageSink
	c.S3Bucket, c.S3Region, c.S3Endpoint = fc.S3Bucket, fc.S3Region, fc.S3Endpoint
	c.S3AccessKey, c.S3SecretKey, c.S3Prefix = fc.S3AccessKey, fc.S3SecretKey, fc.S3Prefix

	c.HeartbeatTransport = fc.HeartbeatTransport
	c.MQTTBroker, c.MQTTClientID, c.MQTTTopic = fc.MQTTBroker, fc.MQTTClientID, fc.MQTTTopic
	c.MQTTUsername, c.MQTTPassword = fc.MQTTUsername, fc.MQTTPassword

	c.LogLevel, c.LogFormat, c.LogFile = fc.LogLevel, fc.LogFormat, fc.LogFile
}

// parseFile overlays cfg with values from the file named by -c/-config.
// No flag means no file and no changes.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	fc := toFileConfig(cfg)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}
