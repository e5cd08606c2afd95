// Package agent wires the edge agent together and supervises its loops:
// capture, sync, heartbeat and retention run independently over one shared
// store, and shut down in order on SIGINT/SIGTERM.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/client"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/devices/camera"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/devices/sensors"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/services"
	"github.com/dmitrijs2005/edgekeeper/internal/agent/store"
	"github.com/dmitrijs2005/edgekeeper/internal/backoff"
	"github.com/dmitrijs2005/edgekeeper/internal/buildinfo"
	"github.com/dmitrijs2005/edgekeeper/internal/config"
	"github.com/dmitrijs2005/edgekeeper/internal/logging"
	"github.com/dmitrijs2005/edgekeeper/internal/mqttx"
)

type loop struct {
	worker   services.Worker
	interval time.Duration
}

type App struct {
	config    *config.Config
	logger    logging.Logger
	logCloser io.Closer
	store     *store.Store
	mqtt      *mqttx.Client
	loops     []loop
}

// NewApp builds every component from c. Failing to open the store is fatal:
// the agent has no business running without durable storage.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser, err := logging.New(os.Stdout, logging.Options{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		File:   c.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{
		config:    c,
		logger:    logger.With("device_id", c.DeviceID),
		logCloser: logCloser,
	}

	if err := app.init(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	st, err := store.Open(ctx, store.Options{
		Path:       c.DBPath,
		DeviceID:   c.DeviceID,
		Backoff:    backoff.Policy{Base: c.RetryBase, Max: c.RetryMax},
		StaleAfter: 3 * c.RequestTimeout,
		Logger:     app.logger,
	})
	if err != nil {
		return fmt.Errorf("store init error: %w", err)
	}
	app.store = st

	cam, err := camera.New(c)
	if err != nil {
		return err
	}
	sensor, err := sensors.New(c)
	if err != nil {
		return err
	}

	api := client.NewHTTPClient(c.ServerURL, c.DeviceID, c.RequestTimeout)

	var images services.ImageUploader = api
	if c.ImageSink == config.SinkS3 {
		images, err = client.NewS3Uploader(ctx, client.S3Options{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Prefix:    c.S3Prefix,
			DeviceID:  c.DeviceID,
		})
		if err != nil {
			return fmt.Errorf("s3 init error: %w", err)
		}
	}

	var beacon services.Beacon = api
	if c.HeartbeatTransport == config.TransportMQTT {
		clientID := c.MQTTClientID
		if clientID == "" {
			clientID = c.DeviceID
		}
		app.mqtt = mqttx.NewClient(mqttx.Config{
			Broker:         c.MQTTBroker,
			ClientID:       clientID,
			Username:       c.MQTTUsername,
			Password:       c.MQTTPassword,
			CleanSession:   true,
			KeepAlive:      c.HeartbeatInterval * 2,
			ConnectTimeout: c.RequestTimeout,
		}, app.logger)
		beacon = client.NewMQTTBeacon(app.mqtt, c.HeartbeatTopic())
	}

	stats := services.NewStats(time.Now().UTC())

	app.loops = []loop{
		{
			worker: services.NewCaptureService(st, cam, sensor, services.CaptureOptions{
				BurstSize:  c.BurstSize,
				ImageDir:   c.ImageDir,
				CrateID:    c.CrateID,
				CameraName: c.CameraName,
			}, stats, app.logger),
			interval: c.CaptureInterval,
		},
		{
			worker: services.NewHeartbeatService(beacon, c.DeviceID, buildinfo.Version(), c.RequestTimeout, stats, app.logger),
			interval: c.HeartbeatInterval,
		},
		{
			worker: services.NewSyncService(st, api, images, services.SyncOptions{
				BatchSize:      c.SyncBatchSize,
				RequestTimeout: c.RequestTimeout,
				UploadRate:     c.UploadRate,
			}, stats, app.logger),
			interval: c.SyncInterval,
		},
		{
			worker: services.NewRetentionService(st, services.RetentionOptions{
				Retention: c.Retention(),
				BatchSize: c.CleanupBatchSize,
			}, app.logger),
			interval: c.CleanupInterval,
		},
	}
	return nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run starts the loops and blocks until ctx is cancelled or a termination
// signal arrives. Loops finish their current tick; Run waits for them up to
// ShutdownTimeout and then closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting agent...", "version", buildinfo.Version(), "db", app.config.DBPath)

	app.initSignalHandler(ctx, cancelFunc)

	var wg conc.WaitGroup
	for _, l := range app.loops {
		wg.Go(func() {
			services.Run(ctx, l.worker, l.interval, app.logger)
		})
	}

	<-ctx.Done()
	app.logger.Info(context.Background(), "stopping agent, waiting for loops")

	stopped := make(chan error, 1)
	go func() {
		if r := wg.WaitAndRecover(); r != nil {
			stopped <- r.AsError()
			return
		}
		stopped <- nil
	}()

	var err error
	select {
	case err = <-stopped:
	case <-time.After(app.config.ShutdownTimeout):
		err = fmt.Errorf("loops still running after %s", app.config.ShutdownTimeout)
	}
	if err != nil {
		app.logger.Error(context.Background(), "unclean shutdown", "error", err)
	}

	return errors.Join(err, app.close())
}

func (app *App) close() error {
	var errs []error
	if app.mqtt != nil {
		app.mqtt.Disconnect()
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		app.store = nil
	}
	app.logger.Info(context.Background(), "agent stopped")
	if app.logCloser != nil {
		if err := app.logCloser.Close(); err != nil {
			errs = append(errs, err)
		}
		app.logCloser = nil
	}
	return errors.Join(errs...)
}
