// Package mqttx wraps the paho MQTT client with context-aware token waits
// and the agent's logger.
package mqttx

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dmitrijs2005/edgekeeper/internal/logging"
)

type Config struct {
	Broker               string
	ClientID             string
	Username             string
	Password             string
	CleanSession         bool
	KeepAlive            time.Duration
	ConnectTimeout       time.Duration
	MaxReconnectInterval time.Duration
}

// newPahoClient is replaced in tests.
var newPahoClient = mqtt.NewClient

type Client struct {
	client mqtt.Client
	config Config
	logger logging.Logger
}

func NewClient(config Config, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop{}
	}
	logger = logger.With("module", "mqtt", "broker", config.Broker)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetCleanSession(config.CleanSession)
	if config.KeepAlive > 0 {
		opts.SetKeepAlive(config.KeepAlive)
	}
	if config.ConnectTimeout > 0 {
		opts.SetConnectTimeout(config.ConnectTimeout)
	}
	opts.SetAutoReconnect(true)
	if config.MaxReconnectInterval > 0 {
		opts.SetMaxReconnectInterval(config.MaxReconnectInterval)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info(context.Background(), "mqtt client connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn(context.Background(), "mqtt connection lost", "error", err)
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		logger.Debug(context.Background(), "reconnecting to mqtt broker")
	})

	return &Client{
		client: newPahoClient(opts),
		config: config,
		logger: logger,
	}
}

// Connect establishes a connection to the broker.
func (c *Client) Connect(ctx context.Context) error {
	if err := wait(ctx, c.client.Connect()); err != nil {
		return fmt.Errorf("connect to mqtt broker %s: %w", c.config.Broker, err)
	}
	return nil
}

// Publish sends payload and waits for the broker's acknowledgement
// according to qos.
func (c *Client) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if err := wait(ctx, c.client.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect gives in-flight work 250ms to complete.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	c.logger.Info(context.Background(), "disconnected from mqtt broker")
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
