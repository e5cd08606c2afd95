package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
)

// publisher is the part of mqttx.Client the beacon needs.
type publisher interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

// MQTTBeacon publishes heartbeats to a broker topic with QoS 1.
type MQTTBeacon struct {
	pub   publisher
	topic string
}

func NewMQTTBeacon(pub publisher, topic string) *MQTTBeacon {
	return &MQTTBeacon{pub: pub, topic: topic}
}

// SendHeartbeat connects on first use; paho reconnects on its own after that.
func (b *MQTTBeacon) SendHeartbeat(ctx context.Context, hb models.Heartbeat) error {
	if !b.pub.IsConnected() {
		if err := b.pub.Connect(ctx); err != nil {
			return fmt.Errorf("%w: %w", common.ErrNetwork, err)
		}
	}

	payload, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}

	if err := b.pub.Publish(ctx, b.topic, 1, false, payload); err != nil {
		return fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	return nil
}
