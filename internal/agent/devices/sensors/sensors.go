// Package sensors provides the environmental sensor backends.
package sensors

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/config"
)

const (
	TypeTemperature = "temperature"
	TypeHumidity    = "humidity"

	UnitCelsius = "C"
	UnitPercent = "%"
)

// Sensor reads the current values of every channel it has. A partial result
// comes back together with the error for the missing channels.
type Sensor interface {
	Read(ctx context.Context) ([]models.SensorSample, error)
}

// New builds the backend named by cfg.SensorBackend. It returns nil when
// sensors are disabled.
func New(cfg *config.Config) (Sensor, error) {
	if !cfg.SensorEnabled {
		return nil, nil
	}
	switch cfg.SensorBackend {
	case config.SensorMock:
		return NewMock(), nil
	case config.SensorIIO:
		return NewIIO(cfg.SensorIIOPath), nil
	default:
		return nil, fmt.Errorf("unknown sensor backend %q", cfg.SensorBackend)
	}
}
