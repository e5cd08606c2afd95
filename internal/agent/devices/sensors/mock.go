package sensors

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
)

// Mock reports plausible indoor values: 18-25 C and 40-70 %RH.
type Mock struct {
	now func() time.Time
}

func NewMock() *Mock {
	return &Mock{now: time.Now}
}

func (m *Mock) Read(context.Context) ([]models.SensorSample, error) {
	at := m.now().UTC()
	return []models.SensorSample{
		{Type: TypeTemperature, Value: uniform(18, 25), Unit: UnitCelsius, CapturedAt: at},
		{Type: TypeHumidity, Value: uniform(40, 70), Unit: UnitPercent, CapturedAt: at},
	}, nil
}

func uniform(lo, hi float64) float64 {
	v := lo + rand.Float64()*(hi-lo)
	return math.Round(v*100) / 100
}
