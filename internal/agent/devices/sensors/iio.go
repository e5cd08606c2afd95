package sensors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/backoff"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
)

// readFile is replaced in tests.
var readFile = os.ReadFile

type channel struct {
	file  string
	typ   string
	unit  string
	scale float64
}

// Channels exposed by the kernel dht11 driver (used for DHT22 as well).
// Values are in milli-units.
var iioChannels = []channel{
	{file: "in_temp_input", typ: TypeTemperature, unit: UnitCelsius, scale: 1000},
	{file: "in_humidityrelative_input", typ: TypeHumidity, unit: UnitPercent, scale: 1000},
}

// IIO reads a sensor through the Linux Industrial I/O sysfs interface.
// DHT sensors often fail a read with EIO or ETIMEDOUT, so each channel is
// retried a few times.
type IIO struct {
	dir      string
	policy   backoff.Policy
	attempts int
	now      func() time.Time
}

func NewIIO(dir string) *IIO {
	return &IIO{
		dir:      dir,
		policy:   backoff.Policy{Base: 500 * time.Millisecond, Max: 2 * time.Second},
		attempts: 3,
		now:      time.Now,
	}
}

func (s *IIO) Read(ctx context.Context) ([]models.SensorSample, error) {
	var (
		samples []models.SensorSample
		errs    []error
	)

	for _, ch := range iioChannels {
		var v float64
		err := backoff.Retry(ctx, s.policy, s.attempts, func(context.Context) error {
			var err error
			v, err = s.readChannel(ch)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.typ, err))
			continue
		}
		samples = append(samples, models.SensorSample{
			Type:       ch.typ,
			Value:      v,
			Unit:       ch.unit,
			CapturedAt: s.now().UTC(),
		})
	}

	if len(errs) > 0 {
		return samples, fmt.Errorf("%w: read %s: %w", common.ErrCapture, s.dir, errors.Join(errs...))
	}
	return samples, nil
}

func (s *IIO) readChannel(ch channel) (float64, error) {
	raw, err := readFile(filepath.Join(s.dir, ch.file))
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", ch.file, err)
	}
	return n / ch.scale, nil
}
