package sensors

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/backoff"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
	"github.com/dmitrijs2005/edgekeeper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	s, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, s)

	cfg.SensorBackend = config.SensorIIO
	s, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &IIO{}, s)

	cfg.SensorEnabled = false
	s, err = New(cfg)
	require.NoError(t, err)
	assert.Nil(t, s)

	cfg.SensorEnabled = true
	cfg.SensorBackend = "bme280"
	_, err = New(cfg)
	require.Error(t, err)
}

func TestMock_Ranges(t *testing.T) {
	m := NewMock()
	for i := 0; i < 200; i++ {
		got, err := m.Read(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, TypeTemperature, got[0].Type)
		assert.GreaterOrEqual(t, got[0].Value, 18.0)
		assert.LessOrEqual(t, got[0].Value, 25.0)

		assert.Equal(t, TypeHumidity, got[1].Type)
		assert.GreaterOrEqual(t, got[1].Value, 40.0)
		assert.LessOrEqual(t, got[1].Value, 70.0)
	}
}

func fastIIO(dir string) *IIO {
	s := NewIIO(dir)
	s.policy = backoff.Policy{Base: time.Millisecond, Max: time.Millisecond}
	return s
}

func TestIIO_Read(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_temp_input"), []byte("23500\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_humidityrelative_input"), []byte("55250\n"), 0o644))

	got, err := fastIIO(dir).Read(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 23.5, got[0].Value, 1e-9)
	assert.Equal(t, UnitCelsius, got[0].Unit)
	assert.InDelta(t, 55.25, got[1].Value, 1e-9)
}

func TestIIO_PartialRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_temp_input"), []byte("19000"), 0o644))

	got, err := fastIIO(dir).Read(context.Background())
	require.ErrorIs(t, err, common.ErrCapture)
	assert.Contains(t, err.Error(), TypeHumidity)
	require.Len(t, got, 1)
	assert.Equal(t, TypeTemperature, got[0].Type)
}

func TestIIO_RetriesTransientErrors(t *testing.T) {
	orig := readFile
	t.Cleanup(func() { readFile = orig })

	calls := map[string]int{}
	readFile = func(name string) ([]byte, error) {
		base := filepath.Base(name)
		calls[base]++
		if calls[base] < 3 {
			return nil, &os.PathError{Op: "read", Path: name, Err: syscall.EIO}
		}
		return []byte("21000"), nil
	}

	got, err := fastIIO("/sys/bus/iio/devices/iio:device0").Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 3, calls["in_temp_input"])
}

func TestIIO_GarbageIsNotRetried(t *testing.T) {
	orig := readFile
	t.Cleanup(func() { readFile = orig })

	calls := 0
	readFile = func(string) ([]byte, error) {
		calls++
		return []byte("n/a"), nil
	}

	got, err := fastIIO("/x").Read(context.Background())
	require.ErrorIs(t, err, common.ErrCapture)
	assert.Empty(t, got)
	assert.Equal(t, 2, calls)
}
