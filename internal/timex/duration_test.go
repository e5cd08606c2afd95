package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", in: `"90s"`, want: 90 * time.Second},
		{name: "compound string", in: `"1h30m"`, want: 90 * time.Minute},
		{name: "integer seconds", in: `60`, want: time.Minute},
		{name: "fractional seconds", in: `1.5`, want: 1500 * time.Millisecond},
		{name: "garbage string", in: `"soon"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var cfg struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 2m\nb: 3600\n"), &cfg))
	assert.Equal(t, 2*time.Minute, cfg.A.Duration)
	assert.Equal(t, time.Hour, cfg.B.Duration)

	require.Error(t, yaml.Unmarshal([]byte("a: [1, 2]\n"), &cfg))
}

func TestDuration_MarshalJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 45 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"45s"`, string(b))
}
