package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "agent.yaml", "-d", "edge-7"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c", "agent.yaml"},
		},
		{
			name:         "long flag with equals",
			args:         []string{"--config=alt.json", "-d", "edge-7"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "flag without value at end is kept",
			args:         []string{"-c"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "dash-prefixed token is not a value",
			args:         []string{"-c", "-n", "5"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "equals inside value",
			args:         []string{"-a=http://h/api?x=1"},
			allowedFlags: []string{"-a"},
			want:         []string{"-a=http://h/api?x=1"},
		},
		{
			name:         "several allowed flags keep order",
			args:         []string{"-n", "5", "-q", "-d", "edge-1", "-r", "30"},
			allowedFlags: []string{"-d", "-n", "-r"},
			want:         []string{"-n", "5", "-d", "edge-1", "-r", "30"},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigFile(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		assert.Equal(t, "/etc/edge/agent.yaml", ConfigFile([]string{"-c", "/etc/edge/agent.yaml"}))
	})

	t.Run("long", func(t *testing.T) {
		assert.Equal(t, "agent.json", ConfigFile([]string{"-d", "x", "-config", "agent.json"}))
	})

	t.Run("absent", func(t *testing.T) {
		assert.Empty(t, ConfigFile([]string{"-d", "edge-1"}))
	})

	t.Run("last wins", func(t *testing.T) {
		assert.Equal(t, "two.yaml", ConfigFile([]string{"-c", "one.yaml", "-config", "two.yaml"}))
	})
}
