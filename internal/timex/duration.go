// Package timex provides a time.Duration wrapper that can be decoded from
// configuration files.
//
// Accepted encodings (JSON and YAML):
//
//	"90s", "5m", "1h30m"   parsed with time.ParseDuration
//	60                     integer or float, interpreted as seconds
package timex

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that knows how to unmarshal itself.
type Duration struct {
	time.Duration
}

func parseAny(v any) (time.Duration, error) {
	switch val := v.(type) {
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", val, err)
		}
		return d, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	case int:
		return time.Duration(val) * time.Second, nil
	default:
		return 0, fmt.Errorf("invalid duration type %T", v)
	}
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := parseAny(v)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	parsed, err := parseAny(v)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
