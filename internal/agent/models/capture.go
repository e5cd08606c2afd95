package models

import "time"

// Frame is one image produced by a camera backend.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
	Width      int
	Height     int
	Format     string
}

// SensorSample is one value produced by a sensor backend.
type SensorSample struct {
	Type       string
	Value      float64
	Unit       string
	CapturedAt time.Time
}
