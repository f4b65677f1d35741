package models

import (
	"fmt"
	"time"
)

const (
	// TimestampFormat is advertised on the wire in strftime notation.
	TimestampFormat = "%Y-%m-%d_%H:%M:%S"
	// TimestampLayout is TimestampFormat as a Go time layout.
	TimestampLayout = "2006-01-02_15:04:05"
)

// Envelope holds the fields shared by every step response and by each step
// detail.
type Envelope struct {
	TimestampFormat string `json:"TIMESTAMP_FORMAT"`
	Status          bool   `json:"status"`
	Message         string `json:"message"`
	StartTime       string `json:"starttime"`
	EndTime         string `json:"endtime"`
}

func Stamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func NewEnvelope(status bool, message string, start, end time.Time) Envelope {
	return Envelope{
		TimestampFormat: TimestampFormat,
		Status:          status,
		Message:         message,
		StartTime:       Stamp(start),
		EndTime:         Stamp(end),
	}
}

// Elapsed is the time between StartTime and EndTime at one second resolution.
func (e Envelope) Elapsed() (time.Duration, error) {
	start, err := time.Parse(TimestampLayout, e.StartTime)
	if err != nil {
		return 0, fmt.Errorf("parsing starttime: %w", err)
	}
	end, err := time.Parse(TimestampLayout, e.EndTime)
	if err != nil {
		return 0, fmt.Errorf("parsing endtime: %w", err)
	}
	return end.Sub(start), nil
}
