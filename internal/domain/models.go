package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hamed0406/pingmonitor/internal/clock"
)

// Outcome classifies a probe.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failed"
)

// ParseOutcome accepts the wire values plus "failure" as an alias.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case string(Success):
		return Success, nil
	case string(Failure), "failure":
		return Failure, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

var ErrInvalidResult = errors.New("latency must be set if and only if status is success")

// ProbeResult is one persisted probe outcome. ID and Timestamp are assigned by
// the store on Append; Timestamp is already in the configured local zone.
type ProbeResult struct {
	ID        int64
	Timestamp time.Time
	LatencyMS *float64
	Status    Outcome
}

// NewSuccess builds a success result with latency rounded to 2 decimals.
func NewSuccess(latency time.Duration) ProbeResult {
	ms := RoundLatency(latency)
	return ProbeResult{Status: Success, LatencyMS: &ms}
}

// NewFailure builds a failure result; failures never carry latency.
func NewFailure() ProbeResult {
	return ProbeResult{Status: Failure}
}

// RoundLatency converts d to milliseconds with two decimals. The result is
// always positive: a handshake faster than 5µs is reported as 0.01.
func RoundLatency(d time.Duration) float64 {
	ms := math.Round(float64(d)/float64(time.Millisecond)*100) / 100
	if ms < 0.01 {
		ms = 0.01
	}
	return ms
}

// Validate enforces latency ⇔ success.
func (r ProbeResult) Validate() error {
	switch r.Status {
	case Success:
		if r.LatencyMS == nil || *r.LatencyMS <= 0 {
			return ErrInvalidResult
		}
	case Failure:
		if r.LatencyMS != nil {
			return ErrInvalidResult
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidResult, r.Status)
	}
	return nil
}

type probeResultJSON struct {
	ID        int64    `json:"id"`
	Timestamp string   `json:"timestamp"`
	PingTime  *float64 `json:"ping_time"`
	Status    Outcome  `json:"status"`
}

// MarshalJSON renders the dashboard shape; the timestamp keeps the zone the
// store assigned.
func (r ProbeResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(probeResultJSON{
		ID:        r.ID,
		Timestamp: r.Timestamp.Format(clock.DisplayLayout),
		PingTime:  r.LatencyMS,
		Status:    r.Status,
	})
}

// UnmarshalJSON reads the dashboard shape back, interpreting the timestamp in
// the process zone.
func (r *ProbeResult) UnmarshalJSON(b []byte) error {
	var raw probeResultJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ts, err := time.ParseInLocation(clock.DisplayLayout, raw.Timestamp, time.Local)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	*r = ProbeResult{ID: raw.ID, Timestamp: ts, LatencyMS: raw.PingTime, Status: raw.Status}
	return nil
}

// StreakState is the Failure Tracker's view of consecutive failures.
type StreakState struct {
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastNotification    *time.Time `json:"last_notification"`
}
