package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidStatus = errors.New("invalid status")

type TargetID string

// Status is the outcome of a single probe. The zero value is not a valid status.
type Status int

const (
	StatusAvailable Status = iota + 1
	StatusUnavailable
	StatusError
)

func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusUnavailable || s == StatusError
}

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusUnavailable:
		return "unavailable"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "available":
		return StatusAvailable, nil
	case "unavailable":
		return StatusUnavailable, nil
	case "error":
		return StatusError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// TransitionEvent marks the instant a target's status changed.
type TransitionEvent struct {
	Target     TargetID  `json:"target"`
	ObservedAt time.Time `json:"observed_at"`
	Status     Status    `json:"status"`
}

func (e TransitionEvent) Validate() error {
	switch {
	case e.Target == "":
		return errors.New("event: empty target")
	case e.ObservedAt.IsZero():
		return errors.New("event: zero timestamp")
	case !e.Status.Valid():
		return fmt.Errorf("event: %w: %d", ErrInvalidStatus, int(e.Status))
	}
	return nil
}

type DailyReportRow struct {
	Target          TargetID `json:"target"`
	UptimePercent   float64  `json:"uptime_percent"`
	DowntimeSeconds int64    `json:"downtime_seconds"`
}

// DailyReport covers one local calendar day. Date is midnight of that day.
type DailyReport struct {
	Date time.Time        `json:"date"`
	Rows []DailyReportRow `json:"rows"`
}
