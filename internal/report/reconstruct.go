package report

import (
	"math"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// secondsPerDay is the fixed denominator for uptime, regardless of DST.
const secondsPerDay = 86400

// DowntimePolicy selects which statuses count as down. The zero value counts
// only StatusUnavailable; StatusError never opens or closes an interval.
type DowntimePolicy struct {
	CountErrorAsDown bool
}

func (p DowntimePolicy) isDown(s domain.Status) bool {
	return s == domain.StatusUnavailable || (p.CountErrorAsDown && s == domain.StatusError)
}

// Reconstruct turns one day's transition events (ordered by time) into one
// row per target, in order of each target's first event that day. A down
// interval opens at the first down event and closes at the next event of any
// other status; one still open at the end of the log closes at 23:59:59.
func Reconstruct(day time.Time, events []domain.TransitionEvent, policy DowntimePolicy) []domain.DailyReportRow {
	y, m, d := day.Date()
	dayEnd := time.Date(y, m, d, 23, 59, 59, 0, day.Location())

	type acc struct {
		downtime  time.Duration
		downStart *time.Time
	}
	order := make([]domain.TargetID, 0)
	byTarget := make(map[domain.TargetID]*acc)

	for _, e := range events {
		a := byTarget[e.Target]
		if a == nil {
			a = &acc{}
			byTarget[e.Target] = a
			order = append(order, e.Target)
		}
		down := policy.isDown(e.Status)
		switch {
		case down && a.downStart == nil:
			at := e.ObservedAt
			a.downStart = &at
		case !down && a.downStart != nil:
			a.downtime += e.ObservedAt.Sub(*a.downStart)
			a.downStart = nil
		}
	}

	rows := make([]domain.DailyReportRow, 0, len(order))
	for _, t := range order {
		a := byTarget[t]
		if a.downStart != nil {
			if tail := dayEnd.Sub(*a.downStart); tail > 0 {
				a.downtime += tail
			}
		}
		down := a.downtime.Seconds()
		rows = append(rows, domain.DailyReportRow{
			Target:          t,
			UptimePercent:   round2((secondsPerDay - down) / secondsPerDay * 100),
			DowntimeSeconds: int64(down),
		})
	}
	return rows
}

// round2 rounds half away from zero to two decimals.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
