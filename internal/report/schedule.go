package report

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// ScheduleDaily returns a stopped cron scheduler that writes the previous
// day's report at each activation of spec (standard 5-field cron syntax,
// evaluated in the engine's location). The caller starts and stops it.
func ScheduleDaily(ctx context.Context, spec string, e *Engine) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(e.loc))
	if _, err := c.AddFunc(spec, func() { e.WritePreviousDay(ctx) }); err != nil {
		return nil, fmt.Errorf("report schedule %q: %w", spec, err)
	}
	return c, nil
}
