package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/report"
)

type fakeReports struct {
	dir   string
	calls []time.Time
	err   error
}

func (f *fakeReports) Location() *time.Location { return time.UTC }

func (f *fakeReports) WriteReport(_ context.Context, day time.Time) (string, domain.DailyReport, error) {
	f.calls = append(f.calls, day)
	if f.err != nil {
		return "", domain.DailyReport{}, f.err
	}
	path := filepath.Join(f.dir, report.ArtifactName(day, report.FormatCSV))
	if err := os.WriteFile(path, []byte("target,uptime_percent,downtime_seconds\n"), 0o644); err != nil {
		return "", domain.DailyReport{}, err
	}
	return path, domain.DailyReport{Date: day, Rows: []domain.DailyReportRow{
		{Target: "https://a.example/", UptimePercent: 97.92, DowntimeSeconds: 1800},
	}}, nil
}

func newConsole(in string, reports ReportWriter) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	c := New(strings.NewReader(in), &out, reports, nil)
	c.now = func() time.Time { return time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC) }
	return c, &out
}

func TestRun_ReportWithDate(t *testing.T) {
	f := &fakeReports{dir: t.TempDir()}
	c, out := newConsole("REPORT 2024-01-01\n", f)

	require.NoError(t, c.Run(context.Background()))
	require.Equal(t, []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, f.calls)
	require.Contains(t, out.String(), "report_2024-01-01.csv (1 targets, 39 B)")
	require.Contains(t, out.String(), "97.92%")
	require.Contains(t, out.String(), "30m0s")
	require.NotContains(t, out.String(), "> ", "no prompt when input is not a terminal")
}

func TestRun_ReportDefaultsToToday(t *testing.T) {
	f := &fakeReports{dir: t.TempDir()}
	c, _ := newConsole("report\n", f)
	require.NoError(t, c.Run(context.Background()))
	require.Equal(t, []time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}, f.calls)
}

func TestRun_NoDataAndFailure(t *testing.T) {
	f := &fakeReports{err: fmt.Errorf("report 2024-01-01: %w", report.ErrNoData)}
	c, out := newConsole("report 2024-01-01\n", f)
	require.NoError(t, c.Run(context.Background()))
	require.Contains(t, out.String(), "no data for 2024-01-01")

	f = &fakeReports{err: errors.New("disk full")}
	c, out = newConsole("report 2024-01-01\n", f)
	require.NoError(t, c.Run(context.Background()))
	require.Contains(t, out.String(), "report failed: disk full")
}

func TestRun_BadDateDoesNotCallEngine(t *testing.T) {
	f := &fakeReports{dir: t.TempDir()}
	c, out := newConsole("report 01.01.2024\n", f)
	require.NoError(t, c.Run(context.Background()))
	require.Empty(t, f.calls)
	require.Contains(t, out.String(), "invalid date")
}

func TestRun_ExitStopsReading(t *testing.T) {
	f := &fakeReports{dir: t.TempDir()}
	c, out := newConsole("help\n\nQuit\nreport\n", f)
	require.ErrorIs(t, c.Run(context.Background()), ErrExit)
	require.Empty(t, f.calls, "commands after exit are not read")
	require.Contains(t, out.String(), "commands:")
}

func TestExec_Unknown(t *testing.T) {
	c, out := newConsole("", &fakeReports{})
	require.NoError(t, c.Exec(context.Background(), "frobnicate"))
	require.Contains(t, out.String(), `unknown command "frobnicate"`)
}
