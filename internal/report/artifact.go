package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"

	"github.com/hamed0406/sitewatch/internal/domain"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (want csv or xlsx)", raw)
}

var header = []string{"target", "uptime_percent", "downtime_seconds"}

// ArtifactName is the file name of the report for date, e.g. report_2024-01-01.csv.
func ArtifactName(date time.Time, f Format) string {
	return fmt.Sprintf("report_%s.%s", FormatDate(date), f)
}

func Encode(w io.Writer, rep domain.DailyReport, f Format) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, rep.Rows)
	case FormatXLSX:
		return writeXLSX(w, rep)
	}
	return fmt.Errorf("unknown report format %q", f)
}

func writeCSV(w io.Writer, rows []domain.DailyReportRow) error {
	c := csv.NewWriter(w)
	if err := c.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		err := c.Write([]string{
			string(r.Target),
			strconv.FormatFloat(r.UptimePercent, 'f', 2, 64),
			strconv.FormatInt(r.DowntimeSeconds, 10),
		})
		if err != nil {
			return err
		}
	}
	c.Flush()
	return c.Error()
}

func writeXLSX(w io.Writer, rep domain.DailyReport) (err error) {
	const sheet = "report"
	x := excelize.NewFile()
	defer func() { err = multierr.Append(err, x.Close()) }()

	if err := x.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	stamp := rep.Date.Format(time.RFC3339)
	if err := x.SetDocProps(&excelize.DocProperties{
		Created:  stamp,
		Modified: stamp,
		Creator:  "sitewatch",
		Title:    "Availability " + FormatDate(rep.Date),
	}); err != nil {
		return err
	}

	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := x.SetCellStr(sheet, cell, h); err != nil {
			return err
		}
	}
	pct := "0.00"
	style, err := x.NewStyle(&excelize.Style{CustomNumFmt: &pct})
	if err != nil {
		return err
	}
	for i, r := range rep.Rows {
		row := i + 2
		if err := x.SetCellStr(sheet, fmt.Sprintf("A%d", row), string(r.Target)); err != nil {
			return err
		}
		if err := x.SetCellFloat(sheet, fmt.Sprintf("B%d", row), r.UptimePercent, 2, 64); err != nil {
			return err
		}
		if err := x.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), style); err != nil {
			return err
		}
		if err := x.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.DowntimeSeconds); err != nil {
			return err
		}
	}
	if err := x.SetColWidth(sheet, "A", "A", 40); err != nil {
		return err
	}
	if err := x.SetColWidth(sheet, "B", "C", 18); err != nil {
		return err
	}
	return x.Write(w)
}

// writeAtomic encodes into a temp file next to path and renames it over
// path, so readers never observe a partial artifact.
func writeAtomic(path string, rep domain.DailyReport, f Format) (err error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rep, f); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(tmp.Name()))
		}
	}()

	if _, err = tmp.Write(buf.Bytes()); err != nil {
		return multierr.Append(fmt.Errorf("write report: %w", err), tmp.Close())
	}
	if err = tmp.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("sync report: %w", err), tmp.Close())
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
