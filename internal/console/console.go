// Package console reads operator commands from a line-oriented stream.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/report"
)

// ErrExit is returned by Run when the operator asks to stop the process.
var ErrExit = errors.New("exit requested")

const helpText = `commands:
  report [YYYY-MM-DD]  write the report for a day (default today)
  help                 show this message
  exit, quit           stop monitoring
`

type ReportWriter interface {
	WriteReport(ctx context.Context, day time.Time) (string, domain.DailyReport, error)
	Location() *time.Location
}

type Console struct {
	in      io.Reader
	out     io.Writer
	reports ReportWriter
	log     *zap.Logger
	prompt  bool
	now     func() time.Time
}

func New(in io.Reader, out io.Writer, reports ReportWriter, log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Console{in: in, out: out, reports: reports, log: log, now: time.Now}
	if f, ok := in.(*os.File); ok {
		c.prompt = IsTerminal(f)
	}
	return c
}

func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Run handles commands until EOF (returns nil) or exit (returns ErrExit).
// It does not watch ctx while blocked on input; ctx only bounds the work
// each command does.
func (c *Console) Run(ctx context.Context) error {
	sc := bufio.NewScanner(c.in)
	for {
		if c.prompt {
			fmt.Fprint(c.out, "> ")
		}
		if !sc.Scan() {
			return sc.Err()
		}
		if err := c.Exec(ctx, sc.Text()); err != nil {
			return err
		}
	}
}

// Exec runs a single command line. Only ErrExit is returned; command
// failures are reported on the output.
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "exit", "quit":
		c.log.Info("console_exit")
		return ErrExit
	case "help", "?":
		fmt.Fprint(c.out, helpText)
	case "report":
		var arg string
		if len(fields) > 1 {
			arg = fields[1]
		}
		c.report(ctx, arg)
	default:
		fmt.Fprintf(c.out, "unknown command %q, try help\n", fields[0])
	}
	return nil
}

func (c *Console) report(ctx context.Context, arg string) {
	day, err := report.ParseDate(arg, c.now(), c.reports.Location())
	if err != nil {
		fmt.Fprintln(c.out, err)
		return
	}
	path, rep, err := c.reports.WriteReport(ctx, day)
	switch {
	case errors.Is(err, report.ErrNoData):
		fmt.Fprintf(c.out, "no data for %s\n", report.FormatDate(day))
		return
	case err != nil:
		fmt.Fprintf(c.out, "report failed: %v\n", err)
		return
	}

	size := "?"
	if fi, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	fmt.Fprintf(c.out, "report written to %s (%d targets, %s)\n", path, len(rep.Rows), size)

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tUPTIME\tDOWNTIME")
	for _, r := range rep.Rows {
		fmt.Fprintf(tw, "%s\t%s%%\t%s\n",
			r.Target,
			strconv.FormatFloat(r.UptimePercent, 'f', 2, 64),
			time.Duration(r.DowntimeSeconds)*time.Second)
	}
	_ = tw.Flush()
}
