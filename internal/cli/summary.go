package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	helpStyle  = lipgloss.NewStyle().Faint(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// printSummary writes the end-of-run summary block.
func printSummary(w io.Writer, s scheduler.ReportSummary) {
	duration := time.Duration(s.DurationSeconds * float64(time.Second)).Round(time.Millisecond)

	var b strings.Builder
	title := fmt.Sprintf("Run %s", s.RunID)
	if s.Quit {
		title += " (quit)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  files      %s of %s with %d workers in %s\n",
		humanize.Comma(int64(s.CompletedCount)), humanize.Comma(int64(s.TotalFiles)), s.PoolSize, duration)
	fmt.Fprintf(&b, "  outcome    %s  %s  %s  %s\n",
		okStyle.Render(fmt.Sprintf("%d completed", s.CompletedCount)),
		countStyle(s.FailedCount, errStyle).Render(fmt.Sprintf("%d failed", s.FailedCount)),
		countStyle(s.InterruptedCount, warnStyle).Render(fmt.Sprintf("%d interrupted", s.InterruptedCount)),
		countStyle(s.SkippedCount, warnStyle).Render(fmt.Sprintf("%d skipped", s.SkippedCount)),
	)
	fmt.Fprintf(&b, "  events     %s", humanize.Comma(s.EventsProcessed))
	if s.DurationSeconds > 0 {
		fmt.Fprintf(&b, " (%s/s)", humanize.CommafWithDigits(float64(s.EventsProcessed)/s.DurationSeconds, 1))
	}
	b.WriteString("\n")
	_, _ = io.WriteString(w, b.String())
}

func countStyle(n int, style lipgloss.Style) lipgloss.Style {
	if n == 0 {
		return lipgloss.NewStyle()
	}
	return style
}

// --- progressLine ---

// progressLine is a single, carriage-return refreshed progress line. Calls are
// serialized by hooks.CLIHooks.
type progressLine struct {
	w     io.Writer
	total int
	done  int
	label string
}

func newProgressLine(w io.Writer, total int) *progressLine {
	return &progressLine{w: w, total: total, label: "files"}
}

// Add implements hooks.ProgressBar.
func (p *progressLine) Add(num int) error {
	p.done += num
	_, err := fmt.Fprintf(p.w, "\r%s %d/%d", p.label, p.done, p.total)
	return err
}

// Describe implements hooks.ProgressBar.
func (p *progressLine) Describe(description string) error {
	p.label = description
	return nil
}

// Close implements hooks.ProgressBar.
func (p *progressLine) Close() error {
	if p.done == 0 {
		return nil
	}
	_, err := fmt.Fprintln(p.w)
	return err
}
