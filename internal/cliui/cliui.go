// Package cliui provides the presentation layer shared by cmd/fppc-corpus's
// subcommands: colored section headers, spinners for indeterminate waits,
// single-stage progress bars for the Binary Fetcher and Text Extractor, and
// multi-bar concurrent progress for the Fidelity Verifier's worker pool.
// Grounded on cmd/orchestrator/ui from the same monorepo as the teacher
// (briandowns/spinner + fatih/color + schollz/progressbar/v3 for the
// single-bar cases), extended with vbauerster/mpb/v8 for the Verifier's
// concurrent per-worker bars, which cmd/orchestrator/ui has no equivalent
// for.
package cliui

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var (
	noColorFlag bool
	verboseFlag bool
)

// Init configures global color/verbosity state for the lifetime of one CLI
// invocation. Called once from each subcommand's RunE before any other
// cliui function.
func Init(noColor, verbose bool) {
	noColorFlag = noColor
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether the current invocation asked for verbose output.
func Verbose() bool {
	return verboseFlag
}

// Close is a no-op placeholder kept symmetrical with Init, for subcommands
// that defer cliui.Close() the way they defer other resource cleanups.
func Close() {}

// Section prints an underlined section header.
func Section(title string) {
	heading := color.New(color.Bold, color.FgCyan).SprintFunc()
	fmt.Fprintf(os.Stdout, "\n%s\n%s\n\n", heading(title), strings.Repeat("-", len(title)))
}

// Info prints an informational line prefixed with an info marker.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.CyanString("i"), fmt.Sprintf(format, args...))
}

// Success prints a success line prefixed with a checkmark.
func Success(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

// Warning prints a warning line prefixed with a warning marker.
func Warning(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, "%s %s\n", color.YellowString("!"), fmt.Sprintf(format, args...))
}

// Error prints an error line to stderr prefixed with a failure marker.
func Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), fmt.Sprintf(format, args...))
}

// Table renders headers and rows as an aligned, tab-separated table.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	sep := make([]string, len(headers))
	for i, h := range headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// KeyValue prints one indented "key: value" line, used for stats summaries.
func KeyValue(key string, value interface{}) {
	fmt.Fprintf(os.Stdout, "  %s: %v\n", key, value)
}

// FormatDuration renders a duration as "XhYmZs", dropping leading zero units.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// Spinner wraps briandowns/spinner for indeterminate waits (DNS lookups,
// crawler page fetches where the total page count is unknown up front).
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner builds a stopped spinner with the given suffix message.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{s: s}
}

func (s *Spinner) Start() { s.s.Start() }
func (s *Spinner) Stop()  { s.s.Stop() }

// UpdateMessage changes the spinner's suffix while it runs.
func (s *Spinner) UpdateMessage(message string) {
	s.s.Suffix = " " + message
}

// ProgressBar wraps schollz/progressbar/v3 for single-stage, known-total
// work: the Binary Fetcher downloading N PDFs, the Text Extractor processing
// N pending documents.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar builds a progress bar over total items with a description.
func NewProgressBar(total int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar}
}

// Add advances the bar by delta (usually 1 per completed item).
func (p *ProgressBar) Add(delta int) { _ = p.bar.Add(delta) }

// Finish completes the bar and emits the trailing newline.
func (p *ProgressBar) Finish() { _ = p.bar.Finish() }
