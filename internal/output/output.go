// Package output provides consistent CLI output: status lines, key/value
// pairs and in-place progress bars, styled through internal/ui.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/synapsense/synapsense/internal/ui"
)

// Status tags.
const (
	TagOK   = "[OK]"
	TagWarn = "[WARN]"
	TagErr  = "[ERR]"
	TagInfo = "[..]"
)

// Writer provides formatted output for CLI commands.
type Writer struct {
	out    io.Writer
	styles ui.Styles
	// Quiet suppresses everything but errors.
	Quiet bool
}

// New creates a Writer. Colour is used only when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return NewWithStyles(out, ui.GetStyles(!ui.ColorEnabled(out)))
}

// NewWithStyles creates a Writer with explicit styles.
func NewWithStyles(out io.Writer, styles ui.Styles) *Writer {
	return &Writer{out: out, styles: styles}
}

// Out returns the underlying writer.
func (w *Writer) Out() io.Writer {
	return w.out
}

// Styles returns the writer's styles.
func (w *Writer) Styles() ui.Styles {
	return w.styles
}

// Status prints a status message with a tag.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(tag, msg string) {
	if w.Quiet {
		return
	}
	w.status(tag, msg)
}

func (w *Writer) status(tag, msg string) {
	if tag != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", tag, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "     %s\n", msg)
	}
}

// Statusf prints a formatted status message.
func (w *Writer) Statusf(tag, format string, args ...any) {
	w.Status(tag, fmt.Sprintf(format, args...))
}

// Info prints an informational line.
func (w *Writer) Info(msg string) {
	w.Status(w.styles.Stage.Render(TagInfo), msg)
}

// Infof prints a formatted informational line.
func (w *Writer) Infof(format string, args ...any) {
	w.Info(fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render(TagOK), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render(TagWarn), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message, even when Quiet.
func (w *Writer) Error(msg string) {
	w.status(w.styles.Error.Render(TagErr), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a styled section header followed by a blank line.
func (w *Writer) Header(title string) {
	if w.Quiet {
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s\n\n", w.styles.Header.Render(title))
}

// KeyValue prints an aligned "label: value" line.
func (w *Writer) KeyValue(label, value string) {
	if w.Quiet {
		return
	}
	_, _ = fmt.Fprintf(w.out, "  %s %s\n",
		w.styles.Label.Render(fmt.Sprintf("%-14s", label+":")),
		w.styles.Value.Render(value))
}

// Code prints a block with indentation.
func (w *Writer) Code(content string) {
	if w.Quiet {
		return
	}
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	if w.Quiet {
		return
	}
	_, _ = fmt.Fprintln(w.out)
}

// Progress prints an in-place progress bar with message.
func (w *Writer) Progress(current, total int, msg string) {
	if w.Quiet || total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(float64(current)/float64(total), 30)
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)

	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// ByteProgress prints an in-place download progress line. A negative total
// prints only the running size.
func (w *Writer) ByteProgress(current, total int64) {
	if w.Quiet {
		return
	}
	if total <= 0 {
		_, _ = fmt.Fprintf(w.out, "\r%s", ui.FormatBytes(current))
		return
	}
	frac := float64(current) / float64(total)
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s / %s",
		renderProgressBar(frac, 30), frac*100, ui.FormatBytes(current), ui.FormatBytes(total))
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// ProgressDone completes a progress line with newline.
func (w *Writer) ProgressDone() {
	if w.Quiet {
		return
	}
	_, _ = fmt.Fprintln(w.out)
}

// renderProgressBar creates a text progress bar for a fraction in [0,1].
func renderProgressBar(frac float64, width int) string {
	filled := min(max(int(frac*float64(width)), 0), width)
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}
