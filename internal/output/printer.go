package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/unisrv/unisrv-cli/internal/bootstream"
	"github.com/unisrv/unisrv-cli/internal/rollout"
)

var (
	stepStyle    = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Printer writes rollout and boot progress to the terminal. It implements
// rollout.Reporter and bootstream.Reporter.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// NewPrinter builds a Printer writing progress to err and payload output
// (stdout log lines) to out.
func NewPrinter(out, err io.Writer) *Printer {
	return &Printer{Out: out, Err: err}
}

// Phase announces a rollout phase change.
func (p *Printer) Phase(phase rollout.Phase, message string) {
	if phase == rollout.PhaseComplete {
		fmt.Fprintln(p.Err, successStyle.Render("✓ "+message))
		return
	}
	fmt.Fprintln(p.Err, stepStyle.Render("==> ")+message)
}

// Warn surfaces a non-fatal problem.
func (p *Printer) Warn(message string) {
	fmt.Fprintln(p.Err, warnStyle.Render("warning: "+message))
}

// BootState renders an instance lifecycle phase.
func (p *Printer) BootState(state bootstream.BootState) {
	var label string
	switch state {
	case bootstream.StateOnline:
		label = "Instance is online"
	case bootstream.StatePullingImage:
		label = "Pulling container image..."
	case bootstream.StateExecutingContainer:
		label = "Executing container..."
	default:
		label = string(state)
	}
	fmt.Fprintln(p.Err, dimStyle.Render("    "+label))
}

// BootLog renders one boot stream log line. Container stdout goes to Out so
// it can be piped; everything else is progress on Err.
func (p *Printer) BootLog(kind bootstream.EventKind, line string) {
	switch kind {
	case bootstream.KindStdout:
		fmt.Fprintln(p.Out, line)
	case bootstream.KindSystem:
		fmt.Fprintln(p.Err, dimStyle.Render("    [instance] "+line))
	default:
		fmt.Fprintln(p.Err, line)
	}
}
