// Package interact renders CLI output: a small styled printer for command
// results and a terminal spinner for long-running steps.
package interact

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Bold(true)
)

// Printer writes human-facing command output. It is a value type; copy it
// freely.
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) Printer {
	return Printer{w: w}
}

func (p Printer) Println(s string) {
	fmt.Fprintln(p.w, s)
}

func (p Printer) Newline() {
	fmt.Fprintln(p.w)
}

// Prompt writes s without a trailing newline so input lands on the same
// line.
func (p Printer) Prompt(s string) {
	fmt.Fprint(p.w, s)
}

func (p Printer) Success(s string) {
	fmt.Fprintln(p.w, successStyle.Render("✓")+" "+s)
}

func (p Printer) Warn(s string) {
	fmt.Fprintln(p.w, warnStyle.Render("!")+" "+s)
}

func (p Printer) Info(s string) {
	fmt.Fprintln(p.w, infoStyle.Render("•")+" "+s)
}

func (p Printer) Muted(s string) {
	fmt.Fprintln(p.w, mutedStyle.Render(s))
}

// KeyValue prints an aligned "Key: value" detail row.
func (p Printer) KeyValue(key, value string) {
	fmt.Fprintf(p.w, "  %s %s\n", keyStyle.Render(fmt.Sprintf("%-12s", key+":")), value)
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a progress message on stderr until stopped. Run Start
// in its own goroutine and always call Stop.
type Spinner struct {
	mu   sync.Mutex
	msg  string
	w    io.Writer
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewSpinner(msg string) *Spinner {
	return &Spinner{
		msg:  msg,
		w:    os.Stderr,
		done: make(chan struct{}),
	}
}

// SetMessage swaps the message shown next to the spinner frame. Safe to
// call while the spinner runs.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.msg = msg
	s.mu.Unlock()
}

func (s *Spinner) message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msg
}

func (s *Spinner) Start(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			fmt.Fprintf(s.w, "\r%s %s", mutedStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), s.message())
			frame++
		}
	}
}

// Stop ends the animation and clears the spinner line. Safe to call more
// than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	fmt.Fprint(s.w, "\r\033[K")
}