// Package console is the operator's terminal: leveled output and a line
// editor that keeps the prompt intact while messages arrive.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

type Level int

const (
	LevelPrint Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSuccess
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	default:
		return "print"
	}
}

// ParseLevel maps the script commands print/info/warn/error/success to a Level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "print":
		return LevelPrint, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "success":
		return LevelSuccess, true
	}
	return LevelPrint, false
}

var prefixes = map[Level]string{
	LevelInfo:    "[INFO]",
	LevelWarn:    "[WARN]",
	LevelError:   "[ERROR]",
	LevelSuccess: "[OK]",
}

// Prompt is the input line the printer has to step around.
type Prompt interface {
	// Hide returns the bytes that erase the visible input line.
	Hide() string
	// Show returns the bytes that draw it again.
	Show() string
}

// Sink observes every printed message, e.g. for a transcript.
type Sink func(level Level, text string)

type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	styles map[Level]lipgloss.Style
	render *lipgloss.Renderer
	prompt Prompt
	sink   Sink
	crlf   bool
}

func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:    out,
		render: r,
		styles: map[Level]lipgloss.Style{
			LevelInfo:    r.NewStyle().Foreground(lipgloss.Color("#2196F3")).Bold(true),
			LevelWarn:    r.NewStyle().Foreground(lipgloss.Color("#FFC107")).Bold(true),
			LevelError:   r.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true),
			LevelSuccess: r.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true),
		},
	}
}

// Ghost returns a style function for completion suggestions in color.
func (p *Printer) Ghost(color string) func(string) string {
	st := p.render.NewStyle().Foreground(lipgloss.Color(color))
	return func(s string) string { return st.Render(s) }
}

func (p *Printer) SetPrompt(pr Prompt) {
	p.mu.Lock()
	p.prompt = pr
	p.mu.Unlock()
}

func (p *Printer) SetSink(s Sink) {
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
}

// SetRaw switches line endings to CRLF while the terminal is in raw mode.
func (p *Printer) SetRaw(raw bool) {
	p.mu.Lock()
	p.crlf = raw
	p.mu.Unlock()
}

// Log writes msg at level. Lines after the first are indented under the prefix.
func (p *Printer) Log(level Level, msg string) {
	msg = strings.TrimRight(msg, "\n")
	prefix := prefixes[level]

	var b strings.Builder
	nl := "\n"
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.crlf {
		nl = "\r\n"
	}
	if p.prompt != nil {
		b.WriteString(p.prompt.Hide())
	}
	indent := ""
	if prefix != "" {
		indent = strings.Repeat(" ", len(prefix)+1)
	}
	for i, line := range strings.Split(msg, "\n") {
		switch {
		case i == 0 && prefix != "":
			b.WriteString(p.styles[level].Render(prefix))
			b.WriteByte(' ')
		case i > 0:
			b.WriteString(indent)
		}
		b.WriteString(line)
		b.WriteString(nl)
	}
	if p.prompt != nil {
		b.WriteString(p.prompt.Show())
	}
	_, _ = io.WriteString(p.out, b.String())
	if p.sink != nil {
		p.sink(level, msg)
	}
}

func (p *Printer) Print(msg string)                    { p.Log(LevelPrint, msg) }
func (p *Printer) Printf(format string, args ...any)   { p.Log(LevelPrint, fmt.Sprintf(format, args...)) }
func (p *Printer) Infof(format string, args ...any)    { p.Log(LevelInfo, fmt.Sprintf(format, args...)) }
func (p *Printer) Warnf(format string, args ...any)    { p.Log(LevelWarn, fmt.Sprintf(format, args...)) }
func (p *Printer) Errorf(format string, args ...any)   { p.Log(LevelError, fmt.Sprintf(format, args...)) }
func (p *Printer) Successf(format string, args ...any) { p.Log(LevelSuccess, fmt.Sprintf(format, args...)) }

// Locked runs fn with exclusive access to the output.
func (p *Printer) Locked(fn func(w io.Writer)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.out)
}
