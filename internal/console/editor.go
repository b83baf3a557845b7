package console

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/term"

	"voxelcraft.ai/vcterm/internal/complete"
)

// ErrInterrupt is returned by ReadLine on Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

// Completer supplies the current candidate tree. It is called on every keystroke.
type Completer func() *complete.Node

type EditorOption func(*Editor)

func WithPrompt(prompt string) EditorOption {
	return func(e *Editor) { e.prompt = prompt }
}

// WithCompletion enables ghost suggestions drawn with style.
func WithCompletion(c Completer, opts complete.Options, style complete.Style) EditorOption {
	return func(e *Editor) {
		e.completer = c
		e.opts = opts
		e.redraw = complete.NewRedrawer(style)
	}
}

// WithHistory preloads up-arrow recall, oldest first.
func WithHistory(lines []string) EditorOption {
	return func(e *Editor) { e.history = append([]string(nil), lines...) }
}

// Editor reads operator lines. On a terminal it runs in raw mode and edits
// in place; otherwise it reads plain lines.
type Editor struct {
	p  *Printer
	in *bufio.Reader
	fd int

	interactive bool
	restore     *term.State
	closed      atomic.Bool

	prompt    string
	completer Completer
	opts      complete.Options
	redraw    *complete.Redrawer

	// guarded by p.mu
	buf     []rune
	shown   bool
	history []string
	histIdx int
	pending string
}

func NewEditor(p *Printer, in io.Reader, opts ...EditorOption) *Editor {
	e := &Editor{
		p:      p,
		in:     bufio.NewReader(in),
		fd:     -1,
		prompt: "> ",
		redraw: complete.NewRedrawer(nil),
	}
	for _, o := range opts {
		o(e)
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		e.fd = int(f.Fd())
		e.interactive = true
	}
	e.histIdx = len(e.history)
	return e
}

// Interactive reports whether the editor draws its own prompt.
func (e *Editor) Interactive() bool { return e.interactive }

// Start puts the terminal into raw mode and draws the prompt.
func (e *Editor) Start() error {
	if !e.interactive {
		return nil
	}
	if e.fd >= 0 {
		st, err := term.MakeRaw(e.fd)
		if err != nil {
			return err
		}
		e.restore = st
	}
	e.p.SetRaw(true)
	e.p.SetPrompt(e)
	e.p.Locked(func(w io.Writer) {
		e.shown = true
		_, _ = io.WriteString(w, e.Show())
	})
	return nil
}

// Close restores the terminal. Calls after the first do nothing.
func (e *Editor) Close() error {
	if !e.interactive || e.closed.Swap(true) {
		return nil
	}
	e.p.SetPrompt(nil)
	e.p.SetRaw(false)
	e.p.Locked(func(w io.Writer) {
		if e.shown {
			_, _ = io.WriteString(w, "\r\n")
			e.shown = false
		}
	})
	if e.restore != nil {
		return term.Restore(e.fd, e.restore)
	}
	return nil
}

// Hide implements Prompt. Must be called with the printer locked.
func (e *Editor) Hide() string {
	if !e.shown {
		return ""
	}
	return "\r\x1b[K"
}

// Show implements Prompt. Must be called with the printer locked.
func (e *Editor) Show() string {
	if !e.shown {
		return ""
	}
	e.redraw.Reset()
	return e.prompt + e.redraw.Render(string(e.buf), e.suggestion())
}

// Remember adds a line to recall without it having been typed.
func (e *Editor) Remember(line string) {
	e.p.Locked(func(io.Writer) { e.remember(line) })
}

func (e *Editor) remember(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if n := len(e.history); n > 0 && e.history[n-1] == line {
		e.histIdx = n
		return
	}
	e.history = append(e.history, line)
	e.histIdx = len(e.history)
}

// ReadLine blocks until the operator submits a line. It returns io.EOF at
// end of input and ErrInterrupt on Ctrl-C.
func (e *Editor) ReadLine() (string, error) {
	if !e.interactive {
		line, err := e.in.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	for {
		r, _, err := e.in.ReadRune()
		if err != nil {
			return "", err
		}
		line, done, err := e.key(r)
		if err != nil || done {
			return line, err
		}
	}
}

func (e *Editor) key(r rune) (line string, done bool, err error) {
	e.p.Locked(func(w io.Writer) {
		var out string
		switch r {
		case '\r', '\n':
			line = string(e.buf)
			done = true
			e.remember(line)
			e.buf = e.buf[:0]
			e.redraw.Reset()
			// Drop the ghost before moving on.
			out = "\x1b[K\r\n" + e.prompt
		case 3:
			err = ErrInterrupt
			return
		case 4:
			if len(e.buf) == 0 {
				err = io.EOF
				return
			}
		case 127, 8:
			if len(e.buf) > 0 {
				e.buf = e.buf[:len(e.buf)-1]
			}
			out = e.render()
		case 21:
			e.buf = e.buf[:0]
			out = e.render()
		case '\t':
			out = e.accept()
		case 0x1b:
			out = e.escape()
		default:
			if r >= 0x20 {
				e.buf = append(e.buf, r)
				out = e.render()
			}
		}
		_, _ = io.WriteString(w, out)
	})
	return line, done, err
}

// escape handles CSI sequences: up/down walk history, right accepts.
func (e *Editor) escape() string {
	b, err := e.in.ReadByte()
	if err != nil || b != '[' {
		return ""
	}
	c, err := e.in.ReadByte()
	if err != nil {
		return ""
	}
	switch c {
	case 'A':
		if e.histIdx == 0 {
			return ""
		}
		if e.histIdx == len(e.history) {
			e.pending = string(e.buf)
		}
		e.histIdx--
		e.buf = []rune(e.history[e.histIdx])
	case 'B':
		if e.histIdx >= len(e.history) {
			return ""
		}
		e.histIdx++
		if e.histIdx == len(e.history) {
			e.buf = []rune(e.pending)
		} else {
			e.buf = []rune(e.history[e.histIdx])
		}
	case 'C':
		return e.accept()
	default:
		return ""
	}
	return e.render()
}

func (e *Editor) accept() string {
	if e.completer == nil {
		return ""
	}
	next, ok := complete.Accept(string(e.buf), e.completer(), e.opts)
	if !ok {
		return ""
	}
	e.buf = []rune(next)
	return e.render()
}

func (e *Editor) render() string {
	return e.redraw.Render(string(e.buf), e.suggestion())
}

func (e *Editor) suggestion() string {
	if e.completer == nil || len(e.buf) == 0 {
		return ""
	}
	res, ok := complete.Complete(string(e.buf), e.completer(), e.opts)
	if !ok {
		return ""
	}
	return res.Suffix
}
