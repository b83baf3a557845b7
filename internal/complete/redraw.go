package complete

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Style renders the ghost suggestion text.
type Style func(string) string

// Redrawer produces the terminal bytes that move the screen from the last
// rendered input line to the next one. It assumes the cursor sits at the end
// of the previously rendered input.
type Redrawer struct {
	prev  []rune
	ghost int
	style Style
}

func NewRedrawer(style Style) *Redrawer {
	if style == nil {
		style = func(s string) string { return s }
	}
	return &Redrawer{style: style}
}

// Reset forgets the previous line, e.g. after the prompt was reprinted.
func (r *Redrawer) Reset() {
	r.prev = nil
	r.ghost = 0
}

// Render returns the rewrite for line followed by an optional suggestion.
// Only the part after the first differing character is rewritten.
func (r *Redrawer) Render(line, suggestion string) string {
	cur := []rune(line)
	diff := commonPrefix(r.prev, cur)

	var b strings.Builder
	if back := len(r.prev) - diff; back > 0 {
		fmt.Fprintf(&b, "\x1b[%dD", back)
	}
	b.WriteString(string(cur[diff:]))
	ghost := utf8.RuneCountInString(suggestion)
	if ghost > 0 {
		b.WriteString(r.style(suggestion))
	}
	if r.ghost > 0 || len(r.prev) > len(cur) || ghost > 0 {
		b.WriteString("\x1b[K")
	}
	if ghost > 0 {
		fmt.Fprintf(&b, "\x1b[%dD", ghost)
	}

	r.prev = cur
	r.ghost = ghost
	return b.String()
}

func commonPrefix(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
