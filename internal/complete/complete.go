package complete

import "strings"

type Options struct {
	// MinLength is the shortest final word that gets a suggestion.
	MinLength int
	// CaseInsensitive compares words and candidates lower-cased.
	CaseInsensitive bool
	// StartOnly gives up when the first word matches no candidate instead of
	// trying the words after it.
	StartOnly bool
}

// Result is a proposed completion of the final word.
type Result struct {
	// Suffix is what would be appended to the line.
	Suffix string
	// Match is the full candidate.
	Match string
}

// words splits on whitespace; trailing whitespace opens an empty word.
func words(line string) []string {
	ws := strings.Fields(line)
	if len(line) > 0 && isSpace(line[len(line)-1]) {
		ws = append(ws, "")
	}
	return ws
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

// Complete proposes a completion for the last word of line.
func Complete(line string, root *Node, opts Options) (Result, bool) {
	ws := words(line)
	if len(ws) == 0 || root == nil {
		return Result{}, false
	}
	fold := func(s string) string {
		if opts.CaseInsensitive {
			return strings.ToLower(s)
		}
		return s
	}

	level := root
	for i, w := range ws {
		w = fold(w)
		if i == len(ws)-1 {
			if len(w) < opts.MinLength {
				return Result{}, false
			}
			for _, c := range level.words {
				if fc := fold(c); len(fc) > len(w) && strings.HasPrefix(fc, w) {
					return Result{Suffix: c[len(w):], Match: c}, true
				}
			}
			return Result{}, false
		}

		next := descend(level, w, fold)
		if next == nil {
			if i == 0 && opts.StartOnly {
				return Result{}, false
			}
			continue
		}
		level = next
	}
	return Result{}, false
}

// descend prefers an exact candidate and falls back to the first one w
// prefixes.
func descend(level *Node, w string, fold func(string) string) *Node {
	var prefixed *Node
	for _, c := range level.words {
		fc := fold(c)
		if fc == w {
			return level.children[c]
		}
		if prefixed == nil && strings.HasPrefix(fc, w) {
			prefixed = level.children[c]
		}
	}
	return prefixed
}

// Accept returns line with the completion applied, computed with MinLength 0.
// With CaseInsensitive the typed part of the final word takes the
// candidate's casing.
func Accept(line string, root *Node, opts Options) (string, bool) {
	opts.MinLength = 0
	res, ok := Complete(line, root, opts)
	if !ok {
		return line, false
	}
	if opts.CaseInsensitive {
		typed := len(res.Match) - len(res.Suffix)
		return line[:len(line)-typed] + res.Match, true
	}
	return line + res.Suffix, true
}
