// Package cmdline turns a raw operator line into argument tokens: relative
// coordinate and variable substitution followed by quote-aware splitting.
package cmdline

import (
	"math"
	"strconv"
	"strings"

	"voxelcraft.ai/vcterm/internal/world"
)

const coordPrecision = 3

// Substitute expands relative coordinates (~x, ~y+2, ~z-1.5) against pos and
// %name% references against vars. pos may be nil when the agent has not
// spawned; relative expressions then pass through untouched. Undefined
// variables expand to the empty string.
func Substitute(line string, pos *world.Vec3, vars Lookup) string {
	if pos != nil && strings.IndexByte(line, '~') >= 0 {
		line = substituteCoords(line, *pos)
	}
	if vars != nil && strings.IndexByte(line, '%') >= 0 {
		line = substituteVars(line, vars)
	}
	return line
}

func substituteCoords(line string, pos world.Vec3) string {
	var b strings.Builder
	b.Grow(len(line))
	i := 0
	for i < len(line) {
		c := line[i]
		// Only expressions that start a word are coordinates.
		if c != '~' || (i > 0 && !isSpace(line[i-1])) {
			b.WriteByte(c)
			i++
			continue
		}
		end := i + 1
		for end < len(line) && !isSpace(line[end]) {
			end++
		}
		if v, ok := resolveCoord(line[i+1:end], pos); ok {
			b.WriteString(v)
		} else {
			b.WriteString(line[i:end])
		}
		i = end
	}
	return b.String()
}

// resolveCoord parses "<axis>[(+|-)<offset>]".
func resolveCoord(expr string, pos world.Vec3) (string, bool) {
	if expr == "" {
		return "", false
	}
	base, ok := pos.Axis(expr[0])
	if !ok {
		return "", false
	}
	off := 0.0
	if rest := expr[1:]; rest != "" {
		if rest[0] != '+' && rest[0] != '-' {
			return "", false
		}
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		off = f
	}
	return FormatNumber(base + off), true
}

// FormatNumber rounds to three decimals and drops trailing zeros.
func FormatNumber(f float64) string {
	p := math.Pow(10, coordPrecision)
	r := math.Round(f*p) / p
	if r == 0 {
		r = 0 // normalise -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func substituteVars(line string, vars Lookup) string {
	var b strings.Builder
	b.Grow(len(line))
	i := 0
	for i < len(line) {
		if line[i] != '%' {
			b.WriteByte(line[i])
			i++
			continue
		}
		end := i + 1
		for end < len(line) && isNameByte(line[end]) {
			end++
		}
		if end == i+1 || end >= len(line) || line[end] != '%' {
			b.WriteByte('%')
			i++
			continue
		}
		v, _ := vars.Get(line[i+1 : end])
		b.WriteString(v)
		i = end + 1
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
