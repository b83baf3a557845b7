package cmdline

import "strings"

// Token is one argument. Raw is the lexeme as typed, quotes included.
type Token struct {
	Text string
	Raw  string
}

// Tokenize splits line on whitespace. A single or double quote with a
// matching closer yields one token spanning whitespace, quotes stripped.
// A quote without a closer is an ordinary character.
func Tokenize(line string) []Token {
	var out []Token
	i := 0
	for {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) {
			return out
		}
		if q := line[i]; q == '"' || q == '\'' {
			if j := strings.IndexByte(line[i+1:], q); j >= 0 {
				end := i + 1 + j
				out = append(out, Token{Text: line[i+1 : end], Raw: line[i : end+1]})
				i = end + 1
				continue
			}
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		out = append(out, Token{Text: line[start:i], Raw: line[start:i]})
	}
}

// Texts returns the token texts.
func Texts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

// Join rejoins raw lexemes with single spaces.
func Join(toks []Token) string {
	raws := make([]string, len(toks))
	for i, t := range toks {
		raws[i] = t.Raw
	}
	return strings.Join(raws, " ")
}

// Split is Tokenize followed by Texts.
func Split(line string) []string { return Texts(Tokenize(line)) }
