package complete

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedrawer_Render(t *testing.T) {
	r := NewRedrawer(func(s string) string { return "<" + s + ">" })

	// Appending a character with a suggestion: write char, ghost, erase, move back.
	require.Equal(t, ".<move>\x1b[K\x1b[4D", r.Render(".", "move"))
	require.Equal(t, "m<ove>\x1b[K\x1b[3D", r.Render(".m", "ove"))

	// Suggestion disappears: clear the leftover ghost.
	require.Equal(t, "x\x1b[K", r.Render(".mx", ""))

	// Backspace: move back over the removed character and erase.
	require.Equal(t, "\x1b[1D\x1b[K", r.Render(".m", ""))

	// Edit in the middle rewrites only from the first difference.
	require.Equal(t, "\x1b[1Dl", r.Render(".l", ""))
	require.Equal(t, "", r.Render(".l", ""))
}

func TestRedrawer_ResetAndRunes(t *testing.T) {
	r := NewRedrawer(nil)
	require.Equal(t, "héllo", r.Render("héllo", ""))
	require.Equal(t, "\x1b[4Dey\x1b[K", r.Render("hey", ""))
	r.Reset()
	require.Equal(t, "hey", r.Render("hey", ""))
}
