package complete

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func commandTree() *Node {
	root := FromList([]string{".move", ".moveTo", ".look", ".lookAt", ".exit"}, ".exit")
	inv := root.Add(".inventory")
	inv.Add("inventory").AddPath("click")
	inv.Add("container")
	return root
}

func TestComplete_FirstCandidateWins(t *testing.T) {
	root := commandTree()
	res, ok := Complete(".mo", root, Options{MinLength: 1})
	require.True(t, ok)
	require.Equal(t, Result{Suffix: "ve", Match: ".move"}, res)

	res, ok = Complete(".move", root, Options{MinLength: 1})
	require.True(t, ok)
	require.Equal(t, Result{Suffix: "To", Match: ".moveTo"}, res)

	_, ok = Complete(".moveTo", root, Options{})
	require.False(t, ok, "no strict prefix left")
}

func TestComplete_NoMatch(t *testing.T) {
	root := commandTree()
	_, ok := Complete(".x", root, Options{MinLength: 1})
	require.False(t, ok)
	_, ok = Complete(".ex", root, Options{MinLength: 1})
	require.False(t, ok, "excluded words are not offered")
	_, ok = Complete("", root, Options{})
	require.False(t, ok)
}

func TestComplete_MinLength(t *testing.T) {
	root := commandTree()
	_, ok := Complete(".l", root, Options{MinLength: 3})
	require.False(t, ok)
	res, ok := Complete(".lo", root, Options{MinLength: 3})
	require.True(t, ok)
	require.Equal(t, ".look", res.Match)
}

func TestComplete_Descends(t *testing.T) {
	root := commandTree()
	res, ok := Complete(".inventory c", root, Options{MinLength: 1})
	require.True(t, ok)
	require.Equal(t, "ontainer", res.Suffix)

	res, ok = Complete(".inventory inventory cl", root, Options{MinLength: 1})
	require.True(t, ok)
	require.Equal(t, "ick", res.Suffix)

	// A trailing space opens an empty word; MinLength 0 then offers the
	// first child.
	res, ok = Complete(".inventory ", root, Options{})
	require.True(t, ok)
	require.Equal(t, "inventory", res.Match)
	_, ok = Complete(".inventory ", root, Options{MinLength: 1})
	require.False(t, ok)
}

func TestComplete_StartOnly(t *testing.T) {
	root := commandTree()
	_, ok := Complete("hello .mo", root, Options{MinLength: 1, StartOnly: true})
	require.False(t, ok)
	res, ok := Complete("hello .mo", root, Options{MinLength: 1})
	require.True(t, ok)
	require.Equal(t, ".move", res.Match)

	// Only the first word has to match; a later miss keeps the current level.
	res, ok = Complete(".inventory bogus con", root, Options{MinLength: 1, StartOnly: true})
	require.True(t, ok)
	require.Equal(t, Result{Suffix: "tainer", Match: "container"}, res)
}

func TestComplete_CaseInsensitive(t *testing.T) {
	root := commandTree()
	_, ok := Complete(".LOOKa", root, Options{MinLength: 1})
	require.False(t, ok)
	res, ok := Complete(".LOOKa", root, Options{MinLength: 1, CaseInsensitive: true})
	require.True(t, ok)
	require.Equal(t, Result{Suffix: "t", Match: ".lookAt"}, res)

	line, ok := Accept(".LOOKa", root, Options{MinLength: 5, CaseInsensitive: true})
	require.True(t, ok)
	require.Equal(t, ".lookAt", line)
}

func TestAccept(t *testing.T) {
	root := commandTree()
	line, ok := Accept(".mo", root, Options{MinLength: 10})
	require.True(t, ok, "accept ignores MinLength")
	require.Equal(t, ".move", line)

	line, ok = Accept(".zz", root, Options{})
	require.False(t, ok)
	require.Equal(t, ".zz", line)
}

func TestComplete_Deterministic(t *testing.T) {
	root := commandTree()
	first, _ := Complete(".l", root, Options{})
	for i := 0; i < 20; i++ {
		again, _ := Complete(".l", root, Options{})
		require.Equal(t, first, again)
	}
}
