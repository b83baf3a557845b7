package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"voxelcraft.ai/vcterm/internal/complete"
)

func interactiveEditor(t *testing.T, input string, opts ...EditorOption) (*Editor, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	p := NewPrinter(&out)
	e := NewEditor(p, strings.NewReader(input), opts...)
	e.interactive = true
	require.NoError(t, e.Start())
	t.Cleanup(func() { _ = e.Close() })
	return e, &out
}

func TestEditor_PlainLines(t *testing.T) {
	var out bytes.Buffer
	e := NewEditor(NewPrinter(&out), strings.NewReader(".position\r\nhello"))
	require.False(t, e.Interactive())

	line, err := e.ReadLine()
	require.NoError(t, err)
	require.Equal(t, ".position", line)
	line, err = e.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "hello", line)
	_, err = e.ReadLine()
	require.ErrorIs(t, err, io.EOF)
	require.Empty(t, out.String())
}

func TestEditor_TabAcceptsCompletion(t *testing.T) {
	tree := complete.FromList([]string{".position", ".place"})
	e, out := interactiveEditor(t, ".pos\t\r",
		WithPrompt("$ "),
		WithCompletion(func() *complete.Node { return tree }, complete.Options{MinLength: 1}, nil))

	line, err := e.ReadLine()
	require.NoError(t, err)
	require.Equal(t, ".position", line)
	require.True(t, strings.HasPrefix(out.String(), "$ "))
	require.Contains(t, out.String(), "ition")
}

func TestEditor_BackspaceAndHistory(t *testing.T) {
	e, _ := interactiveEditor(t, "abx\x7fc\r\x1b[A\r", WithHistory([]string{"old"}))

	line, err := e.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "abc", line)

	line, err = e.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "abc", line)
}

func TestEditor_HistoryWalk(t *testing.T) {
	e, _ := interactiveEditor(t, "\x1b[A\x1b[A\x1b[A\x1b[B\r", WithHistory([]string{"one", "two"}))
	line, err := e.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "two", line)
}

func TestEditor_CtrlCAndCtrlD(t *testing.T) {
	e, _ := interactiveEditor(t, "x\x03")
	_, err := e.ReadLine()
	require.True(t, errors.Is(err, ErrInterrupt))

	e, _ = interactiveEditor(t, "\x04")
	_, err = e.ReadLine()
	require.ErrorIs(t, err, io.EOF)
}

func TestEditor_PrinterRedrawsInput(t *testing.T) {
	e, out := interactiveEditor(t, "ab")
	_, err := e.ReadLine()
	require.ErrorIs(t, err, io.EOF)
	out.Reset()

	e.p.Infof("msg")
	require.Equal(t, "\r\x1b[K[INFO] msg\r\n> ab", out.String())
}

func TestEditor_CloseTwice(t *testing.T) {
	e, out := interactiveEditor(t, "")
	require.NoError(t, e.Close())
	require.True(t, strings.HasSuffix(out.String(), "\r\n"))
	out.Reset()
	require.NoError(t, e.Close())
	e.p.Infof("after")
	require.Equal(t, "[INFO] after\n", out.String())
}
