package client

import (
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
)

// crashFrames is how many frames a crash report shows without --debug.
const crashFrames = 2

// guard recovers a panic in client code. Without debug it prints a short
// report and exits 1; with debug it dumps the stack and carries on.
func (c *Client) guard() {
	r := recover()
	if r == nil {
		return
	}
	stack := debug.Stack()
	c.log.Error("panic", zap.Any("value", r), zap.ByteString("stack", stack))
	c.p.Errorf("%s", CrashReport(r, stack, c.opts.Debug))
	if !c.opts.Debug {
		_ = c.log.Sync()
		c.opts.Exit(1)
	}
}

// CrashReport formats a recovered panic. Unless full is set only the first
// frames outside the runtime and the guard itself are kept.
func CrashReport(v any, stack []byte, full bool) string {
	if full {
		return fmt.Sprintf("panic: %v\n%s", v, strings.TrimRight(string(stack), "\n"))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "panic: %v", v)
	for _, f := range frames(stack, crashFrames) {
		b.WriteString("\n  at ")
		b.WriteString(f)
	}
	return b.String()
}

// frames parses a debug.Stack dump into "func (file:line)" entries.
func frames(stack []byte, n int) []string {
	lines := strings.Split(strings.TrimSpace(string(stack)), "\n")
	start := 1
	// Line 0 is the goroutine header; frames follow as func/file pairs. The
	// frames that matter come after the panic call.
	for i := 1; i+1 < len(lines); i += 2 {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "panic(") {
			start = i + 2
			break
		}
	}
	var out []string
	for i := start; i+1 < len(lines) && len(out) < n; i += 2 {
		fn := strings.TrimSpace(lines[i])
		file := strings.TrimSpace(lines[i+1])
		if skipFrame(fn) {
			continue
		}
		if j := strings.LastIndex(file, " +0x"); j >= 0 {
			file = file[:j]
		}
		if j := strings.LastIndex(fn, "("); j > 0 {
			fn = fn[:j]
		}
		out = append(out, fmt.Sprintf("%s (%s)", fn, file))
	}
	return out
}

func skipFrame(fn string) bool {
	switch {
	case strings.HasPrefix(fn, "runtime/debug."),
		strings.HasPrefix(fn, "runtime."),
		strings.Contains(fn, "client.(*Client).guard"):
		return true
	}
	return false
}
