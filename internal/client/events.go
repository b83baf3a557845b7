package client

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/plugin"
	"voxelcraft.ai/vcterm/internal/world"
)

var colorCodes = regexp.MustCompile(`§[0-9a-fk-orA-FK-OR]`)

// StripColors removes section-sign formatting codes from chat text.
func StripColors(s string) string { return colorCodes.ReplaceAllString(s, "") }

func (c *Client) eventLoop(ctx context.Context) error {
	events := c.w.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return errEnded
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Client) handleEvent(ev world.Event) {
	defer c.guard()
	c.log.Debug("event", zap.String("kind", string(ev.Kind)), zap.String("text", ev.Text))
	if ev.Kind != world.EventMessage {
		_ = c.opts.Transcript.Event(string(ev.Kind), ev.Text)
	}

	switch ev.Kind {
	case world.EventLogin:
		c.onLogin()
	case world.EventSpawn:
		c.state.Reset()
		c.p.Successf("Spawned")
	case world.EventMessage:
		c.mu.Lock()
		if !c.loggedIn {
			c.buffered = append(c.buffered, ev)
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.onMessage(ev)
	case world.EventKicked:
		c.p.Warnf("Kicked: %s", ev.Text)
	case world.EventDeath:
		c.p.Warnf("Died")
	case world.EventEnd:
		c.state.Reset()
		c.p.Infof("Disconnected: %s", ev.Text)
	case world.EventWindowOpen:
		c.p.Infof("Opened window: %s", ev.Text)
	}
	c.fireHooks(ev.Kind)
}

func (c *Client) onLogin() {
	c.mu.Lock()
	c.loggedIn = true
	first := !c.loaded
	c.loaded = true
	pending := c.buffered
	c.buffered = nil
	c.mu.Unlock()

	c.p.Successf("Connected as %s", c.selfName())
	if first {
		c.runPlugins(plugin.PhaseLoad)
	}
	for _, ev := range pending {
		c.onMessage(ev)
	}
}

func (c *Client) onMessage(ev world.Event) {
	_ = c.opts.Transcript.Chat(ev.From, ev.Text)
	if ev.From != "" {
		c.p.Printf("<%s> %s", ev.From, ev.Text)
	} else {
		c.p.Printf("%s", ev.Text)
	}
	if line, ok := c.remoteCommand(ev.Text); ok {
		c.p.Infof("[REMOTE] %s", line)
		c.enqueue(line, command.Remote)
	}
}

// remoteCommand extracts a command from a chat message matching the remote
// trigger pattern.
func (c *Client) remoteCommand(text string) (string, bool) {
	if c.remote == nil {
		return "", false
	}
	m := c.remote.FindStringSubmatch(StripColors(text))
	if len(m) < 2 {
		return "", false
	}
	line := strings.TrimPrefix(strings.TrimSpace(m[1]), ".")
	return line, line != ""
}

func (c *Client) fireHooks(kind world.EventKind) {
	for _, h := range c.hooks[kind] {
		if h.once {
			c.mu.Lock()
			done := c.fired[h.key]
			c.fired[h.key] = true
			c.mu.Unlock()
			if done {
				continue
			}
		}
		c.enqueue(strings.TrimPrefix(h.line, "."), command.Hook)
	}
}
