// Package owo is a small compiled-in plugin: `.owo <message...>` sends the
// message owoified.
package owo

import (
	"context"
	"strings"

	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/plugin"
)

const Name = "owo"

type Plugin struct{}

func New() plugin.Plugin { return Plugin{} }

func (Plugin) Name() string { return Name }

// Before publishes the face used as suffix so scripts can read it.
func (Plugin) Before(caps *plugin.Capabilities) error {
	if caps.Vars != nil {
		if _, ok := caps.Vars.Get("owo.face"); !ok {
			caps.Vars.Set("owo.face", "owo")
		}
	}
	return nil
}

func (Plugin) Load(caps *plugin.Capabilities) error {
	return caps.Register(command.Spec{
		Name:        "owo",
		Usage:       "<message...>",
		Description: "Send a chat message, owoified",
	}, func(ctx context.Context, call *command.Call) error {
		if len(call.Args) == 0 {
			return command.ErrUsage()
		}
		face := ""
		if caps.Vars != nil {
			face, _ = caps.Vars.Get("owo.face")
		}
		return caps.World.Chat(Translate(strings.Join(call.Args, " "), face))
	})
}

var replacer = strings.NewReplacer(
	"r", "w", "l", "w",
	"R", "W", "L", "W",
	"na", "nya", "ne", "nye", "ni", "nyi", "no", "nyo", "nu", "nyu",
	"Na", "Nya", "Ne", "Nye", "Ni", "Nyi", "No", "Nyo", "Nu", "Nyu",
	"ove", "uv",
)

// Translate owoifies s and appends face when set.
func Translate(s, face string) string {
	out := replacer.Replace(s)
	if face != "" {
		out += " " + face
	}
	return out
}
