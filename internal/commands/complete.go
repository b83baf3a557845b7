package commands

import (
	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/complete"
	"voxelcraft.ai/vcterm/internal/world"
)

var (
	directionWords   = []string{"north", "south", "east", "west"}
	forceMoveWords   = []string{"up", "forward", "back", "left", "right", "sprint"}
	windowWords      = []string{"inventory", "container"}
	inventoryActions = []string{"click", "move", "drop", "dropall", "close"}
)

// CompletionTree builds the autocomplete tree: ".name" for every command an
// operator may type and for every alias. exit and reco are left out so a
// stray tab never disconnects.
func CompletionTree(reg *command.Registry, aliases command.Aliases, nonVanilla bool) *complete.Node {
	root := complete.NewNode()
	for _, c := range reg.All() {
		if c.ScriptOnly || c.Hidden || (c.NonVanilla && !nonVanilla) {
			continue
		}
		switch c.Key() {
		case "exit", "reco":
			continue
		}
		n := root.Add("." + c.Name)
		addArgs(n, c.Key())
	}
	for _, a := range aliases.Names() {
		if command.IsReserved(a) || a == "exit" || a == "reco" {
			continue
		}
		root.Add("." + a)
	}
	return root
}

func addArgs(n *complete.Node, key string) {
	switch key {
	case "look", "move":
		addWords(n, directionWords)
	case "forcemove":
		addWords(n, forceMoveWords)
	case "control":
		for _, c := range world.Controls {
			n.Add(string(c))
		}
		n.Add("clearall")
	case "inventory":
		for _, w := range windowWords {
			addWords(n.Add(w), inventoryActions)
		}
	}
}

func addWords(n *complete.Node, ws []string) {
	for _, w := range ws {
		n.Add(w)
	}
}
