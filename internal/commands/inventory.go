package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/world"
)

var errNothingToClose = errors.New("there is nothing to close")

const hotbarSize = 9

var inventoryCommands = []entry{
	{command.Spec{Name: "inventory", Usage: "<0/inventory/1/container> [click/move/drop/dropall/close] [slot] [slot]", Description: "Show or manage an inventory"}, inventoryCmd},
	{command.Spec{Name: "changeSlot", Usage: "<0-8>", Description: "Select a hotbar slot"}, changeSlotCmd},
	{command.Spec{Name: "useItem", Usage: "[seconds]", Description: "Use the held item"}, useItemCmd},
}

func parseWindow(s string) (world.Window, bool) {
	switch strings.ToLower(s) {
	case "0", "inventory":
		return world.WindowInventory, true
	case "1", "container":
		return world.WindowContainer, true
	}
	return 0, false
}

func parseSlot(s string) (int, bool) {
	n, ok := parseInt(s)
	return n, ok && n >= 0
}

func inventoryCmd(env *Env, ctx context.Context, call *command.Call) error {
	win, ok := parseWindow(call.Arg(0))
	if !ok {
		return command.ErrUsage()
	}
	sub := strings.ToLower(call.Arg(1))
	if sub == "" {
		return showInventory(env, win)
	}

	switch sub {
	case "click":
		slot, ok := parseSlot(call.Arg(2))
		if !ok {
			return command.ErrUsage()
		}
		if err := env.World.ClickSlot(ctx, win, slot, world.ClickNormal); err != nil {
			return err
		}
		env.Printer.Successf("Clicked slot %d", slot)
	case "move":
		from, ok1 := parseSlot(call.Arg(2))
		to, ok2 := parseSlot(call.Arg(3))
		if !ok1 || !ok2 {
			return command.ErrUsage()
		}
		if err := env.World.ClickSlot(ctx, win, from, world.ClickNormal); err != nil {
			return err
		}
		if err := env.World.ClickSlot(ctx, win, to, world.ClickNormal); err != nil {
			return err
		}
		env.Printer.Successf("Moved slot %d to slot %d", from, to)
	case "drop":
		slot, ok := parseSlot(call.Arg(2))
		if !ok {
			return command.ErrUsage()
		}
		if err := env.World.ClickSlot(ctx, win, slot, world.ClickDrop); err != nil {
			return err
		}
		env.Printer.Successf("Dropped slot %d", slot)
	case "dropall":
		items, err := env.World.Inventory(win)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := env.World.ClickSlot(ctx, win, it.Slot, world.ClickDropAll); err != nil {
				return err
			}
		}
		env.Printer.Successf("Dropped %d stacks", len(items))
	case "close":
		if win != world.WindowContainer {
			return errNothingToClose
		}
		if _, err := env.World.Inventory(world.WindowContainer); err != nil {
			return errNothingToClose
		}
		if err := env.World.CloseWindow(); err != nil {
			return err
		}
		env.Printer.Successf("Closed container")
	default:
		return command.ErrUsage()
	}
	return nil
}

func showInventory(env *Env, win world.Window) error {
	items, err := env.World.Inventory(win)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		env.Printer.Infof("Empty")
		return nil
	}
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		hotbar := ""
		if win == world.WindowInventory && it.Slot < hotbarSize {
			hotbar = "*"
		}
		rows = append(rows, []any{hotbar, it.Slot, it.Count, it.Name})
	}
	out := renderTable([]any{"Hotbar", "Slot", "Count", "Item"}, rows)
	if self, ok := env.World.Self(); ok && win == world.WindowInventory {
		out += fmt.Sprintf("\nSelected slot: %d", self.Slot)
	}
	env.Printer.Infof("%s", out)
	return nil
}

func changeSlotCmd(env *Env, _ context.Context, call *command.Call) error {
	slot, ok := parseInt(call.Arg(0))
	if !ok || slot < 0 || slot >= hotbarSize {
		return command.Usagef("Slot must be between 0 and 8")
	}
	if err := env.World.SetHotbarSlot(slot); err != nil {
		return err
	}
	env.Printer.Successf("Selected slot %d", slot)
	return nil
}

func useItemCmd(env *Env, ctx context.Context, call *command.Call) error {
	d := 100 * time.Millisecond
	if a := call.Arg(0); a != "" {
		var err error
		if d, err = parseSeconds(a); err != nil {
			return err
		}
	}
	return env.await(call, func() error {
		if err := env.World.UseItem(ctx, d); err != nil {
			return err
		}
		env.Printer.Successf("Used item for %s", seconds(d.Seconds()))
		return nil
	})
}
