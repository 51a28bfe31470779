// Command surface adapter: exposes the tool-change life cycle as
// operator commands on the host dispatcher.
//
// Copyright (C) 2026  Chamois Host Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package chamois

import (
	"fmt"

	"chamois-host/pkg/gcode"
)

// Macro command names looked up on the dispatcher for each phase. Absence
// of a binding is always legal.
var macroCommands = map[Phase]string{
	PhasePark:         "CHAMOIS_PARK",
	PhaseBeforeUnload: "CHAMOIS_BEFORE_UNLOAD",
	PhaseOnUnload:     "CHAMOIS_ON_UNLOAD",
	PhaseOnLoad:       "CHAMOIS_ON_LOAD",
	PhaseAfterLoad:    "CHAMOIS_AFTER_LOAD",
}

// BindMacroHooks resolves the phase macros against the dispatcher once,
// at configuration load. Phases without a matching command stay unbound
// and invoke as no-ops.
func BindMacroHooks(d *gcode.Dispatcher, hooks *HookRegistry) {
	for phase, name := range macroCommands {
		if !d.Has(name) {
			continue
		}
		cmd := name
		hooks.Bind(phase, func() error {
			return d.Run(cmd)
		})
	}
}

// RegisterCommands exposes the controller on the dispatcher: T0..Tn-1
// for tool changes plus CHAMOIS_HOME, CHAMOIS_DISABLE, CHAMOIS_HALT and
// CHAMOIS_STATUS.
func RegisterCommands(d *gcode.Dispatcher, c *Controller) {
	for i := 0; i < c.cfg.Slots; i++ {
		tool := i
		d.Register(fmt.Sprintf("T%d", tool),
			fmt.Sprintf("Chamois: unload, select, load, and release tool %d", tool),
			func(cmd *gcode.Command) error {
				if err := c.SelectTool(tool); err != nil {
					return fmt.Errorf("tool change failed: %w", err)
				}
				cmd.Respond("Tool change to index %d completed successfully.", tool)
				return nil
			})
	}

	d.Register("CHAMOIS_HOME", "Initializes and homes the Chamois MMU",
		func(cmd *gcode.Command) error {
			cmd.Respond("Chamois MMU Homing")
			if err := c.Home(); err != nil {
				return fmt.Errorf("failed to home Chamois MMU: %w", err)
			}
			cmd.Respond("Chamois MMU is ready")
			return nil
		})

	d.Register("CHAMOIS_DISABLE", "Disables the Chamois MMU",
		func(cmd *gcode.Command) error {
			cmd.Respond("Disabling Chamois MMU")
			if err := c.Disable(); err != nil {
				return fmt.Errorf("failed to disable Chamois MMU: %w", err)
			}
			cmd.Respond("Chamois MMU is disabled")
			return nil
		})

	d.Register("CHAMOIS_HALT", "Restarts the Chamois MMU",
		func(cmd *gcode.Command) error {
			cmd.Respond("Chamois MMU Halting")
			if err := c.Halt(); err != nil {
				return fmt.Errorf("failed to halt Chamois MMU: %w", err)
			}
			cmd.Respond("Chamois MMU is halted")
			return nil
		})

	d.Register("CHAMOIS_STATUS", "Reports the Chamois MMU state",
		func(cmd *gcode.Command) error {
			status := c.GetStatus()
			cmd.Respond("Chamois: state=%v filament=%v tool=%v busy=%v tool_changes=%v",
				status["state"], status["filament"], status["tool"],
				status["busy"], status["tool_changes"])
			return nil
		})
}
