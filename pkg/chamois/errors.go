// Error taxonomy for the Chamois MMU tool-change sequences.
//
// Copyright (C) 2026  Chamois Host Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package chamois

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a SELECT/DISABLE request arrives while
	// another sequence is still in flight.
	ErrBusy = errors.New("chamois: another tool-change sequence is in progress")

	// ErrMmuUnreachable is returned when the MMU cannot be reached during
	// HOME or HALT recovery.
	ErrMmuUnreachable = errors.New("chamois: MMU unreachable")
)

// LinkError reports an I/O failure on the MMU connection. The session is
// dropped when one occurs; the sequence that hit it aborts.
type LinkError struct {
	Op  string // "connect", "send", "recv"
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("chamois: link %s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// DeviceError reports a non-OK result code returned by the MMU firmware.
// The connection itself is still healthy.
type DeviceError struct {
	Code    byte
	Message string
}

func (e *DeviceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chamois: device result %#02x: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("chamois: device result %#02x", e.Code)
}

// TimeoutError reports exhaustion of the bounded load or unload retry
// budget. Phase is "load" or "unload".
type TimeoutError struct {
	Phase    string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("chamois: %s did not complete after %d attempts", e.Phase, e.Attempts)
}

// HookError reports a failure from a user-defined macro hook. The phase
// names which extension point failed.
type HookError struct {
	Phase Phase
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("chamois: %s macro failed: %v", e.Phase, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// ToolRangeError reports a tool index outside the configured slot count.
type ToolRangeError struct {
	Tool  int
	Slots int
}

func (e *ToolRangeError) Error() string {
	return fmt.Sprintf("chamois: invalid tool index %d, must be between 0 and %d", e.Tool, e.Slots-1)
}
