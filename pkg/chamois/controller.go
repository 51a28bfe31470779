// Tool-change life-cycle orchestration for the Chamois MMU.
//
// The controller drives the HOME, SELECT, DISABLE and HALT sequences,
// issuing device commands through the link, invoking macro hooks at the
// defined phase boundaries, and updating the tracker only on confirmed
// hardware transitions. One sequence runs at a time; a request arriving
// while another is in flight is rejected with ErrBusy.
//
// Copyright (C) 2026  Chamois Host Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package chamois

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the orchestrator tunables. All of them map to options in
// the [chamois] config section.
type Config struct {
	// Slots is the number of filament slots (tool indices 0..Slots-1).
	Slots int

	// MaxRetries bounds the load/unload step loops. Each attempt sends
	// one step command and polls once.
	MaxRetries int

	// PollInterval is the delay between load/unload attempts.
	PollInterval time.Duration

	// Keepalive rate-limits status refreshes requested outside of a
	// sequence (status command, API server).
	Keepalive time.Duration
}

// DefaultConfig returns the default orchestrator tunables.
func DefaultConfig() Config {
	return Config{
		Slots:        4,
		MaxRetries:   30,
		PollInterval: 200 * time.Millisecond,
		Keepalive:    time.Second,
	}
}

// Controller is the life-cycle state machine. Construct one per MMU with
// NewController; tests may instantiate as many independent instances as
// they like.
type Controller struct {
	cfg     Config
	link    Commander
	hooks   *HookRegistry
	tracker *Tracker
	metrics *Metrics
	log     zerolog.Logger

	busy atomic.Bool

	statusMu   sync.Mutex
	lastStatus time.Time
}

// NewController wires the orchestrator. metrics may be nil.
func NewController(cfg Config, link Commander, hooks *HookRegistry, metrics *Metrics, log zerolog.Logger) *Controller {
	return &Controller{
		cfg:     cfg,
		link:    link,
		hooks:   hooks,
		tracker: NewTracker(),
		metrics: metrics,
		log:     log.With().Str("component", "chamois").Logger(),
	}
}

// Tracker exposes the confirmed tool/filament state.
func (c *Controller) Tracker() *Tracker { return c.tracker }

// Busy reports whether a sequence is currently in flight.
func (c *Controller) Busy() bool { return c.busy.Load() }

// begin claims the single-sequence slot.
func (c *Controller) begin() bool {
	return c.busy.CompareAndSwap(false, true)
}

func (c *Controller) end() {
	c.busy.Store(false)
}

// fail records a sequence abort and passes the error through.
func (c *Controller) fail(err error) error {
	c.tracker.setState(StateError)
	c.metrics.noteSequenceError(errorKind(err))
	var le *LinkError
	if errors.As(err, &le) {
		c.metrics.noteLinkError()
	}
	return err
}

// errorKind maps an error to its metrics label.
func errorKind(err error) string {
	var (
		le *LinkError
		de *DeviceError
		te *TimeoutError
		he *HookError
	)
	switch {
	case errors.Is(err, ErrMmuUnreachable):
		return "unreachable"
	case errors.As(err, &te):
		return te.Phase + "_timeout"
	case errors.As(err, &he):
		return "hook"
	case errors.As(err, &le):
		return "link"
	case errors.As(err, &de):
		return "device"
	default:
		return "other"
	}
}

// Home initializes and homes the MMU. On ack the MMU is idle and the
// filament position is unknown until the next confirmed transition.
func (c *Controller) Home() error {
	if !c.begin() {
		return ErrBusy
	}
	defer c.end()
	if err := c.home(); err != nil {
		return c.fail(err)
	}
	return nil
}

// home runs the homing sequence. Caller holds the sequence slot.
func (c *Controller) home() error {
	c.log.Info().Msg("homing MMU")
	c.tracker.setState(StateHoming)
	if _, err := c.link.Send(cmdHome, nil); err != nil {
		var le *LinkError
		if errors.As(err, &le) && le.Op == "connect" {
			return fmt.Errorf("%w: %v", ErrMmuUnreachable, le.Err)
		}
		return err
	}
	c.tracker.noteUnknown()
	c.tracker.setState(StateIdle)
	c.refreshStatus(true)
	return nil
}

// SelectTool performs a full tool change to target. It is the handler
// behind the T<n> commands.
func (c *Controller) SelectTool(target int) error {
	if target < 0 || target >= c.cfg.Slots {
		return &ToolRangeError{Tool: target, Slots: c.cfg.Slots}
	}
	if !c.begin() {
		return ErrBusy
	}
	defer c.end()

	c.log.Info().Int("tool", target).Msg("tool change requested")

	if err := c.preflight(true); err != nil {
		return c.fail(err)
	}

	// Park the toolhead. No device command has been sent yet, so a
	// failure here leaves the printer in its pre-sequence state.
	c.tracker.setState(StateParking)
	if _, err := c.hooks.Invoke(PhasePark); err != nil {
		c.tracker.setState(StateIdle)
		c.metrics.noteSequenceError(errorKind(err))
		return err
	}

	if c.tracker.IsLoaded() {
		if err := c.unloadLoop(); err != nil {
			return c.fail(err)
		}
	}

	c.tracker.setState(StateSelecting)
	var idx [2]byte
	idx[0] = byte(target)
	idx[1] = byte(target >> 8)
	if _, err := c.link.Send(cmdSelectTool, idx[:]); err != nil {
		return c.fail(err)
	}
	// Provisional: the tool is selected but nothing is loaded yet.
	c.tracker.noteSelected(target)

	if err := c.loadLoop(); err != nil {
		return c.fail(err)
	}

	// The physical feed succeeded; an AFTER_LOAD failure is reported but
	// the tool still counts as loaded.
	var soft error
	if _, err := c.hooks.Invoke(PhaseAfterLoad); err != nil {
		c.log.Warn().Err(err).Msg("AFTER_LOAD macro failed, tool remains loaded")
		soft = err
	}

	c.tracker.setState(StateReleasing)
	if _, err := c.link.Send(cmdRelease, nil); err != nil {
		return c.fail(err)
	}
	c.tracker.noteLoaded(target)
	c.tracker.setState(StateIdle)
	c.metrics.noteToolChange()
	c.metrics.noteLoadedTool(target)
	c.refreshStatus(true)

	c.log.Info().Int("tool", target).Msg("tool change complete")
	return soft
}

// Disable unloads any filament and turns the MMU motors off. The
// motors-off command is sent even when the unload fails, as a best-effort
// safety action, unless the link itself is gone.
func (c *Controller) Disable() error {
	if !c.begin() {
		return ErrBusy
	}
	defer c.end()

	c.log.Info().Msg("disabling MMU")

	if err := c.preflight(false); err != nil {
		return c.fail(err)
	}

	var unloadErr error
	if c.tracker.IsLoaded() {
		c.tracker.setState(StateParking)
		if _, err := c.hooks.Invoke(PhasePark); err != nil {
			unloadErr = err
		} else {
			unloadErr = c.unloadLoop()
		}
		var le *LinkError
		if unloadErr != nil && errors.As(unloadErr, &le) {
			// The connection is gone; there is no point commanding the
			// motors off over a dead link.
			return c.fail(unloadErr)
		}
	}

	c.tracker.setState(StateDisabling)
	if _, err := c.link.Send(cmdDisable, nil); err != nil {
		if unloadErr != nil {
			err = errors.Join(unloadErr, err)
		}
		return c.fail(err)
	}
	c.tracker.setState(StateIdle)
	c.refreshStatus(true)

	if unloadErr != nil {
		c.tracker.setState(StateError)
		c.metrics.noteSequenceError(errorKind(unloadErr))
		c.log.Warn().Err(unloadErr).Msg("unload failed, motors turned off anyway")
		return unloadErr
	}
	c.log.Info().Msg("MMU disabled")
	return nil
}

// Halt restarts the MMU and re-establishes the link session. It is the
// only way to abort a stuck sequence and is safe to call from error
// recovery: every link operation uses bounded timeouts, so it cannot
// block indefinitely behind a hung session. Filament position is unknown
// afterwards; the operator must verify it before resuming.
func (c *Controller) Halt() error {
	c.log.Warn().Msg("halting MMU")
	c.tracker.setState(StateHalting)

	_, sendErr := c.link.Send(cmdHalt, nil)
	if err := c.link.Reset(); err != nil {
		c.tracker.setState(StateError)
		return fmt.Errorf("%w: %v", ErrMmuUnreachable, err)
	}
	c.tracker.noteUnknown()
	c.tracker.setState(StateIdle)

	if sendErr != nil {
		var de *DeviceError
		if errors.As(sendErr, &de) {
			return sendErr
		}
		// A link error while sending HALT is expected when the device is
		// wedged; the successful reset above is what matters.
		c.log.Debug().Err(sendErr).Msg("halt command did not ack before reset")
	}
	return nil
}

// preflight pings the device and refreshes its status. With autoHome
// set, a device reporting uninitialized is homed first. When the tracked
// filament position is unknown, the device's own report is adopted as
// the confirmed truth: it is a confirmed hardware reading, not an
// optimistic guess.
func (c *Controller) preflight(autoHome bool) error {
	if _, err := c.link.Send(cmdPing, nil); err != nil {
		return err
	}
	hw, err := c.link.PollStatus()
	if err != nil {
		return err
	}
	c.tracker.noteHardware(hw)

	if !hw.Initialized && autoHome {
		return c.home()
	}

	if c.tracker.Presence() == PresenceUnknown {
		if hw.Loaded {
			c.tracker.noteLoaded(hw.SelectedIndex)
		} else {
			c.tracker.noteEmpty()
		}
	}
	return nil
}

// unloadLoop backs the filament out of the toolhead. BEFORE_UNLOAD runs
// once, then each attempt sends one unload step, runs ON_UNLOAD and polls
// until the device reports the filament clear. Exhausting the retry
// budget is fatal; the tracked presence keeps its last confirmed value.
func (c *Controller) unloadLoop() error {
	c.tracker.setState(StateUnloading)
	if _, err := c.hooks.Invoke(PhaseBeforeUnload); err != nil {
		return err
	}

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if _, err := c.link.Send(cmdUnload, nil); err != nil {
			return err
		}
		if _, err := c.hooks.Invoke(PhaseOnUnload); err != nil {
			return err
		}
		hw, err := c.link.PollStatus()
		if err != nil {
			return err
		}
		c.tracker.noteHardware(hw)
		if !hw.Loaded {
			c.tracker.noteEmpty()
			c.log.Debug().Int("attempts", attempt).Msg("filament clear")
			return nil
		}
		c.metrics.noteRetry("unload")
		c.sleep()
	}
	return &TimeoutError{Phase: "unload", Attempts: c.cfg.MaxRetries}
}

// loadLoop feeds the selected filament into the toolhead. Each attempt
// sends one load step, runs ON_LOAD and polls until the device reports
// the filament caught. Presence stays Empty until RELEASE is acked.
func (c *Controller) loadLoop() error {
	c.tracker.setState(StateLoading)

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if _, err := c.link.Send(cmdLoad, nil); err != nil {
			return err
		}
		if _, err := c.hooks.Invoke(PhaseOnLoad); err != nil {
			return err
		}
		hw, err := c.link.PollStatus()
		if err != nil {
			return err
		}
		c.tracker.noteHardware(hw)
		if hw.Loaded {
			c.log.Debug().Int("attempts", attempt).Msg("filament caught")
			return nil
		}
		c.metrics.noteRetry("load")
		c.sleep()
	}
	return &TimeoutError{Phase: "load", Attempts: c.cfg.MaxRetries}
}

func (c *Controller) sleep() {
	if c.cfg.PollInterval > 0 {
		time.Sleep(c.cfg.PollInterval)
	}
}

// refreshStatus polls the device and caches its report. Unless forced,
// the poll is skipped while the previous one is younger than Keepalive.
func (c *Controller) refreshStatus(forced bool) {
	c.statusMu.Lock()
	if !forced && time.Since(c.lastStatus) < c.cfg.Keepalive {
		c.statusMu.Unlock()
		return
	}
	c.lastStatus = time.Now()
	c.statusMu.Unlock()

	hw, err := c.link.PollStatus()
	if err != nil {
		c.log.Debug().Err(err).Msg("status refresh failed")
		return
	}
	c.tracker.noteHardware(hw)
}

// GetStatus returns the orchestrator state for status queries and the
// API server.
func (c *Controller) GetStatus() map[string]any {
	if !c.Busy() {
		c.refreshStatus(false)
	}
	status := c.tracker.GetStatus()
	status["busy"] = c.Busy()
	return status
}
