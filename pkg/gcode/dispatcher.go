// Package gcode provides the host command surface: named command
// registration and line dispatch in the style of a printer console.
// Modules register handlers (T0, CHAMOIS_HOME, ...) and the host feeds
// operator input through Run.
package gcode

import (
	"fmt"
	"strings"
	"sync"
)

// Command is one parsed command invocation.
type Command struct {
	Name   string
	Params map[string]string

	responses []string
}

// Respond queues an informational message for the operator console.
func (c *Command) Respond(format string, args ...any) {
	c.responses = append(c.responses, fmt.Sprintf(format, args...))
}

// Responses returns the messages queued by the handler.
func (c *Command) Responses() []string { return c.responses }

// Handler executes one registered command.
type Handler func(cmd *Command) error

type registration struct {
	handler Handler
	help    string
}

// Dispatcher maps command names to handlers. It is safe for concurrent
// registration and dispatch.
type Dispatcher struct {
	mu       sync.RWMutex
	commands map[string]registration
	respond  func(string)
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: make(map[string]registration)}
}

// SetResponder sets the sink for handler responses (the operator
// console). Without one, responses are discarded.
func (d *Dispatcher) SetResponder(fn func(string)) {
	d.mu.Lock()
	d.respond = fn
	d.mu.Unlock()
}

// Register binds a handler to a command name. Re-registering a name
// replaces the previous handler.
func (d *Dispatcher) Register(name, help string, handler Handler) {
	d.mu.Lock()
	d.commands[strings.ToUpper(name)] = registration{handler: handler, help: help}
	d.mu.Unlock()
}

// Unregister removes a command.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	delete(d.commands, strings.ToUpper(name))
	d.mu.Unlock()
}

// Has reports whether a command name is registered.
func (d *Dispatcher) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.commands[strings.ToUpper(name)]
	return ok
}

// Help returns the help string for a command.
func (d *Dispatcher) Help(name string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.commands[strings.ToUpper(name)].help
}

// Names returns all registered command names.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	return names
}

// Run parses and executes one command line. Lines are of the form
// "NAME PARAM=VALUE ...". Comments (";" and trailing "#") and blank
// lines are ignored.
func (d *Dispatcher) Run(line string) error {
	cmd, ok := parseLine(line)
	if !ok {
		return nil
	}

	d.mu.RLock()
	reg, found := d.commands[cmd.Name]
	respond := d.respond
	d.mu.RUnlock()

	if !found {
		return fmt.Errorf("gcode: unknown command %q", cmd.Name)
	}
	err := reg.handler(cmd)
	if respond != nil {
		for _, msg := range cmd.responses {
			respond(msg)
		}
	}
	return err
}

// RunScript executes a newline-separated sequence of command lines,
// stopping at the first error.
func (d *Dispatcher) RunScript(script string) error {
	for _, line := range strings.Split(script, "\n") {
		if err := d.Run(line); err != nil {
			return err
		}
	}
	return nil
}

// parseLine splits a raw line into a Command. ok is false for blank and
// comment-only lines.
func parseLine(line string) (*Command, bool) {
	if idx := strings.IndexAny(line, ";#"); idx >= 0 {
		line = line[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}

	cmd := &Command{
		Name:   strings.ToUpper(fields[0]),
		Params: make(map[string]string),
	}
	for _, field := range fields[1:] {
		if key, value, found := strings.Cut(field, "="); found {
			cmd.Params[strings.ToUpper(key)] = value
		} else {
			cmd.Params[strings.ToUpper(field)] = ""
		}
	}
	return cmd, true
}
