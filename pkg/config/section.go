package config

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Section provides typed access to one config section. Getters take an
// optional fallback; without one, a missing option is an error. Every
// getter marks its option as accessed for unused-option reporting.
type Section struct {
	name    string
	options map[string]string

	mu       sync.Mutex
	accessed map[string]struct{}
}

func newSection(name string, options map[string]string) *Section {
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[strings.ToLower(k)] = v
	}
	return &Section{
		name:     name,
		options:  opts,
		accessed: make(map[string]struct{}),
	}
}

// Name returns the section name.
func (s *Section) Name() string { return s.name }

// HasOption reports whether the option is present.
func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// lookup fetches the raw value and records the access.
func (s *Section) lookup(option string) (string, bool) {
	key := strings.ToLower(option)
	s.mu.Lock()
	s.accessed[key] = struct{}{}
	s.mu.Unlock()
	v, ok := s.options[key]
	return v, ok
}

// Get returns a string option.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	if v, ok := s.lookup(option); ok {
		return v, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return "", ErrMissingOption(s.name, option)
}

// GetInt returns an integer option.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	v, ok := s.lookup(option)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return 0, ErrMissingOption(s.name, option)
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, ErrInvalidValue(s.name, option, v, "integer")
	}
	return i, nil
}

// GetIntBounded returns an integer option constrained to [minVal, maxVal].
func (s *Section) GetIntBounded(option string, minVal, maxVal int, fallback ...int) (int, error) {
	i, err := s.GetInt(option, fallback...)
	if err != nil {
		return 0, err
	}
	if i < minVal {
		return 0, ErrOutOfRange(s.name, option, i, "must have minimum of "+strconv.Itoa(minVal))
	}
	if i > maxVal {
		return 0, ErrOutOfRange(s.name, option, i, "must have maximum of "+strconv.Itoa(maxVal))
	}
	return i, nil
}

// GetFloat returns a float option.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	v, ok := s.lookup(option)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return 0, ErrMissingOption(s.name, option)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, ErrInvalidValue(s.name, option, v, "float")
	}
	return f, nil
}

// GetSeconds returns a duration option expressed in seconds, the
// conventional unit for printer.cfg timing values.
func (s *Section) GetSeconds(option string, fallback ...time.Duration) (time.Duration, error) {
	var fb []float64
	if len(fallback) > 0 {
		fb = []float64{fallback[0].Seconds()}
	}
	secs, err := s.GetFloat(option, fb...)
	if err != nil {
		return 0, err
	}
	if secs < 0 {
		return 0, ErrOutOfRange(s.name, option, secs, "must have minimum of 0")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// GetBool returns a boolean option. Accepted spellings: 1/0, true/false,
// yes/no, on/off.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	v, ok := s.lookup(option)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return false, ErrMissingOption(s.name, option)
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, ErrInvalidValue(s.name, option, v, "boolean (true/false/yes/no/on/off/1/0)")
}

// UnusedOptions returns the options never read by any getter.
func (s *Section) UnusedOptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unused []string
	for opt := range s.options {
		if _, ok := s.accessed[opt]; !ok {
			unused = append(unused, opt)
		}
	}
	return unused
}

// RawOptions returns a copy of all options in the section.
func (s *Section) RawOptions() map[string]string {
	result := make(map[string]string, len(s.options))
	for k, v := range s.options {
		result[k] = v
	}
	return result
}
