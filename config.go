package domquery

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/domquery/dom"
	"github.com/hazyhaar/domquery/trace"
)

const (
	// DefaultTimeout bounds Find, FindAll and WaitFor when nothing else is set.
	DefaultTimeout = 3 * time.Second
	// DefaultPollInterval is the pause between two attempts.
	DefaultPollInterval = 50 * time.Millisecond
	// NoTimeout retries until success. No timer is armed.
	NoTimeout time.Duration = -1

	minPollInterval = 10 * time.Millisecond
)

// Config carries the defaults every call falls back to. It is read, and
// copied, when a call starts; changing it afterwards only affects later
// calls. Callers sequence writes themselves (typically once per test).
type Config struct {
	// Timeout: 0 means a single attempt, NoTimeout retries forever.
	Timeout time.Duration
	// PollInterval is clamped to 10ms. Zero means DefaultPollInterval.
	PollInterval time.Duration
	// Document is queried when no WithDocument option is given.
	Document dom.Document

	Logger *slog.Logger
	// Recorder, when set, receives one entry per attempt.
	Recorder trace.Recorder
	// InternalFrame overrides IsInternalFrame for stack attribution.
	InternalFrame func(Frame) bool
}

// DefaultConfig returns a Config with the package defaults and no document.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// Snapshot returns a copy of c for a later Restore.
func (c *Config) Snapshot() Config {
	if c == nil {
		return *DefaultConfig()
	}
	return *c
}

// Restore overwrites c with a snapshot.
func (c *Config) Restore(s Config) {
	*c = s
}

// Configure applies fn to c and returns the configuration as it was before.
//
//	prev := cfg.Configure(func(c *domquery.Config) { c.Timeout = 0 })
//	defer cfg.Restore(prev)
func (c *Config) Configure(fn func(*Config)) Config {
	prev := *c
	fn(c)
	return prev
}

// settings is the per-call copy of a Config.
type settings struct {
	timeout       time.Duration
	pollInterval  time.Duration
	document      dom.Document
	logger        *slog.Logger
	recorder      trace.Recorder
	internalFrame func(Frame) bool
}

func (c *Config) settings() settings {
	if c == nil {
		c = DefaultConfig()
	}
	s := settings{
		timeout:       c.Timeout,
		pollInterval:  clampPoll(c.PollInterval),
		document:      c.Document,
		logger:        c.Logger,
		recorder:      c.Recorder,
		internalFrame: c.InternalFrame,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s settings) attributor() StackAttributor {
	return StackAttributor{Internal: s.internalFrame}
}

func clampPoll(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultPollInterval
	}
	if d < minPollInterval {
		return minPollInterval
	}
	return d
}
