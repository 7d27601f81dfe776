// Package browser owns the Chrome process behind live documents: launch with
// accessibility features enabled, connect via Rod, open stealth pages, and
// recycle the process when it ages or grows.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher. A remote Chrome must have
	// been started with LaunchArgs applied for computed names to be exact.
	RemoteURL string

	// Bin overrides the Chrome binary. Empty = launcher lookup/download.
	Bin string

	// Headful shows the browser window. Default: headless.
	Headful bool

	// Stealth opens pages through go-rod/stealth.
	Stealth bool

	NoSandbox bool

	// Args are extra Chrome switches ("--name" or "--name=value").
	Args []string

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// MemoryLimit in bytes. Recycle Chrome when exceeded. Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of a Chrome process. Default: 4h.
	RecycleInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RecycleCallback is called around Chrome recycling. Every page and handle
// of the old process is gone once AfterRecycle runs.
type RecycleCallback struct {
	BeforeRecycle func()
	AfterRecycle  func(browser *rod.Browser)
}

// Manager manages Chrome lifecycle.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
	cb      *RecycleCallback
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// SetRecycleCallback sets the callback for recycle events.
func (m *Manager) SetRecycleCallback(cb *RecycleCallback) {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
}

// Start launches Chrome (or connects to a remote instance) and starts the
// recycle monitor, which stops with ctx.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}

	b, err := m.launch()
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()

	go m.monitorLoop(ctx)

	return b, nil
}

// Browser returns the current Rod browser handle, nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Recycle kills Chrome, restarts it, and runs the recycle callback.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}
	return m.recycleLocked()
}

// Close shuts down Chrome.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

// newLauncher configures, but does not start, a local Chrome.
func (m *Manager) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(!m.cfg.Headful).
		NoSandbox(m.cfg.NoSandbox).
		Set("disable-blink-features", "AutomationControlled")
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	return applyArgs(l, LaunchArgs(m.cfg.Args))
}

func (m *Manager) launch() (*rod.Browser, error) {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := m.newLauncher()
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	return b, nil
}

func (m *Manager) recycleLocked() error {
	log := m.cfg.Logger
	log.Info("browser: recycling", "uptime", time.Since(m.startAt))

	if m.cb != nil && m.cb.BeforeRecycle != nil {
		m.cb.BeforeRecycle()
	}
	if err := m.cleanup(); err != nil {
		log.Warn("browser: cleanup during recycle", "error", err)
	}

	b, err := m.launch()
	if err != nil {
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()

	if m.cb != nil && m.cb.AfterRecycle != nil {
		m.cb.AfterRecycle(b)
	}
	log.Info("browser: recycled successfully")
	return nil
}

func (m *Manager) cleanup() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}

// monitorInterval is how often the monitor samples age and heap.
const monitorInterval = 30 * time.Second

func (m *Manager) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !m.check(ctx) {
			return
		}
	}
}

// check runs one monitor pass, recycling Chrome when a limit is crossed.
// It reports false once there is no browser left to watch.
func (m *Manager) check(ctx context.Context) bool {
	m.mu.RLock()
	b, startAt, stopped := m.browser, m.startAt, m.closed || m.browser == nil
	m.mu.RUnlock()
	if stopped {
		return false
	}

	var heap int64
	age := time.Since(startAt)
	if age <= m.cfg.RecycleInterval {
		var err error
		if heap, err = peakHeap(b); err != nil {
			m.cfg.Logger.Debug("browser: heap sample failed", "error", err)
		}
	}

	reason := recycleReason(m.cfg, age, heap)
	if reason == "" {
		return true
	}
	m.cfg.Logger.Info("browser: recycle due", "reason", reason, "age", age, "heap", heap, "limit", m.cfg.MemoryLimit)
	if err := m.Recycle(ctx); err != nil {
		m.cfg.Logger.Error("browser: recycle failed", "reason", reason, "error", err)
	}
	return true
}

// recycleReason names the limit a process of the given age and heap size
// has crossed, or returns "" while it is within both. Age wins over heap.
func recycleReason(cfg Config, age time.Duration, heap int64) string {
	switch {
	case age > cfg.RecycleInterval:
		return "age"
	case heap > cfg.MemoryLimit:
		return "memory"
	}
	return ""
}

// peakHeap returns the largest V8 heap among the open pages, read through
// Runtime.getHeapUsage so it does not depend on performance.memory.
func peakHeap(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil {
		return 0, fmt.Errorf("browser: list pages: %w", err)
	}
	if len(pages) == 0 {
		return 0, nil
	}
	var peak int64
	for _, p := range pages {
		res, err := proto.RuntimeGetHeapUsage{}.Call(p)
		if err != nil {
			return peak, fmt.Errorf("browser: heap usage: %w", err)
		}
		if used := int64(res.UsedSize); used > peak {
			peak = used
		}
	}
	return peak, nil
}
