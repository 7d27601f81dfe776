package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/domquery"
	"github.com/hazyhaar/domquery/internal/browser"
	"github.com/hazyhaar/domquery/internal/config"
	"github.com/hazyhaar/domquery/internal/dbopen"
	"github.com/hazyhaar/domquery/trace"
)

// FileConfig is the YAML configuration layout.
type FileConfig = config.Config

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*FileConfig, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes YAML configuration and applies defaults.
func ParseConfig(data []byte) (*FileConfig, error) {
	return config.Parse(data)
}

// DefaultFileConfig is the configuration of an empty file.
func DefaultFileConfig() *FileConfig {
	return config.Default()
}

// Runtime is a Manager plus everything it was built on.
type Runtime struct {
	*Manager
	Browser  *browser.Manager
	Recorder trace.Recorder

	db *sql.DB
}

// Start builds a Runtime from a file configuration. With withBrowser, Chrome
// is launched (or the remote one connected) before Start returns. The
// sqlite driver must be registered by the caller when trace.db is set.
func Start(ctx context.Context, fc *FileConfig, withBrowser bool, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	qc := domquery.Config{
		Timeout:      *fc.Query.Timeout,
		PollInterval: fc.Query.PollInterval,
		Logger:       logger,
	}
	if qc.Timeout < 0 {
		qc.Timeout = domquery.NoTimeout
	}

	var store *trace.Store
	switch {
	case fc.Trace.DB != "":
		db, err := dbopen.Open(fc.Trace.DB, dbopen.WithMkdirAll())
		if err != nil {
			return nil, fmt.Errorf("session: trace db: %w", err)
		}
		rt.db = db
		store = trace.NewStore(db, trace.WithLogger(logger))
		rt.Recorder = store
		if err := store.Init(); err != nil {
			rt.closeRecorder()
			return nil, fmt.Errorf("session: trace db: %w", err)
		}
	case fc.Trace.RemoteURL != "":
		rt.Recorder = trace.NewRemoteStore(fc.Trace.RemoteURL, trace.WithLogger(logger))
	}
	qc.Recorder = rt.Recorder

	opts := []Option{
		WithQueryConfig(qc),
		WithIncludeHidden(fc.Query.IncludeHidden),
		WithLogger(logger),
	}
	if store != nil {
		opts = append(opts, WithTraceStore(store))
	}

	if withBrowser {
		rt.Browser = browser.NewManager(browser.Config{
			RemoteURL:        fc.Browser.Remote,
			Bin:              fc.Browser.Bin,
			Headful:          fc.Browser.Headful,
			Stealth:          fc.Browser.Stealth,
			NoSandbox:        fc.Browser.NoSandbox,
			Args:             fc.Browser.Args,
			ResourceBlocking: fc.Browser.ResourceBlocking,
			MemoryLimit:      fc.Browser.MemoryLimit,
			RecycleInterval:  fc.Browser.RecycleInterval,
			Logger:           logger,
		})
		if _, err := rt.Browser.Start(ctx); err != nil {
			rt.closeRecorder()
			return nil, err
		}
		opts = append(opts, WithBrowser(rt.Browser))
	}

	rt.Manager = NewManager(opts...)
	return rt, nil
}

// Close closes the sessions, the browser and the recorder.
func (rt *Runtime) Close(ctx context.Context) error {
	err := rt.Manager.Close(ctx)
	if rt.Browser != nil {
		if berr := rt.Browser.Close(); berr != nil && err == nil {
			err = berr
		}
	}
	rt.closeRecorder()
	return err
}

func (rt *Runtime) closeRecorder() {
	if rt.Recorder != nil {
		rt.Recorder.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
}
