// Command domquery finds nodes in web pages by role, accessible name, text
// and selector.
//
// Usage:
//
//	domquery -url https://example.com -role link -name "More information..."
//	domquery -html page.html -no-browser -role button -all
//	domquery -mcp                        # MCP server on stdio
//	domquery -http 127.0.0.1:8088        # HTTP API
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domquery/session"
)

const version = "0.3.0"

type options struct {
	configPath string
	mcp        bool
	httpAddr   string
	noBrowser  bool

	url         string
	htmlPath    string
	all         bool
	role        string
	name        string
	namePattern string
	text        string
	textPattern string
	selector    string
	timeout     string
	hidden      bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to domquery.yaml config file")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP on stdio")
	flag.StringVar(&o.httpAddr, "http", "", "serve the HTTP API on this address")
	flag.BoolVar(&o.noBrowser, "no-browser", false, "do not start Chrome; only HTML documents can be queried")
	flag.StringVar(&o.url, "url", "", "page to query")
	flag.StringVar(&o.htmlPath, "html", "", "HTML file to query")
	flag.BoolVar(&o.all, "all", false, "return every match instead of exactly one")
	flag.StringVar(&o.role, "role", "", "ARIA role")
	flag.StringVar(&o.name, "name", "", "exact accessible name")
	flag.StringVar(&o.namePattern, "name-pattern", "", "accessible name regular expression")
	flag.StringVar(&o.text, "text", "", "exact text content")
	flag.StringVar(&o.textPattern, "text-pattern", "", "text content regular expression")
	flag.StringVar(&o.selector, "selector", "", "CSS selector")
	flag.StringVar(&o.timeout, "timeout", "", "retry budget, e.g. 2s; 0 = one attempt, negative = none (default from config)")
	flag.BoolVar(&o.hidden, "include-hidden", false, "match hidden nodes too")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("domquery: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	fc := session.DefaultFileConfig()
	if o.configPath != "" {
		var err error
		if fc, err = session.LoadConfigFile(o.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if o.hidden {
		fc.Query.IncludeHidden = true
	}

	switch {
	case o.mcp:
		return runMCP(ctx, logger, fc, o)
	case o.httpAddr != "":
		fc.HTTP.Addr = o.httpAddr
		return runHTTP(ctx, logger, fc, o)
	case o.url != "" || o.htmlPath != "":
		return runQuery(ctx, logger, fc, o)
	}

	fmt.Fprintln(os.Stderr, "usage: domquery -mcp | -http <addr> | (-url <url> | -html <file>) [query flags]")
	flag.PrintDefaults()
	os.Exit(2)
	return nil
}

func runMCP(ctx context.Context, logger *slog.Logger, fc *session.FileConfig, o options) error {
	rt, err := session.Start(ctx, fc, !o.noBrowser, logger)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	srv := mcp.NewServer(&mcp.Implementation{Name: "domquery", Version: version}, nil)
	rt.RegisterMCP(srv)

	logger.Info("domquery: mcp on stdio", "browser", rt.Browser != nil)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

func runHTTP(ctx context.Context, logger *slog.Logger, fc *session.FileConfig, o options) error {
	rt, err := session.Start(ctx, fc, !o.noBrowser, logger)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	srv := &http.Server{
		Addr:              fc.HTTP.Addr,
		Handler:           rt.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("domquery: http starting", "addr", fc.HTTP.Addr, "browser", rt.Browser != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("domquery: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runQuery(ctx context.Context, logger *slog.Logger, fc *session.FileConfig, o options) error {
	var html string
	if o.htmlPath != "" {
		data, err := os.ReadFile(o.htmlPath)
		if err != nil {
			return err
		}
		html = string(data)
	}

	rt, err := session.Start(ctx, fc, !o.noBrowser, logger)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	s, err := rt.Open(ctx, o.url, html)
	if err != nil {
		return err
	}

	req := &session.QueryRequest{
		Session:     s.ID,
		Role:        o.role,
		Name:        o.name,
		NamePattern: o.namePattern,
		Text:        o.text,
		TextPattern: o.textPattern,
		Selector:    o.selector,
	}
	if o.timeout != "" {
		d, err := time.ParseDuration(o.timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		ms := d.Milliseconds()
		if d < 0 {
			ms = -1
		}
		req.TimeoutMs = &ms
	}

	var resp *session.FindResponse
	if o.all {
		resp, err = rt.FindAll(ctx, req)
	} else {
		resp, err = rt.Find(ctx, req)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp.Nodes)
}
