// Package session keeps documents open between calls so queries can be
// issued over MCP or HTTP: open a page (or raw HTML), find nodes, inspect
// them by handle ID, release them, close the page.
//
// Handles returned to clients are the backend's handle IDs. They stay
// valid until released, until the session closes, or until the browser is
// recycled.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/domquery"
	"github.com/hazyhaar/domquery/dom"
	"github.com/hazyhaar/domquery/htmldoc"
	"github.com/hazyhaar/domquery/idgen"
	"github.com/hazyhaar/domquery/internal/browser"
	"github.com/hazyhaar/domquery/roddoc"
	"github.com/hazyhaar/domquery/trace"
)

var (
	// ErrUnknownSession is returned for session IDs that are not open.
	ErrUnknownSession = errors.New("session: unknown session")
	// ErrUnknownHandle is returned for handle IDs that are not live.
	ErrUnknownHandle = errors.New("session: unknown handle")
	// ErrNoBrowser is returned when a URL is opened without a browser.
	ErrNoBrowser = errors.New("session: no browser configured")
)

// Document is a dom.Document whose handles can be found again by ID.
type Document interface {
	dom.Document
	Lookup(id string) (dom.Handle, bool)
}

// Session is one open document.
type Session struct {
	ID      string    `json:"id"`
	URL     string    `json:"url,omitempty"`
	Created time.Time `json:"created"`

	doc  Document
	page *browser.Page
	html *htmldoc.Document
}

// Document returns the session's document.
func (s *Session) Document() Document { return s.doc }

// setContent replaces the document content.
func (s *Session) setContent(ctx context.Context, src string) error {
	if s.page != nil {
		s.doc.(*roddoc.Document).ReleaseAll(ctx)
		return s.page.SetContent(ctx, src)
	}
	return s.html.SetContent(src)
}

func (s *Session) navigate(ctx context.Context, url string) error {
	if s.page == nil {
		return ErrNoBrowser
	}
	s.doc.(*roddoc.Document).ReleaseAll(ctx)
	if err := s.page.Navigate(ctx, url); err != nil {
		return err
	}
	s.URL = url
	return nil
}

func (s *Session) close(ctx context.Context) error {
	if s.page == nil {
		return nil
	}
	s.doc.(*roddoc.Document).ReleaseAll(ctx)
	return s.page.Close()
}

// Manager owns the open sessions and, optionally, the browser they run in.
type Manager struct {
	browser *browser.Manager
	query   domquery.Config
	visible bool
	store   *trace.Store
	logger  *slog.Logger
	newID   idgen.Generator

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithBrowser enables URL sessions backed by Chrome.
func WithBrowser(b *browser.Manager) Option {
	return func(m *Manager) { m.browser = b }
}

// WithQueryConfig sets the timeout, poll interval and recorder every query
// starts from. Document is ignored.
func WithQueryConfig(c domquery.Config) Option {
	return func(m *Manager) { m.query = c }
}

// WithIncludeHidden makes queries match hidden nodes unless a request says
// otherwise.
func WithIncludeHidden(include bool) Option {
	return func(m *Manager) { m.visible = !include }
}

// WithTraceStore exposes the journal through the traces operation.
func WithTraceStore(s *trace.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithIDGenerator sets the session ID generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(m *Manager) { m.newID = g }
}

// NewManager creates a Manager. Without WithBrowser only HTML sessions can
// be opened.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		query:    *domquery.DefaultConfig(),
		visible:  true,
		logger:   slog.Default(),
		newID:    idgen.Prefixed("ses_", idgen.Default),
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	m.query.Document = nil
	if m.query.Logger == nil {
		m.query.Logger = m.logger
	}
	if m.browser != nil {
		m.browser.SetRecycleCallback(&browser.RecycleCallback{BeforeRecycle: m.dropBrowserSessions})
	}
	return m
}

// Open starts a session. With url set the page is loaded in Chrome; with
// only html set the document is parsed in memory unless a browser is
// available, in which case the HTML is loaded into a blank page.
func (m *Manager) Open(ctx context.Context, url, html string) (*Session, error) {
	s := &Session{ID: m.newID(), URL: url, Created: time.Now()}

	switch {
	case m.browser != nil:
		var p *browser.Page
		var err error
		if url != "" {
			p, err = m.browser.OpenPage(ctx, url)
		} else {
			p, err = m.browser.NewPage(ctx)
			if err == nil && html != "" {
				if err = p.SetContent(ctx, html); err != nil {
					p.Close()
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("session: open: %w", err)
		}
		s.page = p
		s.doc = roddoc.New(p.Page, roddoc.WithLogger(m.logger))
	case url != "":
		return nil, ErrNoBrowser
	default:
		doc, err := htmldoc.Parse(html, htmldoc.WithLogger(m.logger))
		if err != nil {
			return nil, fmt.Errorf("session: open: %w", err)
		}
		s.html = doc
		s.doc = doc
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.Info("session: opened", "session", s.ID, "url", url, "browser", s.page != nil)
	return s, nil
}

// Attach registers an existing document as a session.
func (m *Manager) Attach(doc Document) *Session {
	s := &Session{ID: m.newID(), Created: time.Now(), doc: doc}
	if h, ok := doc.(*htmldoc.Document); ok {
		s.html = h
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// List returns the open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()
	sortSessions(out)
	return out
}

// CloseSession closes one session and everything it holds.
func (m *Manager) CloseSession(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	m.logger.Info("session: closed", "session", id)
	return s.close(ctx)
}

// Close closes every session. The browser is left to its owner.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m.List() {
		if err := m.CloseSession(ctx, s.ID); err != nil && !errors.Is(err, ErrUnknownSession) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dropBrowserSessions forgets Chrome-backed sessions before the process
// they live in is killed.
func (m *Manager) dropBrowserSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.page != nil {
			delete(m.sessions, id)
			m.logger.Warn("session: dropped by browser recycle", "session", id)
		}
	}
}
