package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// navigateTimeout bounds Navigate plus WaitLoad.
const navigateTimeout = 30 * time.Second

// Page wraps a Rod page with stealth and resource blocking applied.
type Page struct {
	Page   *rod.Page
	URL    string
	router *rod.HijackRouter
}

// NewPage opens a blank page. Stealth and resource blocking follow the
// manager config.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	p := &Page{Page: page, URL: "about:blank"}
	if len(m.cfg.ResourceBlocking) > 0 {
		p.router = blockResources(page, m.cfg.ResourceBlocking)
	}
	return p, nil
}

// OpenPage opens a page and navigates it to url.
func (m *Manager) OpenPage(ctx context.Context, url string) (*Page, error) {
	p, err := m.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Navigate(ctx, url); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Navigate loads url and waits for the load event. A load timeout is not an
// error: the document is queryable as soon as it exists.
func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()

	if err := p.Page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	p.URL = url
	if err := p.Page.Context(navCtx).WaitLoad(); err != nil && navCtx.Err() == nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return nil
}

// SetContent replaces the page document with html.
func (p *Page) SetContent(ctx context.Context, html string) error {
	if err := p.Page.Context(ctx).SetDocumentContent(html); err != nil {
		return fmt.Errorf("browser: set content: %w", err)
	}
	return nil
}

// Close stops request interception and closes the page.
func (p *Page) Close() error {
	if p.router != nil {
		if err := p.router.Stop(); err != nil {
			return fmt.Errorf("browser: stop router: %w", err)
		}
		p.router = nil
	}
	if p.Page != nil {
		return p.Page.Close()
	}
	return nil
}
