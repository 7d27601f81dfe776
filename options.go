package domquery

import (
	"time"

	"github.com/hazyhaar/domquery/dom"
)

// FindOption configures a single Find or FindAll call.
type FindOption func(*findOptions)

type findOptions struct {
	root         dom.Handle
	document     dom.Document
	visible      *bool
	timeout      *time.Duration
	pollInterval time.Duration
}

// WithRoot restricts the search to the subtree under h. When h is a frame
// element the search runs in the frame's document. The caller keeps
// ownership of h.
func WithRoot(h dom.Handle) FindOption {
	return func(o *findOptions) { o.root = h }
}

// WithDocument overrides Config.Document for one call.
func WithDocument(d dom.Document) FindOption {
	return func(o *findOptions) { o.document = d }
}

// WithVisible sets whether only visible nodes match. Default true.
func WithVisible(visible bool) FindOption {
	return func(o *findOptions) { o.visible = &visible }
}

// WithTimeout overrides Config.Timeout for one call. 0 means a single
// attempt, NoTimeout retries until a node is found.
func WithTimeout(d time.Duration) FindOption {
	return func(o *findOptions) { o.timeout = &d }
}

// WithPollInterval overrides Config.PollInterval for one call.
func WithPollInterval(d time.Duration) FindOption {
	return func(o *findOptions) { o.pollInterval = d }
}

// resolved is a findOptions with every default filled in.
type resolved struct {
	root         dom.Handle
	document     dom.Document
	visible      bool
	timeout      time.Duration
	pollInterval time.Duration
}

func (s settings) resolveFind(opts []FindOption) resolved {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	r := resolved{
		root:         o.root,
		document:     s.document,
		visible:      true,
		timeout:      s.timeout,
		pollInterval: s.pollInterval,
	}
	if o.document != nil {
		r.document = o.document
	}
	if o.visible != nil {
		r.visible = *o.visible
	}
	if o.timeout != nil {
		r.timeout = *o.timeout
	}
	if o.pollInterval != 0 {
		r.pollInterval = clampPoll(o.pollInterval)
	}
	return r
}

// WaitOption configures a single WaitFor call.
type WaitOption func(*waitOptions)

type waitOptions struct {
	timeout      *time.Duration
	pollInterval time.Duration
	op           string
}

// WithinTimeout overrides Config.Timeout for one WaitFor call.
func WithinTimeout(d time.Duration) WaitOption {
	return func(o *waitOptions) { o.timeout = &d }
}

// WithWaitPollInterval overrides Config.PollInterval for one WaitFor call.
func WithWaitPollInterval(d time.Duration) WaitOption {
	return func(o *waitOptions) { o.pollInterval = d }
}

// WithOperation names the wait in logs and attempt traces.
func WithOperation(name string) WaitOption {
	return func(o *waitOptions) { o.op = name }
}
