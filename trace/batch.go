package trace

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultBuffer   = 1024
	maxBatch        = 64
	defaultInterval = time.Second
)

type options struct {
	logger   *slog.Logger
	interval time.Duration
	buffer   int
	client   *http.Client
}

// Option configures a Store or a RemoteStore.
type Option func(*options)

// WithLogger sets the logger used for flush failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFlushInterval sets how long a partial batch may wait. Default 1s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithBuffer sets how many entries may queue before RecordAsync drops.
func WithBuffer(n int) Option {
	return func(o *options) { o.buffer = n }
}

// WithHTTPClient sets the client a RemoteStore posts with.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), interval: defaultInterval, buffer: defaultBuffer}
	for _, fn := range opts {
		fn(&o)
	}
	if o.interval <= 0 {
		o.interval = defaultInterval
	}
	if o.buffer <= 0 {
		o.buffer = defaultBuffer
	}
	return o
}

// batcher queues entries and hands them to flush in batches of at most
// maxBatch, from a single goroutine.
type batcher struct {
	ch       chan *Entry
	done     chan struct{}
	once     sync.Once
	interval time.Duration
	flush    func([]*Entry)
}

func startBatcher(o options, flush func([]*Entry)) *batcher {
	b := &batcher{
		ch:       make(chan *Entry, o.buffer),
		done:     make(chan struct{}),
		interval: o.interval,
		flush:    flush,
	}
	go b.run()
	return b
}

// RecordAsync queues an entry. It never blocks: the entry is dropped when
// the buffer is full.
func (b *batcher) RecordAsync(e *Entry) {
	select {
	case b.ch <- e:
	default:
	}
}

// Close flushes what is queued and stops the flush goroutine. RecordAsync
// must not be called after Close.
func (b *batcher) Close() error {
	b.once.Do(func() {
		close(b.ch)
		<-b.done
	})
	return nil
}

func (b *batcher) run() {
	defer close(b.done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	batch := make([]*Entry, 0, maxBatch)
	emit := func() {
		if len(batch) > 0 {
			b.flush(batch)
			batch = batch[:0]
		}
	}
	for {
		select {
		case e, ok := <-b.ch:
			if !ok {
				emit()
				return
			}
			batch = append(batch, e)
			if len(batch) == maxBatch {
				emit()
			}
		case <-ticker.C:
			emit()
		}
	}
}
