// Package search drives a feed engine from interactive text input.
package search

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bryan-buckman/headlines/internal/feed"
	"github.com/bryan-buckman/headlines/internal/model"
)

// DefaultDebounce is the quiet period before a submitted query is loaded.
const DefaultDebounce = 500 * time.Millisecond

// Feed is the part of feed.Engine the controller drives.
type Feed interface {
	Invalidate(filters model.Filters) feed.Snapshot
	Reset() feed.Snapshot
}

// Controller debounces query submissions. Every submission supersedes the
// one pending before it; a superseded submission never reaches the feed.
type Controller struct {
	feed     Feed
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	query  string
	gen    uint64
	timer  *time.Timer
	closed bool
}

// NewController creates a controller. debounce <= 0 selects DefaultDebounce.
func NewController(f Feed, debounce time.Duration, logger *slog.Logger) *Controller {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		feed:     f,
		debounce: debounce,
		logger:   logger.With("component", "search"),
	}
}

// UpdateQuery records the text shown in the search box. It loads nothing.
func (c *Controller) UpdateQuery(text string) {
	c.mu.Lock()
	c.query = text
	c.mu.Unlock()
}

// Query returns the text last passed to UpdateQuery.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// SubmitQuery cancels any pending submission and schedules a load of text
// after the debounce period. A blank query clears the results immediately.
func (c *Controller) SubmitQuery(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.cancelPendingLocked()

	q := strings.TrimSpace(text)
	if q == "" {
		c.feed.Reset()
		return
	}
	gen := c.gen
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen, q) })
}

// Close drops any pending submission. Later submissions are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelPendingLocked()
}

func (c *Controller) cancelPendingLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// fire runs on the timer goroutine. Holding mu while invalidating keeps a
// concurrent SubmitQuery from slipping between the check and the load.
func (c *Controller) fire(gen uint64, q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		c.logger.Debug("dropping superseded query", "query", q)
		return
	}
	c.timer = nil
	c.logger.Debug("loading query", "query", q)
	c.feed.Invalidate(model.Filters{Query: q})
}
