// Package feed turns a page-numbered article source into an incrementally
// loaded, cancelable feed session.
package feed

//go:generate mockgen -source=engine.go -destination=mocks/mock_source.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/bryan-buckman/headlines/internal/metrics"
	"github.com/bryan-buckman/headlines/internal/model"
	"github.com/google/uuid"
)

// Source fetches one page of articles. Implementations must be safe to retry.
type Source interface {
	FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error)
}

// ErrClosed is returned by WaitIdle once the engine has been closed.
var ErrClosed = errors.New("feed engine closed")

// Engine owns at most one feed session and at most one in-flight page load.
// Starting a new session supersedes the previous one: its load is canceled
// and any result it still produces is discarded.
type Engine struct {
	src      Source
	pageSize int
	logger   *slog.Logger

	baseCtx  context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	gen     uint64
	session *session
	cancel  context.CancelFunc
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

type session struct {
	id      string
	filters model.Filters
	state   State
	page    int // page loading, last loaded, or failed
	loaded  int // highest contiguous page loaded, -1 before the first
	items   []model.Article
	hasNext bool
	err     error
}

// NewEngine creates an engine in the Empty state. pageSize <= 0 selects
// model.DefaultPageSize.
func NewEngine(src Source, pageSize int, logger *slog.Logger) *Engine {
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		src:      src,
		pageSize: pageSize,
		logger:   logger.With("component", "feed"),
		baseCtx:  ctx,
		shutdown: cancel,
		subs:     make(map[int]chan Snapshot),
	}
}

// Start discards the current session, cancels its in-flight load and begins
// a new session for filters with an immediate load of page 0.
func (e *Engine) Start(filters model.Filters) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.snapshotLocked()
	}
	e.supersedeLocked()
	e.session = &session{
		id:      uuid.NewString(),
		filters: filters.Normalize(),
		loaded:  -1,
	}
	e.logger.Debug("session started", "session", e.session.id, "generation", e.gen,
		"country", e.session.filters.Country, "category", e.session.filters.Category, "query", e.session.filters.Query)
	e.launchLocked(model.FirstPageIndex)
	return e.snapshotLocked()
}

// Invalidate replaces the session with a fresh one for new filters. Items
// loaded by the old session are discarded.
func (e *Engine) Invalidate(filters model.Filters) Snapshot {
	return e.Start(filters)
}

// Reset drops the session entirely, leaving the engine Empty.
func (e *Engine) Reset() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.snapshotLocked()
	}
	e.supersedeLocked()
	e.session = nil
	e.publishLocked()
	return e.snapshotLocked()
}

// RequestMore loads the next page. It reports false, doing nothing, unless the
// session is Loaded and the last page announced more.
func (e *Engine) RequestMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	if e.closed || s == nil || s.state != StateLoaded || !s.hasNext {
		return false
	}
	e.launchLocked(s.loaded + 1)
	return true
}

// Retry reloads the page whose load failed, keeping already loaded items.
func (e *Engine) Retry() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	if e.closed || s == nil || s.state != StateError {
		return false
	}
	e.launchLocked(s.page)
	return true
}

// Snapshot returns the current session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers an observer. The channel receives the current state
// immediately and then every transition; a slow reader only ever finds the
// most recent snapshot pending. The returned func unsubscribes and closes
// the channel.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	ch <- e.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
		})
	}
}

// WaitIdle blocks until no page load is in flight and returns that state.
func (e *Engine) WaitIdle(ctx context.Context) (Snapshot, error) {
	ch, unsubscribe := e.Subscribe()
	defer unsubscribe()
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return Snapshot{}, ErrClosed
			}
			if snap.State != StateLoading {
				return snap, nil
			}
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

// Close cancels any in-flight load, waits for it to finish and closes all
// subscriber channels.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.gen++
	e.shutdown()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// supersedeLocked invalidates every outstanding load.
func (e *Engine) supersedeLocked() {
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) launchLocked(page int) {
	s := e.session
	s.state = StateLoading
	s.page = page
	s.err = nil

	ctx, cancel := context.WithCancel(e.baseCtx)
	e.cancel = cancel
	req := model.PageRequest{Filters: s.filters, Index: page, Size: e.pageSize}
	gen := e.gen
	sessionID := s.id

	e.publishLocked()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		result, err := e.src.FetchPage(ctx, req)
		e.apply(gen, sessionID, page, result, err)
	}()
}

func (e *Engine) apply(gen uint64, sessionID string, page int, result model.Page, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || e.session == nil || e.session.id != sessionID {
		metrics.RecordStale()
		e.logger.Debug("discarding superseded result", "session", sessionID, "generation", gen, "page", page)
		return
	}

	s := e.session
	if err != nil {
		s.state = StateError
		s.err = err
		metrics.RecordPageLoad("error")
		e.logger.Warn("page load failed", "session", s.id, "page", page, "error", err)
	} else {
		s.state = StateLoaded
		s.items = append(s.items, result.Items...)
		s.loaded = page
		s.hasNext = result.HasNext && len(result.Items) > 0
		metrics.RecordPageLoad("ok")
		e.logger.Debug("page loaded", "session", s.id, "page", page, "items", len(result.Items), "has_next", s.hasNext)
	}
	e.publishLocked()
}

// publishLocked hands the current snapshot to every subscriber. Channels have
// capacity one and the engine is the only sender, so draining first makes the
// send non-blocking.
func (e *Engine) publishLocked() {
	if len(e.subs) == 0 {
		return
	}
	snap := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	s := e.session
	if s == nil {
		return Snapshot{Generation: e.gen, State: StateEmpty, Items: []model.Article{}}
	}
	snap := Snapshot{
		SessionID:  s.id,
		Generation: e.gen,
		Filters:    s.filters,
		State:      s.state,
		Page:       s.page,
		Items:      s.items[:len(s.items):len(s.items)],
		HasNext:    s.hasNext,
		Err:        s.err,
	}
	if snap.Items == nil {
		snap.Items = []model.Article{}
	}
	if s.err != nil {
		snap.ErrorMessage = model.ErrorMessage(s.err)
	}
	return snap
}
