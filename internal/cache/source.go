// Package cache decorates a feed source with a short-lived page cache.
package cache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bryan-buckman/headlines/internal/feed"
	"github.com/bryan-buckman/headlines/internal/metrics"
	"github.com/bryan-buckman/headlines/internal/model"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Source serves repeated page requests from memory and collapses identical
// concurrent requests into one upstream call. Failed loads are never cached.
// Loading page 0 from upstream starts a new list: later pages cached for the
// same filters and size are dropped, and in-flight loads of them are not kept.
type Source struct {
	next  feed.Source
	pages *expirable.LRU[string, model.Page]
	group singleflight.Group

	mu     sync.Mutex
	epochs map[string]uint64
}

var _ feed.Source = (*Source)(nil)

// New wraps next with a cache holding up to size pages for ttl.
func New(next feed.Source, size int, ttl time.Duration) *Source {
	return &Source{
		next:   next,
		pages:  expirable.NewLRU[string, model.Page](size, nil, ttl),
		epochs: make(map[string]uint64),
	}
}

func (s *Source) FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error) {
	list := listKey(req)
	key := fmt.Sprintf("%s\x00%d", list, req.Index)
	if page, ok := s.pages.Get(key); ok {
		metrics.RecordCache(true)
		return clonePage(page), nil
	}
	metrics.RecordCache(false)

	// The shared load must not die with whichever caller started it.
	ch := s.group.DoChan(key, func() (any, error) {
		epoch := s.epoch(list)
		page, err := s.next.FetchPage(context.WithoutCancel(ctx), req)
		if err != nil {
			return nil, err
		}
		s.store(list, key, req.Index, epoch, page)
		return page, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.Page{}, res.Err
		}
		return clonePage(res.Val.(model.Page)), nil
	case <-ctx.Done():
		return model.Page{}, ctx.Err()
	}
}

func (s *Source) epoch(list string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[list]
}

func (s *Source) store(list, key string, index int, epoch uint64, page model.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index == 0 {
		s.epochs[list]++
		prefix := list + "\x00"
		for _, k := range s.pages.Keys() {
			if strings.HasPrefix(k, prefix) {
				s.pages.Remove(k)
			}
		}
	} else if s.epochs[list] != epoch {
		return
	}
	s.pages.Add(key, page)
}

// Purge drops every cached page.
func (s *Source) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages.Purge()
}

// Len returns the number of cached pages.
func (s *Source) Len() int {
	return s.pages.Len()
}

// listKey identifies the paged list a request belongs to.
func listKey(req model.PageRequest) string {
	f := req.Filters.Normalize()
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d", f.Country, f.Category, f.Query, req.Size)
}

func clonePage(p model.Page) model.Page {
	p.Items = slices.Clone(p.Items)
	return p
}
