// Package rss serves headline pages from a single RSS or Atom feed.
package rss

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bryan-buckman/headlines/internal/metrics"
	"github.com/bryan-buckman/headlines/internal/model"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

// maxSnapshots bounds how many filter sets keep a page 0 copy.
const maxSnapshots = 64

// Limits applied per feed host.
const (
	MaxConcurrencyPerHost      = 2
	DefaultDelayBetweenFetches = 500 * time.Millisecond
)

const metricsSource = "rss"

// hostLimiter controls rate limiting per host to avoid overwhelming it.
type hostLimiter struct {
	delay       time.Duration
	mu          sync.Mutex
	semaphores  map[string]chan struct{}
	lastRequest map[string]time.Time
}

func newHostLimiter(delay time.Duration) *hostLimiter {
	return &hostLimiter{
		delay:       delay,
		semaphores:  make(map[string]chan struct{}),
		lastRequest: make(map[string]time.Time),
	}
}

// acquire gets a slot for the host, blocking if necessary.
// It also enforces the minimum delay between requests to the same host.
func (hl *hostLimiter) acquire(ctx context.Context, host string) error {
	hl.mu.Lock()
	sem, ok := hl.semaphores[host]
	if !ok {
		sem = make(chan struct{}, MaxConcurrencyPerHost)
		hl.semaphores[host] = sem
	}
	hl.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	hl.mu.Lock()
	lastReq := hl.lastRequest[host]
	hl.mu.Unlock()

	if !lastReq.IsZero() {
		if elapsed := time.Since(lastReq); elapsed < hl.delay {
			select {
			case <-time.After(hl.delay - elapsed):
			case <-ctx.Done():
				<-sem
				return ctx.Err()
			}
		}
	}
	return nil
}

// release returns a slot for the host and records the request time.
func (hl *hostLimiter) release(host string) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	hl.lastRequest[host] = time.Now()
	if sem, ok := hl.semaphores[host]; ok {
		<-sem
	}
}

func hostOf(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	return u.Host
}

// Options configures a Fetcher.
type Options struct {
	URL        string
	Delay      time.Duration // minimum gap between fetches; zero selects the default
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Fetcher implements feed.Source over one feed URL. Page 0 always downloads
// the feed; later pages slice the copy taken for page 0 of the same filters,
// so a session pages through a consistent list even while sessions with other
// filters reload the feed.
type Fetcher struct {
	url       string
	parser    *gofeed.Parser
	limiter   *hostLimiter
	sanitizer *bluemonday.Policy
	logger    *slog.Logger

	snapshots *lru.Cache[model.Filters, []model.Article]
}

// NewFetcher creates a fetcher for opts.URL.
func NewFetcher(opts Options) (*Fetcher, error) {
	if _, err := url.ParseRequestURI(opts.URL); err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultDelayBetweenFetches
	}
	parser := gofeed.NewParser()
	if opts.HTTPClient != nil {
		parser.Client = opts.HTTPClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	snapshots, err := lru.New[model.Filters, []model.Article](maxSnapshots)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		url:       opts.URL,
		parser:    parser,
		limiter:   newHostLimiter(delay),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With("component", "rss", "url", opts.URL),
		snapshots: snapshots,
	}, nil
}

// FetchPage returns one page of feed items matching the request query, which
// is tested against title and description. Country and category have no
// meaning for a single feed and are ignored.
func (f *Fetcher) FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error) {
	if req.Size <= 0 {
		req.Size = model.DefaultPageSize
	}

	filters := req.Filters.Normalize()
	all, err := f.items(ctx, filters, req.Index)
	if err != nil {
		return model.Page{}, err
	}

	matched := filter(all, filters)
	start := min(req.Index*req.Size, len(matched))
	end := min(start+req.Size, len(matched))
	items := slices.Clone(matched[start:end])

	return model.Page{
		Index:        req.Index,
		Items:        items,
		HasNext:      len(items) > 0 && end < len(matched),
		TotalResults: len(matched),
	}, nil
}

func (f *Fetcher) items(ctx context.Context, filters model.Filters, index int) ([]model.Article, error) {
	if index > 0 {
		if snap, ok := f.snapshots.Get(filters); ok {
			return snap, nil
		}
	}

	start := time.Now()
	items, err := f.fetch(ctx)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		f.logger.WarnContext(ctx, "fetch feed failed", "error", err)
	}
	metrics.RecordRemote(metricsSource, outcome, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	f.snapshots.Add(filters, items)
	return items, nil
}

func (f *Fetcher) fetch(ctx context.Context) ([]model.Article, error) {
	host := hostOf(f.url)
	if err := f.limiter.acquire(ctx, host); err != nil {
		return nil, err
	}
	defer f.limiter.release(host)

	parsed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, classify(ctx, err)
	}

	items := make([]model.Article, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		items = append(items, f.toArticle(parsed.Title, it))
	}
	f.logger.DebugContext(ctx, "feed fetched", "items", len(items))
	return items, nil
}

func (f *Fetcher) toArticle(source string, it *gofeed.Item) model.Article {
	a := model.Article{
		Title:       strings.TrimSpace(it.Title),
		Description: f.plain(it.Description),
		Content:     f.plain(it.Content),
		Source:      source,
		URL:         it.Link,
		PublishedAt: it.Published,
	}
	if it.PublishedParsed != nil {
		a.PublishedAt = it.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if it.Image != nil {
		a.ImageURL = it.Image.URL
	}
	if it.Author != nil {
		a.Author = it.Author.Name
	} else if len(it.Authors) > 0 && it.Authors[0] != nil {
		a.Author = it.Authors[0].Name
	}
	if a.Content == "" {
		a.Content = a.Description
	}
	return a
}

func (f *Fetcher) plain(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html.UnescapeString(f.sanitizer.Sanitize(s)))
}

func filter(items []model.Article, f model.Filters) []model.Article {
	if f.Query == "" {
		return items
	}
	q := strings.ToLower(f.Query)
	var out []model.Article
	for _, a := range items {
		if strings.Contains(strings.ToLower(a.Title), q) ||
			strings.Contains(strings.ToLower(a.Description), q) {
			out = append(out, a)
		}
	}
	return out
}

func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return &model.APIError{StatusCode: httpErr.StatusCode, Message: httpErr.Status}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %w", model.ErrNetwork, err)
	}
	return fmt.Errorf("parse feed: %w: %w", model.ErrUnknown, err)
}

func outcomeOf(err error) string {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, model.ErrNetwork):
		return "network_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown_error"
	}
}
