// Package newsapi fetches pages of top headlines from a News API compatible
// REST endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bryan-buckman/headlines/internal/metrics"
	"github.com/bryan-buckman/headlines/internal/model"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production endpoint.
const DefaultBaseURL = "https://newsapi.org/v2/"

const (
	headlinesPath = "top-headlines"
	maxBodyBytes  = 4 << 20
	metricsSource = "newsapi"
)

// Options configures a Client.
type Options struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64 // zero disables limiting
	Burst         int
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client fetches headline pages. It is safe for concurrent use.
type Client struct {
	http      *http.Client
	baseURL   *url.URL
	apiKey    string
	limiter   *rate.Limiter
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// New creates a client from options.
func New(opts Options) (*Client, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:      hc,
		baseURL:   u,
		apiKey:    opts.APIKey,
		limiter:   limiter,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With("component", "newsapi"),
	}, nil
}

// FetchPage fetches one page of headlines. Page indexes are 0-based; the
// upstream API numbers pages from 1.
func (c *Client) FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error) {
	if req.Index < 0 {
		return model.Page{}, fmt.Errorf("page index %d: %w", req.Index, model.ErrUnknown)
	}
	if req.Size <= 0 {
		req.Size = model.DefaultPageSize
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Page{}, ctxErr
		}
		// The deadline expires before a token would be available.
		return model.Page{}, fmt.Errorf("rate limit wait: %w: %w", model.ErrNetwork, err)
	}

	start := time.Now()
	page, err := c.fetch(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		c.logger.WarnContext(ctx, "fetch page failed", "page", req.Index, "error", err)
	}
	metrics.RecordRemote(metricsSource, outcome, time.Since(start).Seconds())
	return page, err
}

func (c *Client) fetch(ctx context.Context, req model.PageRequest) (model.Page, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(req), nil)
	if err != nil {
		return model.Page{}, fmt.Errorf("build request: %w: %w", model.ErrUnknown, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Page{}, ctxErr
		}
		return model.Page{}, fmt.Errorf("%w: %w", model.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Page{}, ctxErr
		}
		return model.Page{}, fmt.Errorf("read body: %w: %w", model.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Page{}, decodeError(resp.StatusCode, body)
	}

	var dto responseDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return model.Page{}, fmt.Errorf("decode response: %w: %w", model.ErrUnknown, err)
	}
	if dto.Status == statusError {
		return model.Page{}, decodeError(resp.StatusCode, body)
	}

	items := make([]model.Article, 0, len(dto.Articles))
	for _, a := range dto.Articles {
		items = append(items, c.toArticle(a))
	}
	return model.Page{
		Index:        req.Index,
		Items:        items,
		HasNext:      hasNext(req, len(items), dto.TotalResults),
		TotalResults: dto.TotalResults,
	}, nil
}

func (c *Client) requestURL(req model.PageRequest) string {
	f := req.Filters.Normalize()
	q := url.Values{}
	if f.IsSearch() {
		q.Set("q", f.Query)
	} else {
		if f.Country != "" {
			q.Set("country", f.Country)
		}
		if f.Category != "" {
			q.Set("category", f.Category)
		}
	}
	q.Set("pageSize", strconv.Itoa(req.Size))
	q.Set("page", strconv.Itoa(req.Index+1))
	q.Set("apiKey", c.apiKey)

	u := c.baseURL.JoinPath(headlinesPath)
	u.RawQuery = q.Encode()
	return u.String()
}

// hasNext treats an empty page as exhaustion. A reported total ends the feed
// once every announced result has been loaded.
func hasNext(req model.PageRequest, n, total int) bool {
	if n == 0 {
		return false
	}
	if total > 0 && req.Index*req.Size+n >= total {
		return false
	}
	return true
}

func decodeError(status int, body []byte) error {
	apiErr := &model.APIError{StatusCode: status}
	var dto errorDTO
	if err := json.Unmarshal(body, &dto); err == nil {
		apiErr.Code = dto.Code
		apiErr.Message = dto.Message
	}
	return apiErr
}

func (c *Client) toArticle(a articleDTO) model.Article {
	return model.Article{
		Title:       strings.TrimSpace(str(a.Title)),
		Description: c.plain(str(a.Description)),
		Content:     c.plain(str(a.Content)),
		ImageURL:    str(a.URLToImage),
		Source:      str(a.Source.Name),
		PublishedAt: str(a.PublishedAt),
		Author:      str(a.Author),
		URL:         str(a.URL),
	}
}

// plain strips markup some publishers leave in descriptions.
func (c *Client) plain(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(s)))
}

func outcomeOf(err error) string {
	var apiErr *model.APIError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, model.ErrNetwork):
		return "network_error"
	default:
		return "unknown_error"
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
