// Package model defines shared data structures.
package model

import (
	"strings"
)

// DefaultPageSize is the number of articles requested per page.
const DefaultPageSize = 10

// FirstPageIndex is the index of the first page of a feed.
const FirstPageIndex = 0

// Article represents a single news item. Fields absent upstream are empty
// strings, never nil.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	ImageURL    string `json:"image_url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Author      string `json:"author"`
	URL         string `json:"url"`
}

// Key returns the identity used by the favorites store.
// Two articles with the same title share one favorite slot.
func (a Article) Key() string {
	return a.Title
}

// Filters selects which feed is loaded. A non-empty Query switches the feed
// into search mode, where Country and Category are ignored.
type Filters struct {
	Country  string `json:"country,omitempty"`
	Category string `json:"category,omitempty"`
	Query    string `json:"query,omitempty"`
}

// Normalize returns a copy with the country mapped to its 2-letter code,
// the category lower-cased and the query trimmed.
func (f Filters) Normalize() Filters {
	out := Filters{Query: strings.TrimSpace(f.Query)}
	if out.Query != "" {
		return out
	}
	out.Country = NormalizeCountry(f.Country)
	out.Category = NormalizeCategory(f.Category)
	return out
}

// IsSearch reports whether the filters describe a text search.
func (f Filters) IsSearch() bool {
	return strings.TrimSpace(f.Query) != ""
}

// PageRequest asks a source for one page of a feed.
type PageRequest struct {
	Filters Filters
	Index   int
	Size    int
}

// Page is one fetched batch of articles plus a continuation flag.
type Page struct {
	Index        int       `json:"index"`
	Items        []Article `json:"items"`
	HasNext      bool      `json:"has_next"`
	TotalResults int       `json:"total_results,omitempty"`
}

// Settings key constants.
const (
	SettingTheme    = "theme_option"
	SettingLanguage = "language_key"
)
