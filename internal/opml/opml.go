// Package opml imports and exports favorites as OPML link outlines.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bryan-buckman/headlines/internal/model"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is either a folder (one per article source) or a link to an article.
type Outline struct {
	Text        string    `xml:"text,attr"`
	Title       string    `xml:"title,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	URL         string    `xml:"url,attr,omitempty"`
	HTMLURL     string    `xml:"htmlUrl,attr,omitempty"`
	Description string    `xml:"description,attr,omitempty"`
	Author      string    `xml:"author,attr,omitempty"`
	ImageURL    string    `xml:"imageUrl,attr,omitempty"`
	Created     string    `xml:"created,attr,omitempty"`
	Outlines    []Outline `xml:"outline,omitempty"`
}

const linkType = "link"

// Parse reads an OPML document and returns every link outline as an article.
// Folder names become the article source unless the link carries none.
func Parse(r io.Reader) ([]model.Article, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	var articles []model.Article
	var walk func(outlines []Outline, folder string)
	walk = func(outlines []Outline, folder string) {
		for _, o := range outlines {
			link := o.URL
			if link == "" {
				link = o.HTMLURL
			}
			if o.Type == linkType || link != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				if title == "" {
					continue
				}
				articles = append(articles, model.Article{
					Title:       title,
					Description: o.Description,
					Author:      o.Author,
					ImageURL:    o.ImageURL,
					PublishedAt: o.Created,
					Source:      folder,
					URL:         link,
				})
			} else if len(o.Outlines) > 0 {
				name := o.Text
				if name == "" {
					name = o.Title
				}
				walk(o.Outlines, name)
			}
		}
	}
	walk(doc.Body.Outlines, "")
	return articles, nil
}

// Export generates an OPML document with one folder per article source.
// Articles without a source sit at the top level. Order within a folder
// follows the input.
func Export(title string, articles []model.Article) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().UTC().Format(time.RFC1123Z),
		},
	}

	folders := make(map[string]*Outline)
	var rootOutlines []Outline
	for _, a := range articles {
		link := Outline{
			Text:        a.Title,
			Title:       a.Title,
			Type:        linkType,
			URL:         a.URL,
			Description: a.Description,
			Author:      a.Author,
			ImageURL:    a.ImageURL,
			Created:     a.PublishedAt,
		}
		if a.Source == "" {
			rootOutlines = append(rootOutlines, link)
			continue
		}
		if fo, ok := folders[a.Source]; ok {
			fo.Outlines = append(fo.Outlines, link)
		} else {
			folders[a.Source] = &Outline{Text: a.Source, Title: a.Source, Outlines: []Outline{link}}
		}
	}

	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rootOutlines = append(rootOutlines, *folders[name])
	}
	doc.Body.Outlines = rootOutlines

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
