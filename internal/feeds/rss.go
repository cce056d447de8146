package feeds

import (
	"context"
	"log"
	"os"

	"github.com/mmcdole/gofeed"
)

// RSSFeed polls an RSS or Atom feed and surfaces item authors as discovery
// candidates. Useful for platform mirrors and ecosystem announcement feeds
// that expose no JSON API.
type RSSFeed struct {
	url    string
	parser *gofeed.Parser
	logger *log.Logger
}

var _ Source = (*RSSFeed)(nil)

// NewRSSFeed creates an RSS discovery source for one feed URL.
func NewRSSFeed(url string, logger *log.Logger) *RSSFeed {
	if logger == nil {
		logger = log.New(os.Stdout, "[rss] ", log.LstdFlags)
	}
	return &RSSFeed{
		url:    url,
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// Name implements Source.
func (f *RSSFeed) Name() string { return "rss:" + f.url }

// Poll implements Source.
func (f *RSSFeed) Poll(ctx context.Context, limit int) ([]Entry, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		f.logger.Printf("parse %s: %v", f.url, err)
		return nil, ErrFeedUnavailable
	}

	entries := make([]Entry, 0, limit)
	for _, item := range feed.Items {
		if len(entries) >= limit {
			break
		}
		e := Entry{
			ID:    item.GUID,
			Title: item.Title,
		}
		if e.ID == "" {
			e.ID = item.Link
		}
		if item.Author != nil {
			e.Author = item.Author.Name
		}
		if len(item.Authors) > 0 && e.Author == "" {
			e.Author = item.Authors[0].Name
		}
		if item.PublishedParsed != nil {
			e.PublishedAt = *item.PublishedParsed
		}
		entries = append(entries, e)
	}
	return entries, nil
}
