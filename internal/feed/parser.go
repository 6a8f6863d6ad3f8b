package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"feedsky/internal/domain"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
)

// Format is the schema family a feed document was recognized as.
type Format int

const (
	FormatUnknown Format = iota
	// FormatRSS is an <rss> document with items inside the channel.
	FormatRSS
	// FormatRDF is an RSS 0.9/1.0 <rdf:RDF> document with top-level items.
	FormatRDF
	// FormatAtom is a <feed> document with entries.
	FormatAtom
)

func (f Format) String() string {
	switch f {
	case FormatRSS:
		return "rss"
	case FormatRDF:
		return "rdf"
	case FormatAtom:
		return "atom"
	default:
		return "unknown"
	}
}

type Result struct {
	Format  Format
	Entries []domain.Entry
}

// Parse probes the document once and normalizes its items. An unrecognized
// document is an empty result, not an error.
func Parse(data []byte, feedURL string) (Result, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS:
		parsed, err := (&rss.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			return Result{}, fmt.Errorf("parse RSS document: %w", err)
		}

		format := FormatRSS
		if isRDFVersion(parsed.Version) {
			format = FormatRDF
		}

		entries := make([]domain.Entry, 0, len(parsed.Items))
		for _, item := range parsed.Items {
			if item == nil {
				continue
			}
			entries = append(entries, rssEntry(item, feedURL))
		}

		return Result{Format: format, Entries: entries}, nil

	case gofeed.FeedTypeAtom:
		parsed, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			return Result{}, fmt.Errorf("parse Atom document: %w", err)
		}

		entries := make([]domain.Entry, 0, len(parsed.Entries))
		for _, entry := range parsed.Entries {
			if entry == nil {
				continue
			}
			entries = append(entries, atomEntry(entry, feedURL))
		}

		return Result{Format: FormatAtom, Entries: entries}, nil

	default:
		return Result{Format: FormatUnknown}, nil
	}
}

func isRDFVersion(version string) bool {
	return version == "1.0" || version == "0.9"
}

func rssEntry(item *rss.Item, feedURL string) domain.Entry {
	title := strings.TrimSpace(item.Title)

	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}

	publishedAt := firstTimestamp(item.PubDateParsed, item.PubDate)
	if publishedAt == nil && item.DublinCoreExt != nil && len(item.DublinCoreExt.Date) > 0 {
		publishedAt = parseTimestamp(item.DublinCoreExt.Date[0])
	}

	return domain.Entry{
		Title:       title,
		Description: cleanDescription(firstNonEmpty(item.Description, item.Content)),
		Link:        link,
		PublishedAt: publishedAt,
		Fingerprint: Fingerprint(title, link),
		FeedURL:     feedURL,
	}
}

func atomEntry(entry *atom.Entry, feedURL string) domain.Entry {
	title := strings.TrimSpace(entry.Title)
	link := atomLink(entry.Links)

	var content string
	if entry.Content != nil {
		content = entry.Content.Value
	}

	// Atom feeds are dated by updated; published is only a fallback.
	publishedAt := firstTimestamp(entry.UpdatedParsed, entry.Updated)
	if publishedAt == nil {
		publishedAt = firstTimestamp(entry.PublishedParsed, entry.Published)
	}

	return domain.Entry{
		Title:       title,
		Description: cleanDescription(firstNonEmpty(entry.Summary, content)),
		Link:        link,
		PublishedAt: publishedAt,
		Fingerprint: Fingerprint(title, link),
		FeedURL:     feedURL,
	}
}

// atomLink prefers the alternate relation and falls back to the first link.
// The atom parser already reports a missing rel as alternate.
func atomLink(links []*atom.Link) string {
	var first string

	for _, l := range links {
		if l == nil {
			continue
		}

		href := strings.TrimSpace(l.Href)
		if href == "" {
			continue
		}

		if strings.EqualFold(strings.TrimSpace(l.Rel), "alternate") {
			return href
		}

		if first == "" {
			first = href
		}
	}

	return first
}

func firstTimestamp(parsed *time.Time, raw string) *time.Time {
	if parsed != nil && !parsed.IsZero() {
		t := *parsed
		return &t
	}

	return parseTimestamp(raw)
}
