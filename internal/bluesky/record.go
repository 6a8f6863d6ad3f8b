package bluesky

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"feedsky/internal/domain"
	"feedsky/internal/opengraph"
)

const (
	collectionPost = "app.bsky.feed.post"
	typeExternal   = "app.bsky.embed.external"

	MaxTextLength = 300
	ellipsis      = "…"

	createdAtLayout = "2006-01-02T15:04:05.000Z"
)

type PostRecord struct {
	Type      string         `json:"$type"`
	Text      string         `json:"text"`
	Langs     []string       `json:"langs,omitempty"`
	CreatedAt string         `json:"createdAt"`
	Facets    []Facet        `json:"facets,omitempty"`
	Embed     *ExternalEmbed `json:"embed,omitempty"`
}

type ExternalEmbed struct {
	Type     string   `json:"$type"`
	External External `json:"external"`
}

type External struct {
	URI         string          `json:"uri"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Thumb       json.RawMessage `json:"thumb,omitempty"`
}

type CreateRecordRequest struct {
	Repo       string     `json:"repo"`
	Collection string     `json:"collection"`
	Record     PostRecord `json:"record"`
}

// buildRecord assembles the post without the thumbnail, which needs a blob
// upload first.
func buildRecord(
	entry domain.Entry,
	meta opengraph.Metadata,
	langs []string,
	now time.Time,
) PostRecord {
	text, truncated := truncateText(selectText(entry, meta))

	record := PostRecord{
		Type:      collectionPost,
		Text:      text,
		Langs:     langs,
		CreatedAt: formatCreatedAt(entry.PublishedAt, now),
		Facets:    linkFacets(text, truncated),
	}

	if link := strings.TrimSpace(entry.Link); link != "" {
		record.Embed = &ExternalEmbed{
			Type: typeExternal,
			External: External{
				URI:         link,
				Title:       firstNonEmpty(meta.Title(), entry.Title),
				Description: meta.Description(),
			},
		}
	}

	return record
}

// selectText prefers the human-written title over scraped metadata, and
// scraped metadata over the raw link.
func selectText(entry domain.Entry, meta opengraph.Metadata) string {
	return firstNonEmpty(
		entry.Title,
		meta.Title(),
		meta.Description(),
		entry.Description,
		entry.Link,
	)
}

// truncateText counts characters, not bytes.
func truncateText(text string) (string, bool) {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text, false
	}

	runes := []rune(text)

	return string(runes[:MaxTextLength-1]) + ellipsis, true
}

func formatCreatedAt(publishedAt *time.Time, now time.Time) string {
	if publishedAt != nil && !publishedAt.IsZero() {
		return publishedAt.UTC().Format(createdAtLayout)
	}

	return now.UTC().Format(createdAtLayout)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}
