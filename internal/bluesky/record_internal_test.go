package bluesky

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"feedsky/internal/domain"
	"feedsky/internal/opengraph"
)

func TestTruncateText(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		wantRunes int
		truncated bool
	}{
		{name: "short", text: "hello", wantRunes: 5},
		{name: "exact", text: strings.Repeat("a", MaxTextLength), wantRunes: MaxTextLength},
		{name: "one over", text: strings.Repeat("a", MaxTextLength+1), wantRunes: MaxTextLength, truncated: true},
		{name: "multibyte", text: strings.Repeat("ж", 400), wantRunes: MaxTextLength, truncated: true},
		{name: "multibyte fits", text: strings.Repeat("日", MaxTextLength), wantRunes: MaxTextLength},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, truncated := truncateText(tc.text)

			if utf8.RuneCountInString(got) != tc.wantRunes {
				t.Fatalf("expected %d runes, got %d", tc.wantRunes, utf8.RuneCountInString(got))
			}
			if truncated != tc.truncated {
				t.Fatalf("expected truncated=%v", tc.truncated)
			}
			if truncated && !strings.HasSuffix(got, "…") {
				t.Fatalf("expected ellipsis, got %q", got)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("invalid utf-8: %q", got)
			}
		})
	}
}

func TestSelectTextOrder(t *testing.T) {
	meta := opengraph.Metadata{
		"og:title":       "OG title",
		"og:description": "OG description",
	}

	cases := []struct {
		name  string
		entry domain.Entry
		meta  opengraph.Metadata
		want  string
	}{
		{
			name:  "entry title first",
			entry: domain.Entry{Title: "Title", Description: "Desc", Link: "https://e.com"},
			meta:  meta,
			want:  "Title",
		},
		{
			name:  "og title next",
			entry: domain.Entry{Description: "Desc", Link: "https://e.com"},
			meta:  meta,
			want:  "OG title",
		},
		{
			name:  "og description next",
			entry: domain.Entry{Description: "Desc", Link: "https://e.com"},
			meta:  opengraph.Metadata{"og:description": "OG description"},
			want:  "OG description",
		},
		{
			name:  "entry description next",
			entry: domain.Entry{Description: "Desc", Link: "https://e.com"},
			meta:  opengraph.Metadata{},
			want:  "Desc",
		},
		{
			name:  "link last",
			entry: domain.Entry{Link: "https://e.com"},
			meta:  opengraph.Metadata{"og:title": "  "},
			want:  "https://e.com",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := selectText(tc.entry, tc.meta); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFormatCreatedAt(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	published := time.Date(2026, 10, 19, 14, 30, 5, 123_000_000, time.FixedZone("CEST", 2*3600))

	if got := formatCreatedAt(&published, now); got != "2026-10-19T12:30:05.123Z" {
		t.Fatalf("unexpected createdAt: %s", got)
	}
	if got := formatCreatedAt(nil, now); got != "2026-10-19T12:00:00.000Z" {
		t.Fatalf("unexpected createdAt: %s", got)
	}
}

func TestBuildRecordEmbed(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	record := buildRecord(
		domain.Entry{Title: "Entry title", Link: "https://example.com/post"},
		opengraph.Metadata{"og:description": "About the post"},
		[]string{"en", "de"},
		now,
	)

	if record.Type != "app.bsky.feed.post" || record.Text != "Entry title" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Embed == nil || record.Embed.Type != "app.bsky.embed.external" {
		t.Fatalf("expected external embed, got %+v", record.Embed)
	}
	if record.Embed.External.Title != "Entry title" || record.Embed.External.Description != "About the post" {
		t.Fatalf("unexpected embed: %+v", record.Embed.External)
	}

	noLink := buildRecord(domain.Entry{Title: "Only title"}, opengraph.Metadata{}, nil, now)
	if noLink.Embed != nil {
		t.Fatalf("expected no embed without link")
	}
}

func TestLinkFacets(t *testing.T) {
	text := "Привет https://example.com/a and http://example.org"

	facets := linkFacets(text, false)
	if len(facets) != 2 {
		t.Fatalf("expected 2 facets, got %d", len(facets))
	}

	first := facets[0]
	if text[first.Index.ByteStart:first.Index.ByteEnd] != "https://example.com/a" {
		t.Fatalf("unexpected byte range: %+v", first.Index)
	}
	if first.Index.ByteStart != len("Привет ") {
		t.Fatalf("expected byte offset %d, got %d", len("Привет "), first.Index.ByteStart)
	}
	if first.Features[0].Type != "app.bsky.richtext.facet#link" || first.Features[0].URI != "https://example.com/a" {
		t.Fatalf("unexpected feature: %+v", first.Features[0])
	}
}

func TestLinkFacetsSkipsTruncatedURL(t *testing.T) {
	text, truncated := truncateText(strings.Repeat("x ", 140) + "https://example.com/" + strings.Repeat("p", 100))
	if !truncated {
		t.Fatalf("expected truncation")
	}

	if facets := linkFacets(text, truncated); len(facets) != 0 {
		t.Fatalf("expected no facets for a cut URL, got %+v", facets)
	}
}
