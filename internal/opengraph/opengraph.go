// Package opengraph scrapes Open Graph sharing metadata from web pages.
package opengraph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	propertyPrefix   = "og:"
	maxPageBodyBytes = 5 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"
)

// Metadata maps og:* property names to their content.
type Metadata map[string]string

func (m Metadata) Title() string {
	return strings.TrimSpace(m["og:title"])
}

func (m Metadata) Description() string {
	return strings.TrimSpace(m["og:description"])
}

func (m Metadata) Image() string {
	return strings.TrimSpace(m["og:image"])
}

type Enricher struct {
	client *http.Client
	log    *slog.Logger
}

func NewEnricher(client *http.Client, log *slog.Logger) *Enricher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Enricher{client: client, log: log}
}

// Enrich never fails: an empty URL, a transport error or an unusable page
// all yield empty metadata.
func (e *Enricher) Enrich(ctx context.Context, pageURL string) Metadata {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		e.log.DebugContext(ctx, "No URL provided for Open Graph data")

		return Metadata{}
	}

	data, err := e.fetch(ctx, pageURL)
	if err != nil {
		e.log.WarnContext(ctx, "Failed to fetch Open Graph data",
			"error", err,
			"url", pageURL)

		return Metadata{}
	}

	e.log.DebugContext(ctx, "Open Graph data is fetched",
		"url", pageURL,
		"propertyCount", len(data))

	return data
}

func (e *Enricher) fetch(ctx context.Context, pageURL string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req) //nolint:gosec // Link taken from a configured feed
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			e.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", pageURL,
				"operation", "fetch")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	return Extract(io.LimitReader(resp.Body, maxPageBodyBytes))
}

// Extract collects every og:* meta property. The HTML parser is tolerant, so
// broken markup still yields whatever tags it can find; later duplicates win.
func Extract(r io.Reader) (Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("create document from reader: %w", err)
	}

	data := Metadata{}

	doc.Find("meta[property^='" + propertyPrefix + "']").Each(func(_ int, s *goquery.Selection) {
		property := strings.TrimSpace(s.AttrOr("property", ""))
		if property == "" {
			return
		}

		data[property] = s.AttrOr("content", "")
	})

	return data, nil
}
