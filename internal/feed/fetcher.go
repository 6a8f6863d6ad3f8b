package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"

	"feedsky/internal/domain"
)

const (
	maxFeedBodyBytes                     = 10 << 20
	fetchFeedsMaxConcurrencyGrowthFactor = 10
)

type Fetcher struct {
	client *http.Client
	log    *slog.Logger
}

func NewFetcher(client *http.Client, log *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{
		client: client,
		log:    log,
	}
}

// FetchAll fetches every feed and concatenates the entries in feed list
// order. A feed that cannot be fetched or parsed contributes nothing.
func (f *Fetcher) FetchAll(ctx context.Context, feedURLs []string) []domain.Entry {
	if len(feedURLs) == 0 {
		return nil
	}

	results := make([][]domain.Entry, len(feedURLs))

	concurrency := min(runtime.NumCPU()*fetchFeedsMaxConcurrencyGrowthFactor, len(feedURLs))
	semCh := make(chan struct{}, concurrency)

	var wg sync.WaitGroup

	for i, feedURL := range feedURLs {
		semCh <- struct{}{}

		wg.Go(func() {
			defer func() { <-semCh }()

			entries, err := f.FetchFeed(ctx, feedURL)
			if err != nil {
				f.log.ErrorContext(ctx, "Failed to fetch feed",
					"error", err,
					"feedURL", feedURL)

				return
			}

			results[i] = entries
		})
	}

	wg.Wait()

	var all []domain.Entry
	for _, entries := range results {
		all = append(all, entries...)
	}

	return all
}

func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]domain.Entry, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, errors.New("feed URL is empty")
	}

	if ok, slug := isTelegramChannelURL(feedURL); ok {
		return f.fetchTelegramChannel(ctx, feedURL, slug)
	}

	data, err := f.fetchDocument(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	result, err := Parse(data, feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	if result.Format == FormatUnknown {
		f.log.WarnContext(ctx, "Unrecognized feed format",
			"feedURL", feedURL,
			"bodyBytes", len(data))

		return nil, nil
	}

	f.log.DebugContext(ctx, "Feed is parsed",
		"feedURL", feedURL,
		"format", result.Format.String(),
		"entryCount", len(result.Entries))

	return result.Entries, nil
}

func (f *Fetcher) fetchTelegramChannel(
	ctx context.Context,
	feedURL string,
	slug string,
) ([]domain.Entry, error) {
	data, err := f.fetchDocument(ctx, TelegramChannelCanonicalURL(slug))
	if err != nil {
		return nil, fmt.Errorf("fetch channel page: %w", err)
	}

	entries, err := ParseTelegramChannel(data, feedURL)
	if err != nil {
		f.log.WarnContext(ctx, "Failed to parse some channel messages",
			"error", err,
			"feedURL", feedURL,
			"slug", slug)
	}

	f.log.DebugContext(ctx, "Telegram channel is parsed",
		"feedURL", feedURL,
		"slug", slug,
		"entryCount", len(entries))

	return entries, nil
}

func (f *Fetcher) fetchDocument(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req) //nolint:gosec // Operator-configured feed URL
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"feedURL", feedURL,
				"operation", "fetchDocument")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if len(data) > maxFeedBodyBytes {
		return nil, fmt.Errorf("read body: document exceeds %d bytes", maxFeedBodyBytes)
	}

	return data, nil
}
