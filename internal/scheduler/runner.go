package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedsky/internal/bluesky"
	"feedsky/internal/domain"
)

var ErrNoFeeds = errors.New("no feeds configured")

type Selector interface {
	Select(ctx context.Context, feedURLs []string) ([]domain.Entry, error)
}

type Sessions interface {
	Session(ctx context.Context) (*bluesky.Session, error)
}

type Publisher interface {
	Publish(ctx context.Context, session *bluesky.Session, entry domain.Entry) (bluesky.Result, error)
}

type Pacer interface {
	Wait(ctx context.Context) error
}

// Runner performs one republishing pass over the configured feeds.
type Runner struct {
	feeds     []string
	selector  Selector
	sessions  Sessions
	publisher Publisher
	pacer     Pacer
	log       *slog.Logger
}

func NewRunner(
	feeds []string,
	selector Selector,
	sessions Sessions,
	publisher Publisher,
	pacer Pacer,
	log *slog.Logger,
) *Runner {
	return &Runner{
		feeds:     feeds,
		selector:  selector,
		sessions:  sessions,
		publisher: publisher,
		pacer:     pacer,
		log:       log,
	}
}

// Run authenticates before selecting, so a failed login consumes no entries.
// Publish failures are logged per entry and do not stop the run.
func (r *Runner) Run(ctx context.Context) (domain.RunSummary, error) {
	var summary domain.RunSummary

	if len(r.feeds) == 0 {
		return summary, ErrNoFeeds
	}

	session, err := r.sessions.Session(ctx)
	if err != nil {
		return summary, fmt.Errorf("authenticate: %w", err)
	}

	entries, err := r.selector.Select(ctx, r.feeds)
	summary.Selected = len(entries)
	if err != nil {
		return summary, fmt.Errorf("select entries: %w", err)
	}

	for _, entry := range entries {
		if err = r.pacer.Wait(ctx); err != nil {
			return summary, err
		}

		summary.Processed++

		result, publishErr := r.publisher.Publish(ctx, session, entry)
		if publishErr != nil {
			r.log.ErrorContext(ctx, "Failed to publish entry",
				"error", publishErr,
				"title", entry.Title,
				"link", entry.Link,
				"feedURL", entry.FeedURL)

			continue
		}

		if result.Posted {
			summary.Posted++
		}
	}

	r.log.InfoContext(ctx, "Run is finished",
		"selected", summary.Selected,
		"processed", summary.Processed,
		"posted", summary.Posted,
		"sessionState", session.State.String(),
		"accessExpired", session.AccessExpired(time.Now()))

	return summary, nil
}
