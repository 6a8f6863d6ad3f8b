package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"feedsky/internal/bluesky"
	"feedsky/internal/domain"
)

type stubSelector struct {
	mu      sync.Mutex
	calls   int
	entries []domain.Entry
	err     error
}

func (s *stubSelector) Select(context.Context, []string) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	return s.entries, s.err
}

type stubSessions struct {
	err error
}

func (s stubSessions) Session(context.Context) (*bluesky.Session, error) {
	if s.err != nil {
		return nil, s.err
	}

	return &bluesky.Session{
		Credentials: bluesky.Credentials{AccessJwt: "a", RefreshJwt: "r", DID: "did:plc:abc"},
		State:       bluesky.StateCachedValid,
	}, nil
}

type stubPublisher struct {
	mu       sync.Mutex
	titles   []string
	failures map[string]error
	dryRun   bool
}

func (p *stubPublisher) Publish(
	_ context.Context,
	_ *bluesky.Session,
	entry domain.Entry,
) (bluesky.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.titles = append(p.titles, entry.Title)

	if err := p.failures[entry.Title]; err != nil {
		return bluesky.Result{}, err
	}

	return bluesky.Result{Posted: !p.dryRun}, nil
}

type countingPacer struct {
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++

	return ctx.Err()
}

func entries(titles ...string) []domain.Entry {
	out := make([]domain.Entry, 0, len(titles))
	for _, title := range titles {
		out = append(out, domain.Entry{Title: title, Link: "https://example.com/" + title})
	}

	return out
}

func TestRunAuthFailureSkipsSelection(t *testing.T) {
	selector := &stubSelector{entries: entries("a")}
	publisher := &stubPublisher{}

	runner := NewRunner([]string{"https://example.com/feed"}, selector,
		stubSessions{err: errors.New("invalid password")}, publisher, &countingPacer{}, slog.Default())

	summary, err := runner.Run(context.Background())
	if err == nil {
		t.Fatalf("expected auth error")
	}

	if selector.calls != 0 || len(publisher.titles) != 0 {
		t.Fatalf("expected no selection and no publish, got select=%d publish=%d",
			selector.calls, len(publisher.titles))
	}
	if summary != (domain.RunSummary{}) {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestRunNoFeeds(t *testing.T) {
	runner := NewRunner(nil, &stubSelector{}, stubSessions{}, &stubPublisher{}, &countingPacer{}, slog.Default())

	if _, err := runner.Run(context.Background()); !errors.Is(err, ErrNoFeeds) {
		t.Fatalf("expected ErrNoFeeds, got %v", err)
	}
}

func TestRunPublishesInOrderAndContinuesOnFailure(t *testing.T) {
	selector := &stubSelector{entries: entries("first", "second", "third")}
	publisher := &stubPublisher{failures: map[string]error{"second": bluesky.ErrEmptyResponse}}
	pacer := &countingPacer{}

	runner := NewRunner([]string{"https://example.com/feed"}, selector, stubSessions{}, publisher, pacer, slog.Default())

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.RunSummary{Selected: 3, Processed: 3, Posted: 2}
	if summary != want {
		t.Fatalf("expected %+v, got %+v", want, summary)
	}
	if len(publisher.titles) != 3 || publisher.titles[0] != "first" || publisher.titles[2] != "third" {
		t.Fatalf("unexpected publish order: %v", publisher.titles)
	}
	if pacer.waits != 3 {
		t.Fatalf("expected a pacing wait per entry, got %d", pacer.waits)
	}
}

func TestRunDryRunPostsNothing(t *testing.T) {
	selector := &stubSelector{entries: entries("a", "b")}
	publisher := &stubPublisher{dryRun: true}

	runner := NewRunner([]string{"https://example.com/feed"}, selector, stubSessions{}, publisher,
		&countingPacer{}, slog.Default())

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Processed != 2 || summary.Posted != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	selector := &stubSelector{entries: entries("a", "b")}
	publisher := &stubPublisher{}

	runner := NewRunner([]string{"https://example.com/feed"}, selector, stubSessions{}, publisher,
		&countingPacer{}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if len(publisher.titles) != 0 {
		t.Fatalf("expected no publish, got %v", publisher.titles)
	}
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	runner := NewRunner([]string{"https://example.com/feed"}, &stubSelector{}, stubSessions{},
		&stubPublisher{}, &countingPacer{}, slog.Default())

	sched := New(context.Background(), runner, "not a cron spec", slog.Default())
	if err := sched.Start(); err == nil {
		t.Fatalf("expected invalid spec error")
	}
}
