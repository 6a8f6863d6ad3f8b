package feed

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"feedsky/internal/domain"
)

// Ledger is the durable record of fingerprints already accepted for publishing.
type Ledger interface {
	HasFingerprint(ctx context.Context, fingerprint string) (bool, error)
	InsertRecord(ctx context.Context, record domain.DedupRecord) error
}

// Source produces the concatenated entries of the given feeds.
type Source interface {
	FetchAll(ctx context.Context, feedURLs []string) []domain.Entry
}

type Selector struct {
	source Source
	ledger Ledger
	maxAge time.Duration
	quota  int
	now    func() time.Time
	log    *slog.Logger
}

// NewSelector builds the selection pipeline. A quota of zero or less means
// unlimited.
func NewSelector(
	source Source,
	ledger Ledger,
	maxAge time.Duration,
	quota int,
	log *slog.Logger,
) *Selector {
	return &Selector{
		source: source,
		ledger: ledger,
		maxAge: maxAge,
		quota:  quota,
		now:    time.Now,
		log:    log,
	}
}

// Select returns the entries to publish in ascending timestamp order. Every
// returned entry is already recorded in the ledger.
func (s *Selector) Select(ctx context.Context, feedURLs []string) ([]domain.Entry, error) {
	entries := s.source.FetchAll(ctx, feedURLs)
	fetched := len(entries)

	cutoff := s.now().Add(-s.maxAge)
	entries = filterByAge(entries, cutoff)
	fresh := len(entries)

	entries = collapseDuplicates(entries)
	sortByTimestamp(entries)

	accepted := make([]domain.Entry, 0, len(entries))
	var seen, overQuota, failed int

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}

		found, err := s.ledger.HasFingerprint(ctx, entry.Fingerprint)
		if err != nil {
			failed++
			s.log.ErrorContext(ctx, "Failed to check ledger so entry is skipped",
				"error", err,
				"fingerprint", entry.Fingerprint,
				"link", entry.Link)

			continue
		}
		if found {
			seen++
			continue
		}

		if s.quota > 0 && len(accepted) >= s.quota {
			overQuota++
			continue
		}

		if err = s.ledger.InsertRecord(ctx, domain.NewDedupRecord(entry)); err != nil {
			failed++
			s.log.ErrorContext(ctx, "Failed to record entry so it is skipped",
				"error", err,
				"fingerprint", entry.Fingerprint,
				"link", entry.Link)

			continue
		}

		accepted = append(accepted, entry)
	}

	s.log.InfoContext(ctx, "Entries are selected",
		"feedCount", len(feedURLs),
		"fetchedCount", fetched,
		"freshCount", fresh,
		"uniqueCount", len(entries),
		"alreadySeenCount", seen,
		"overQuotaCount", overQuota,
		"failedCount", failed,
		"acceptedCount", len(accepted),
		"cutoff", cutoff)

	return accepted, nil
}

// filterByAge keeps entries without a timestamp and entries at or after cutoff.
func filterByAge(entries []domain.Entry, cutoff time.Time) []domain.Entry {
	kept := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		if e.HasTimestamp() && e.PublishedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}

	return kept
}

// collapseDuplicates keeps one entry per fingerprint: the last one seen,
// placed where the fingerprint first appeared.
func collapseDuplicates(entries []domain.Entry) []domain.Entry {
	positions := make(map[string]int, len(entries))
	unique := make([]domain.Entry, 0, len(entries))

	for _, e := range entries {
		if i, ok := positions[e.Fingerprint]; ok {
			unique[i] = e
			continue
		}

		positions[e.Fingerprint] = len(unique)
		unique = append(unique, e)
	}

	return unique
}

func sortByTimestamp(entries []domain.Entry) {
	slices.SortStableFunc(entries, func(a, b domain.Entry) int {
		return a.SortTime().Compare(b.SortTime())
	})
}
