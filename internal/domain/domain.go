package domain

import "time"

type Entry struct {
	Title       string
	Description string
	Link        string
	PublishedAt *time.Time
	Fingerprint string
	FeedURL     string
}

// HasTimestamp reports whether the source supplied a parsable publish time.
func (e Entry) HasTimestamp() bool {
	return e.PublishedAt != nil && !e.PublishedAt.IsZero()
}

// SortTime is the publish time used for ordering, zero when absent.
func (e Entry) SortTime() time.Time {
	if !e.HasTimestamp() {
		return time.Time{}
	}

	return *e.PublishedAt
}

// IsEmpty reports whether the entry has nothing worth posting.
func (e Entry) IsEmpty() bool {
	return e.Title == "" && e.Description == "" && e.Link == ""
}

type DedupRecord struct {
	Fingerprint string
	PublishedAt *time.Time
	Title       string
	Link        string
}

func NewDedupRecord(e Entry) DedupRecord {
	return DedupRecord{
		Fingerprint: e.Fingerprint,
		PublishedAt: e.PublishedAt,
		Title:       e.Title,
		Link:        e.Link,
	}
}

type RunSummary struct {
	Selected  int
	Processed int
	Posted    int
}
