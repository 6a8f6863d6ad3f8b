package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"feedsky/internal/domain"
)

const pubDateLayout = time.RFC3339

// HasFingerprint reports whether the ledger already holds the fingerprint.
func (d *Database) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return false, errors.New("fingerprint is empty")
	}

	query := "select count(*) from posts where fingerprint = ?"

	var count int64
	if err := d.db.QueryRowContext(ctx, query, fingerprint).Scan(&count); err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}

	return count > 0, nil
}

// InsertRecord appends a record. Records are never updated or deleted, so a
// duplicate fingerprint is an error.
func (d *Database) InsertRecord(ctx context.Context, record domain.DedupRecord) error {
	fingerprint := strings.TrimSpace(record.Fingerprint)
	if fingerprint == "" {
		return errors.New("fingerprint is empty")
	}

	var pubDate string
	if record.PublishedAt != nil && !record.PublishedAt.IsZero() {
		pubDate = record.PublishedAt.UTC().Format(pubDateLayout)
	}

	query := "insert into posts (pub_date, title, link, fingerprint) values (?, ?, ?, ?)"

	if _, err := d.db.ExecContext(ctx, query, pubDate, record.Title, record.Link, fingerprint); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

// RecentRecords returns up to limit records, newest insert first.
func (d *Database) RecentRecords(ctx context.Context, limit int) ([]domain.DedupRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `select fingerprint, pub_date, title, link
	from posts
	order by id desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"limit", limit,
				"operation", "RecentRecords")
		}
	}()

	var records []domain.DedupRecord
	for rows.Next() {
		var (
			r       domain.DedupRecord
			pubDate sql.NullString
			title   sql.NullString
			link    sql.NullString
		)
		if err = rows.Scan(&r.Fingerprint, &pubDate, &title, &link); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r.Title = title.String
		r.Link = link.String
		r.PublishedAt = parsePubDate(pubDate.String)

		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

// parsePubDate reads both our RFC 3339 values and free-form dates left by
// older ledgers; unknown formats are reported as absent.
func parsePubDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	// Values without a zone are taken as UTC.
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil || t.IsZero() {
		return nil
	}

	return &t
}
