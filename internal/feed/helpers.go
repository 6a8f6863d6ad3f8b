package feed

import (
	"crypto/md5" //nolint:gosec // Identity hash shared with existing ledgers, not a security boundary.
	"encoding/hex"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

// Fingerprint is the dedup identity of an entry. Equal title and link always
// collide, whichever feed the entry came from.
func Fingerprint(title string, link string) string {
	sum := md5.Sum([]byte(title + link)) //nolint:gosec // See import.

	return hex.EncodeToString(sum[:])
}

func cleanDescription(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	text := raw

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err == nil {
		doc.Find("script, style").Remove()
		doc.Find("br").Each(func(_ int, br *goquery.Selection) {
			br.ReplaceWithHtml("\n")
		})
		text = doc.Text()
	}

	return strings.Join(strings.Fields(text), " ")
}

func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil || t.IsZero() {
		return nil
	}

	return &t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}
