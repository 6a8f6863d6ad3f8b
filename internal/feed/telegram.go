package feed

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"feedsky/internal/domain"
)

const (
	minPartsForTelegramChannelSlugStartingWithS = 2

	telegramHost = "t.me"
)

var telegramSlugRe = regexp.MustCompile(`^\w{5,32}$`)

// TelegramMessageCanonicalURL drops query and fragment so the same message
// always yields the same fingerprint.
func TelegramMessageCanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// TelegramChannelCanonicalURL is the public web preview of a channel.
func TelegramChannelCanonicalURL(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}

	return fmt.Sprintf("https://%s/s/%s", telegramHost, slug)
}

// isTelegramChannelURL accepts t.me/<slug> and t.me/s/<slug>.
func isTelegramChannelURL(raw string) (bool, string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false, ""
	}

	if u.Host != telegramHost {
		return false, ""
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return false, ""
	}

	parts := strings.Split(path, "/")

	var slug string

	switch parts[0] {
	case "s":
		if len(parts) < minPartsForTelegramChannelSlugStartingWithS {
			return false, ""
		}
		slug = parts[1]
	default:
		slug = parts[0]
	}

	slug = strings.TrimSpace(slug)

	if !telegramSlugRe.MatchString(slug) {
		return false, ""
	}

	return true, slug
}

// ParseTelegramChannel maps the messages of a channel preview page to
// entries. The first line of a message is its title, the whole text its
// description. Messages that cannot be read are skipped and reported.
func ParseTelegramChannel(data []byte, feedURL string) ([]domain.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create document from reader: %w", err)
	}

	var entries []domain.Entry
	var errs []error

	doc.Find("a.tgme_widget_message_date").Each(func(_ int, s *goquery.Selection) {
		entry, processErr := telegramEntry(s, feedURL)
		if processErr != nil {
			errs = append(errs, fmt.Errorf("process message: %w", processErr))
			return
		}

		entries = append(entries, entry)
	})

	return entries, errors.Join(errs...)
}

func telegramEntry(s *goquery.Selection, feedURL string) (domain.Entry, error) {
	href, ok := s.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.Entry{}, errors.New("href empty")
	}

	link := TelegramMessageCanonicalURL(href)

	var textBuilder strings.Builder
	message := s.ParentsFiltered(".tgme_widget_message").First()
	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})
			fragment := strings.TrimSpace(inner.Text())
			if fragment == "" {
				return
			}
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n")
			}
			textBuilder.WriteString(fragment)
		},
	)
	text := strings.TrimSpace(textBuilder.String())

	var published *time.Time

	if datetime := strings.TrimSpace(s.Find("time").AttrOr("datetime", "")); datetime != "" {
		parsed, err := time.Parse(time.RFC3339, datetime)
		if err != nil {
			return domain.Entry{}, fmt.Errorf("parse datetime: %w", err)
		}
		published = &parsed
	}

	title, _, _ := strings.Cut(text, "\n")
	title = strings.TrimSpace(title)

	return domain.Entry{
		Title:       title,
		Description: strings.Join(strings.Fields(text), " "),
		Link:        link,
		PublishedAt: published,
		Fingerprint: Fingerprint(title, link),
		FeedURL:     feedURL,
	}, nil
}
