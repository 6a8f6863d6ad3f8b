package bluesky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedsky/internal/domain"
	"feedsky/internal/imaging"
	"feedsky/internal/opengraph"
)

var (
	ErrNoSession  = errors.New("no session")
	ErrEmptyEntry = errors.New("entry has no title, description or link")
)

type Enricher interface {
	Enrich(ctx context.Context, pageURL string) opengraph.Metadata
}

type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) (imaging.Image, error)
}

type recordAPI interface {
	UploadBlob(ctx context.Context, accessJwt string, data []byte, contentType string) (json.RawMessage, error)
	CreateRecord(ctx context.Context, accessJwt string, req CreateRecordRequest) (CreateRecordResponse, error)
}

type Result struct {
	Posted bool
	URI    string
	CID    string
}

type PublisherOptions struct {
	Langs  []string
	DryRun bool
}

type Publisher struct {
	api      recordAPI
	enricher Enricher
	images   ImageFetcher
	opts     PublisherOptions
	now      func() time.Time
	log      *slog.Logger
}

func NewPublisher(
	api *Client,
	enricher Enricher,
	images ImageFetcher,
	opts PublisherOptions,
	log *slog.Logger,
) *Publisher {
	return newPublisher(api, enricher, images, opts, log)
}

func newPublisher(
	api recordAPI,
	enricher Enricher,
	images ImageFetcher,
	opts PublisherOptions,
	log *slog.Logger,
) *Publisher {
	return &Publisher{
		api:      api,
		enricher: enricher,
		images:   images,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
}

// Publish posts one entry. In dry-run mode the record is only logged and the
// result reports nothing posted.
func (p *Publisher) Publish(
	ctx context.Context,
	session *Session,
	entry domain.Entry,
) (Result, error) {
	if session == nil || !session.Valid() {
		return Result{}, ErrNoSession
	}

	if entry.IsEmpty() {
		return Result{}, ErrEmptyEntry
	}

	meta := p.enricher.Enrich(ctx, entry.Link)
	record := buildRecord(entry, meta, p.opts.Langs, p.now())

	if record.Embed != nil && meta.Image() != "" {
		record.Embed.External.Thumb = p.thumbnail(ctx, session, meta.Image())
	}

	req := CreateRecordRequest{
		Repo:       session.DID,
		Collection: collectionPost,
		Record:     record,
	}

	if p.opts.DryRun {
		payload, err := json.Marshal(req)
		if err != nil {
			return Result{}, fmt.Errorf("marshal record: %w", err)
		}

		p.log.InfoContext(ctx, "Dry run, record is not posted",
			"link", entry.Link,
			"record", string(payload))

		return Result{}, nil
	}

	resp, err := p.api.CreateRecord(ctx, session.AccessJwt, req)
	if err != nil {
		return Result{}, fmt.Errorf("create record: %w", err)
	}

	p.log.InfoContext(ctx, "Post is created",
		"link", entry.Link,
		"uri", resp.URI)

	return Result{Posted: true, URI: resp.URI, CID: resp.CID}, nil
}

// thumbnail returns nil on any failure; a post without a preview image is
// still published.
func (p *Publisher) thumbnail(ctx context.Context, session *Session, imageURL string) json.RawMessage {
	img, err := p.images.Fetch(ctx, imageURL)
	if err != nil {
		p.log.WarnContext(ctx, "Failed to fetch preview image",
			"error", err,
			"url", imageURL)

		return nil
	}

	if p.opts.DryRun {
		p.log.InfoContext(ctx, "Dry run, preview image is not uploaded",
			"url", imageURL,
			"size", len(img.Data),
			"contentType", img.ContentType,
			"reduced", img.Reduced)

		return nil
	}

	blob, err := p.api.UploadBlob(ctx, session.AccessJwt, img.Data, img.ContentType)
	if err != nil {
		p.log.WarnContext(ctx, "Failed to upload preview image",
			"error", err,
			"url", imageURL)

		return nil
	}

	return blob
}
