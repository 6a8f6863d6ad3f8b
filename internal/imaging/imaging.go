// Package imaging downloads link preview images and shrinks them under the
// blob size limit of the publishing platform.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

const (
	MaxImageSize = 1_000_000

	reducedContentType = "image/jpeg"
	jpegQuality        = 75
	scaleFactor        = 0.8
	maxIterations      = 40
	maxImageBodyBytes  = 50 << 20
)

var (
	ErrEmptyImage      = errors.New("empty image")
	ErrNoContentType   = errors.New("no content type")
	ErrReductionFailed = errors.New("image reduction failed")
)

type Image struct {
	Data        []byte
	ContentType string
	Reduced     bool
}

type Adapter struct {
	client  *http.Client
	maxSize int
	log     *slog.Logger
}

func NewAdapter(client *http.Client, log *slog.Logger) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}

	return &Adapter{
		client:  client,
		maxSize: MaxImageSize,
		log:     log,
	}
}

// Fetch downloads the image and re-encodes it as JPEG when it is larger than
// MaxImageSize.
func (a *Adapter) Fetch(ctx context.Context, imageURL string) (Image, error) {
	data, contentType, err := a.download(ctx, imageURL)
	if err != nil {
		return Image{}, err
	}

	if len(data) <= a.maxSize {
		return Image{Data: data, ContentType: contentType}, nil
	}

	reduced, err := Reduce(data, a.maxSize)
	if err != nil {
		return Image{}, fmt.Errorf("reduce image: %w", err)
	}

	a.log.InfoContext(ctx, "Image is reduced",
		"url", imageURL,
		"originalSize", len(data),
		"reducedSize", len(reduced))

	return Image{Data: reduced, ContentType: reducedContentType, Reduced: true}, nil
}

func (a *Adapter) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := a.client.Do(req) //nolint:gosec // URL comes from og:image of a configured feed link
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			a.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", imageURL,
				"operation", "download")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		return nil, "", ErrNoContentType
	}

	return data, contentType, nil
}

// Reduce scales the image down by 20% per step and encodes it as JPEG until
// the result fits in limit bytes. Each step scales from the decoded source so
// quality loss does not accumulate.
func Reduce(data []byte, limit int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width := float64(bounds.Dx())
	height := float64(bounds.Dy())

	var buf bytes.Buffer

	for range maxIterations {
		width *= scaleFactor
		height *= scaleFactor

		if width < 1 || height < 1 {
			return nil, ErrReductionFailed
		}

		dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

		buf.Reset()

		if err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}

		if buf.Len() <= limit {
			return bytes.Clone(buf.Bytes()), nil
		}
	}

	return nil, ErrReductionFailed
}
