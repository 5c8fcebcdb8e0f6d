// Package receipts normalizes uploaded receipt images and stores them.
package receipts

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"mime"
	"strings"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"

	"payback/internal/blob"
	"payback/internal/core"
)

const (
	DefaultMaxBytes  = 10 << 20
	DefaultMaxWidth  = 1200
	DefaultMaxPixels = 0x3FFF * 0x3FFF
	DefaultQuality   = 80
	DefaultURLPrefix = "/uploads/"
)

// Upload is a receipt as received from the client.
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

type Options struct {
	MaxBytes int64
	MaxWidth int
	// MaxPixels bounds width*height as declared in the image header.
	MaxPixels int64
	Quality   int
	URLPrefix string
	IDs       IDGenerator
}

// Ingestor turns uploads into stored JPEG artifacts and hands back a reference.
type Ingestor struct {
	store     blob.Store
	ids       IDGenerator
	maxBytes  int64
	maxWidth  int
	maxPixels int64
	quality   int
	urlPrefix string
	logger    *slog.Logger
}

func NewIngestor(store blob.Store, opts Options, logger *slog.Logger) *Ingestor {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.URLPrefix == "" {
		opts.URLPrefix = DefaultURLPrefix
	}
	if opts.IDs == nil {
		opts.IDs = TimestampIDs{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:     store,
		ids:       opts.IDs,
		maxBytes:  opts.MaxBytes,
		maxWidth:  opts.MaxWidth,
		maxPixels: opts.MaxPixels,
		quality:   opts.Quality,
		urlPrefix: opts.URLPrefix,
		logger:    logger,
	}
}

func (i *Ingestor) MaxBytes() int64 { return i.maxBytes }

// Ingest validates, normalizes and stores the upload. Nothing is written
// unless every earlier step succeeded.
func (i *Ingestor) Ingest(ctx context.Context, up Upload) (string, error) {
	if !isImage(up.ContentType) {
		return "", fmt.Errorf("%w: %q is not an image", core.ErrUnsupportedMedia, up.ContentType)
	}
	if int64(len(up.Data)) > i.maxBytes {
		return "", fmt.Errorf("%w: receipt exceeds %d bytes", core.ErrPayloadTooLarge, i.maxBytes)
	}

	if len(up.Data) == 0 {
		return "", fmt.Errorf("%w: receipt is empty", core.ErrUnsupportedMedia)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(up.Data))
	if err != nil {
		return "", fmt.Errorf("%w: decode receipt header: %v", core.ErrUnsupportedMedia, err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > i.maxPixels {
		return "", fmt.Errorf("%w: receipt is %dx%d, over %d pixels", core.ErrPayloadTooLarge, cfg.Width, cfg.Height, i.maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(up.Data))
	if err != nil {
		return "", fmt.Errorf("%w: decode receipt: %v", core.ErrUnsupportedMedia, err)
	}

	src := img.Bounds()
	img = Fit(img, i.maxWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: i.quality}); err != nil {
		return "", fmt.Errorf("%w: encode receipt: %v", core.ErrIO, err)
	}

	name := i.ids.NewID() + ".jpg"
	if err := i.store.Put(ctx, name, buf.Bytes(), "image/jpeg"); err != nil {
		return "", fmt.Errorf("store receipt: %w", err)
	}

	dst := img.Bounds()
	i.logger.InfoContext(ctx, "Receipt stored",
		"name", name,
		"source_format", format,
		"source_width", src.Dx(),
		"source_height", src.Dy(),
		"width", dst.Dx(),
		"height", dst.Dy(),
		"bytes", buf.Len())

	return i.urlPrefix + name, nil
}

// Discard removes a stored artifact by its reference. Unknown references are ignored.
func (i *Ingestor) Discard(ctx context.Context, ref string) error {
	name, ok := strings.CutPrefix(ref, i.urlPrefix)
	if !ok || name == "" {
		return nil
	}
	if err := i.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("discard receipt: %w", err)
	}
	i.logger.InfoContext(ctx, "Receipt discarded", "name", name)
	return nil
}

// Fit scales img down proportionally so its width is at most maxWidth.
// Narrower images are returned unchanged.
func Fit(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth || w == 0 {
		return img
	}

	nh := int(float64(h) * float64(maxWidth) / float64(w))
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func isImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
