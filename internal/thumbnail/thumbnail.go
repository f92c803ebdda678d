// Package thumbnail renders the fixed-size JPEG variants stored for every
// processed image.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register decoder
	"sort"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// ContentType of every rendered thumbnail.
const ContentType = "image/jpeg"

// DefaultMaxPixels caps the declared width*height of a source image.
const DefaultMaxPixels = 50_000_000

var (
	// ErrUndecodable means the source bytes are not an image this package can
	// read. It is permanent.
	ErrUndecodable = errors.New("image cannot be decoded")

	// ErrUnknownVariant is returned for a variant name that is not configured.
	ErrUnknownVariant = errors.New("unknown thumbnail variant")
)

// Thumbnail is one rendered variant.
type Thumbnail struct {
	Data        []byte
	Width       int
	Height      int
	ContentType string
}

// Transformer renders thumbnail variants of an image.
type Transformer interface {
	// Variants returns the configured variant names in a stable order.
	Variants() []string
	Resize(ctx context.Context, img []byte, variant string) (Thumbnail, error)
}

// Resizer scales images so their longest edge fits the variant's size.
// Output is deterministic for the same input and settings.
type Resizer struct {
	sizes     map[string]int
	names     []string
	quality   int
	maxPixels int64
}

// Option configures a Resizer.
type Option func(*Resizer)

// WithMaxPixels rejects sources whose header declares more than n pixels.
// Values <= 0 keep DefaultMaxPixels.
func WithMaxPixels(n int64) Option {
	return func(r *Resizer) {
		if n > 0 {
			r.maxPixels = n
		}
	}
}

// NewResizer builds a Resizer from variant name to longest-edge pixels.
func NewResizer(variants map[string]int, quality int, opts ...Option) (*Resizer, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("thumbnail: at least one variant is required")
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("thumbnail: jpeg quality %d out of range", quality)
	}

	sizes := make(map[string]int, len(variants))
	names := make([]string, 0, len(variants))
	for name, edge := range variants {
		if name == "" || edge <= 0 {
			return nil, fmt.Errorf("thumbnail: invalid variant %q=%d", name, edge)
		}
		sizes[name] = edge
		names = append(names, name)
	}
	sort.Strings(names)

	r := &Resizer{sizes: sizes, names: names, quality: quality, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Variants implements Transformer.
func (r *Resizer) Variants() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Resize implements Transformer. Images already smaller than the variant are
// re-encoded at their original size, never upscaled.
func (r *Resizer) Resize(ctx context.Context, img []byte, variant string) (Thumbnail, error) {
	edge, ok := r.sizes[variant]
	if !ok {
		return Thumbnail{}, fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
	if err := ctx.Err(); err != nil {
		return Thumbnail{}, err
	}

	// The header is checked first: decoders allocate the full canvas before
	// reading pixel data.
	hdr, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return Thumbnail{}, fmt.Errorf("%w: empty image", ErrUndecodable)
	}
	if pixels := int64(hdr.Width) * int64(hdr.Height); pixels > r.maxPixels {
		return Thumbnail{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUndecodable, hdr.Width, hdr.Height, r.maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), edge)
	if w == 0 || h == 0 {
		return Thumbnail{}, fmt.Errorf("%w: empty image", ErrUndecodable)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: r.quality}); err != nil {
		return Thumbnail{}, fmt.Errorf("thumbnail: encode %s: %w", variant, err)
	}

	return Thumbnail{Data: buf.Bytes(), Width: w, Height: h, ContentType: ContentType}, nil
}

// fit scales (w, h) so the longer side equals edge, keeping the aspect ratio.
func fit(w, h, edge int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= edge && h <= edge {
		return w, h
	}
	if w >= h {
		nh := h * edge / w
		if nh < 1 {
			nh = 1
		}
		return edge, nh
	}
	nw := w * edge / h
	if nw < 1 {
		nw = 1
	}
	return nw, edge
}

var _ Transformer = (*Resizer)(nil)
