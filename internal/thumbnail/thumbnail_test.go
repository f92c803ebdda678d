package thumbnail

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// declaredPNG returns a valid 1x1 PNG whose IHDR is rewritten to claim w x h.
// Decoding it fully would allocate the whole claimed canvas.
func declaredPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodePNG(t, 1, 1)
	// 8-byte signature, 4-byte length, "IHDR", then width and height.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestNewResizerValidation(t *testing.T) {
	_, err := NewResizer(nil, 85)
	assert.Error(t, err)
	_, err = NewResizer(map[string]int{"small": 0}, 85)
	assert.Error(t, err)
	_, err = NewResizer(map[string]int{"small": 64}, 0)
	assert.Error(t, err)
}

func TestVariantsSorted(t *testing.T) {
	r, err := NewResizer(map[string]int{"medium": 512, "large": 1024, "small": 128}, 85)
	require.NoError(t, err)
	assert.Equal(t, []string{"large", "medium", "small"}, r.Variants())
}

func TestResize(t *testing.T) {
	r, err := NewResizer(map[string]int{"small": 32, "big": 1000}, 85)
	require.NoError(t, err)
	src := encodePNG(t, 200, 100)

	thumb, err := r.Resize(context.Background(), src, "small")
	require.NoError(t, err)
	assert.Equal(t, 32, thumb.Width)
	assert.Equal(t, 16, thumb.Height)
	assert.Equal(t, ContentType, thumb.ContentType)

	decoded, err := jpeg.Decode(bytes.NewReader(thumb.Data))
	require.NoError(t, err)
	assert.Equal(t, 32, decoded.Bounds().Dx())

	t.Run("never upscales", func(t *testing.T) {
		thumb, err := r.Resize(context.Background(), src, "big")
		require.NoError(t, err)
		assert.Equal(t, 200, thumb.Width)
		assert.Equal(t, 100, thumb.Height)
	})

	t.Run("deterministic", func(t *testing.T) {
		again, err := r.Resize(context.Background(), src, "small")
		require.NoError(t, err)
		assert.Equal(t, thumb.Data, again.Data)
	})
}

func TestResizeErrors(t *testing.T) {
	r, err := NewResizer(map[string]int{"small": 32}, 85)
	require.NoError(t, err)

	_, err = r.Resize(context.Background(), []byte("not an image"), "small")
	assert.ErrorIs(t, err, ErrUndecodable)

	_, err = r.Resize(context.Background(), encodePNG(t, 4, 4), "huge")
	assert.ErrorIs(t, err, ErrUnknownVariant)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Resize(ctx, encodePNG(t, 4, 4), "small")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResizeRejectsOversizedSources(t *testing.T) {
	t.Run("header claims 60000x60000", func(t *testing.T) {
		r, err := NewResizer(map[string]int{"small": 32}, 85)
		require.NoError(t, err)

		bomb := declaredPNG(t, 60000, 60000)
		cfg, _, err := image.DecodeConfig(bytes.NewReader(bomb))
		require.NoError(t, err, "header must stay readable")
		require.Equal(t, 60000, cfg.Width)

		_, err = r.Resize(context.Background(), bomb, "small")
		assert.ErrorIs(t, err, ErrUndecodable)
		assert.Contains(t, err.Error(), "60000x60000")
	})

	t.Run("configured budget", func(t *testing.T) {
		r, err := NewResizer(map[string]int{"small": 32}, 85, WithMaxPixels(100))
		require.NoError(t, err)

		_, err = r.Resize(context.Background(), encodePNG(t, 20, 20), "small")
		assert.ErrorIs(t, err, ErrUndecodable)

		thumb, err := r.Resize(context.Background(), encodePNG(t, 10, 10), "small")
		require.NoError(t, err)
		assert.Equal(t, 10, thumb.Width)
	})

	t.Run("non-positive budget keeps default", func(t *testing.T) {
		r, err := NewResizer(map[string]int{"small": 32}, 85, WithMaxPixels(0))
		require.NoError(t, err)
		assert.Equal(t, int64(DefaultMaxPixels), r.maxPixels)
	})
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, edge   int
		wantW, wantH int
	}{
		{w: 1000, h: 500, edge: 100, wantW: 100, wantH: 50},
		{w: 500, h: 1000, edge: 100, wantW: 50, wantH: 100},
		{w: 50, h: 50, edge: 100, wantW: 50, wantH: 50},
		{w: 10000, h: 1, edge: 100, wantW: 100, wantH: 1},
		{w: 0, h: 10, edge: 100, wantW: 0, wantH: 0},
	}
	for _, tc := range tests {
		gotW, gotH := fit(tc.w, tc.h, tc.edge)
		assert.Equal(t, tc.wantW, gotW)
		assert.Equal(t, tc.wantH, gotH)
	}
}
