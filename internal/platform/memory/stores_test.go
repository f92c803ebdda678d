package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/store"
)

func TestLabelStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewLabelStore()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Get(ctx, "unknown")
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec, err := domain.NewLabelRecord("img1", []domain.Label{{Name: "Cat", Confidence: 99}}, t0)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, rec))
	require.NoError(t, s.Put(ctx, rec))
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(ctx, "img1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	t.Run("returned record is a copy", func(t *testing.T) {
		got.Labels[0].Name = "Dog"
		again, err := s.Get(ctx, "img1")
		require.NoError(t, err)
		assert.Equal(t, "Cat", again.Labels[0].Name)
	})

	t.Run("older extraction does not replace newer", func(t *testing.T) {
		newer, err := domain.NewLabelRecord("img1", []domain.Label{{Name: "Tiger", Confidence: 90}}, t0.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, newer))
		require.NoError(t, s.Put(ctx, rec))
		got, err := s.Get(ctx, "img1")
		require.NoError(t, err)
		assert.Equal(t, "Tiger", got.Labels[0].Name)
	})

	t.Run("invalid record", func(t *testing.T) {
		err := s.Put(ctx, &domain.LabelRecord{})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}

func TestThumbnailStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewThumbnailStore()

	_, err := s.Get(ctx, "img1", "small")
	assert.ErrorIs(t, err, store.ErrThumbnailNotFound)

	asset := &domain.ThumbnailAsset{
		ImageID:     "img1",
		Variant:     "small",
		Location:    domain.ThumbnailLocation("img1", "small"),
		Width:       128,
		Height:      64,
		ContentType: "image/jpeg",
	}
	require.NoError(t, s.Put(ctx, asset))
	require.NoError(t, s.Put(ctx, asset))
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(ctx, "img1", "small")
	require.NoError(t, err)
	assert.Equal(t, asset, got)

	_, err = s.Get(ctx, "img1", "medium")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, &domain.ThumbnailAsset{ImageID: "img1"}), store.ErrInvalidEntity)
}

func TestObjectStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewObjectStore("images")
	assert.Equal(t, "images", s.Bucket())

	_, err := s.Get(ctx, "uploads/a.jpeg")
	assert.ErrorIs(t, err, store.ErrObjectNotFound)

	data := []byte{1, 2, 3}
	require.NoError(t, s.Put(ctx, "uploads/a.jpeg", data, "image/jpeg"))
	data[0] = 9

	got, err := s.Get(ctx, "uploads/a.jpeg")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	obj, ok := s.Object("uploads/a.jpeg")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	require.NoError(t, s.Put(ctx, "thumbnails/a/small.jpg", nil, "image/jpeg"))
	assert.Equal(t, []string{"thumbnails/a/small.jpg", "uploads/a.jpeg"}, s.Keys())
}
