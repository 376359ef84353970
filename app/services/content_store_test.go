package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/app/services"
)

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	cs := services.NewContentStore(store.Blobs())

	h1, err := cs.Put(ctx, models.KindForm, map[string]any{"Cantidad": "number", "Figura": "text"})
	require.NoError(t, err)
	h2, err := cs.Put(ctx, models.KindForm, map[string]any{"Figura": "text", "Cantidad": "number"})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	hashes, err := store.Blobs().Hashes(ctx, models.KindForm)
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
}

func TestImageBytesAndBase64HashAlike(t *testing.T) {
	fromBytes, _, err := services.Canonical(models.KindImage, []byte("png"))
	require.NoError(t, err)
	fromText, payload, err := services.Canonical(models.KindImage, "cG5n")
	require.NoError(t, err)

	assert.Equal(t, fromBytes, fromText)
	assert.Equal(t, "cG5n", payload)
}

func TestPutRejectsUnserializable(t *testing.T) {
	cs := services.NewContentStore(repositories.NewMemoryStore().Blobs())

	_, err := cs.Put(context.Background(), models.KindLaser, map[string]any{"bad": make(chan int)})
	assert.ErrorIs(t, err, models.ErrInvalidContent)

	_, err = cs.Put(context.Background(), models.KindImage, 42)
	assert.ErrorIs(t, err, models.ErrInvalidContent)
}

func TestGetMissingBlob(t *testing.T) {
	cs := services.NewContentStore(repositories.NewMemoryStore().Blobs())
	_, err := cs.Get(context.Background(), models.KindImage, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReleaseIfUnreferenced(t *testing.T) {
	ctx := context.Background()
	cs := services.NewContentStore(repositories.NewMemoryStore().Blobs())
	h, err := cs.Put(ctx, models.KindImage, []byte("img"))
	require.NoError(t, err)

	refs := 1
	counter := func(context.Context, models.BlobKind, string) (int, error) { return refs, nil }

	released, err := cs.ReleaseIfUnreferenced(ctx, models.KindImage, h, counter)
	require.NoError(t, err)
	assert.False(t, released, "referenced blob must stay")

	refs = 0
	released, err = cs.ReleaseIfUnreferenced(ctx, models.KindImage, h, counter)
	require.NoError(t, err)
	assert.True(t, released)

	_, err = cs.Get(ctx, models.KindImage, h)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSweepRemovesOnlyOrphans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "Roble")

	_, err := f.blobs.Put(ctx, models.KindImage, []byte("orphan"))
	require.NoError(t, err)
	require.Equal(t, 3, f.blobCount(t, models.KindImage))

	n, err := f.catalog.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, f.blobCount(t, models.KindImage))
	assert.Equal(t, 1, f.blobCount(t, models.KindForm))
}
