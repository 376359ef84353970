package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
)

func insertProducts(t *testing.T, s *repositories.MemoryStore, names ...string) []models.Product {
	t.Helper()
	var out []models.Product
	for i, n := range names {
		p := models.Product{Name: n, SortOrder: i + 1, FormHash: "f-" + n}
		require.NoError(t, s.Products().Insert(context.Background(), &p))
		out = append(out, p)
	}
	return out
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context) error {
		p := models.Product{Name: "Roble", SortOrder: 1}
		if err := s.Products().Insert(ctx, &p); err != nil {
			return err
		}
		if _, err := s.Blobs().Insert(ctx, models.Blob{Hash: "h", Kind: models.KindImage, Payload: "x"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.Products().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = s.Blobs().Find(ctx, models.KindImage, "h")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(ctx context.Context) error {
			p := models.Product{Name: "Roble"}
			_ = s.Products().Insert(ctx, &p)
			panic("bad")
		})
	})
	n, err := s.Products().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNestedWithTxJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.WithTx(ctx, func(ctx context.Context) error {
			p := models.Product{Name: "Roble"}
			return s.Products().Insert(ctx, &p)
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	n, _ := s.Products().Count(ctx)
	assert.Zero(t, n, "inner writes roll back with the outer transaction")
}

func TestNeighborAndCloseGap(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	ps := insertProducts(t, s, "a", "b", "c")

	up, err := s.Products().Neighbor(ctx, 3, models.Up)
	require.NoError(t, err)
	assert.Equal(t, ps[1].ID, up.ID)
	down, err := s.Products().Neighbor(ctx, 1, models.Down)
	require.NoError(t, err)
	assert.Equal(t, ps[1].ID, down.ID)
	_, err = s.Products().Neighbor(ctx, 1, models.Up)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, s.Products().Delete(ctx, ps[0].ID))
	require.NoError(t, s.Products().CloseGap(ctx, 1))
	all, err := s.Products().All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Name)
	assert.Equal(t, 1, all[0].SortOrder)
	assert.Equal(t, 2, all[1].SortOrder)
}

func TestCountRefs(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	a := models.Product{Name: "a", Images: models.ProductImages{Primary: "img", Gallery: []string{"img", "g"}}}
	b := models.Product{Name: "b", Images: models.ProductImages{Primary: "img"}}
	require.NoError(t, s.Products().Insert(ctx, &a))
	require.NoError(t, s.Products().Insert(ctx, &b))

	n, err := s.Products().CountRefs(ctx, models.KindImage, "img")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "a product counts once")
	n, err = s.Products().CountRefs(ctx, models.KindImage, "g")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBlobInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	b := models.Blob{Hash: "h", Kind: models.KindForm, Payload: map[string]any{"a": 1.0}}

	ok, err := s.Blobs().Insert(ctx, b)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Blobs().Insert(ctx, b)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Blobs().Insert(ctx, models.Blob{Hash: "h", Kind: "video"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCartDeleteByRowOrToken(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var entries []models.CartEntry
	for i, tok := range []string{"t1", "t2", "t3"} {
		e := models.CartEntry{EntryID: tok, Owner: "ana", CreatedAt: start.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.Carts().Insert(ctx, &e))
		entries = append(entries, e)
	}

	ok, err := s.Carts().Delete(ctx, "luis", "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Carts().Delete(ctx, "ana", "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Carts().Delete(ctx, "ana", entries[1].ID.Hex())
	require.NoError(t, err)
	assert.True(t, ok)

	left, err := s.Carts().ByOwner(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "t3", left[0].EntryID)

	n, err := s.Carts().DeleteByOwner(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSetStatusIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	o := models.Order{OrderID: "x", Status: models.StatusSubmitted}
	require.NoError(t, s.Orders().Insert(ctx, &o))

	ok, err := s.Orders().SetStatus(ctx, o.ID, models.StatusDone, models.StatusSubmitted)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Orders().SetStatus(ctx, o.ID, models.StatusSubmitted, models.StatusInProgress)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := s.Orders().Find(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestUserEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStore()
	a := models.User{Name: "Ana", Email: "Ana@Example.com"}
	require.NoError(t, s.Users().Insert(ctx, &a))
	b := models.User{Name: "Otra", Email: "ana@example.com "}
	assert.ErrorIs(t, s.Users().Insert(ctx, &b), models.ErrConflict)

	got, err := s.Users().FindByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}
