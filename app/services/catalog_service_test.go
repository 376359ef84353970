package services_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/pkg/event"
)

func TestCreateProductAppendsAndSharesEmptyBlobs(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "Roble")
	b := f.product(t, "Cedro")

	assert.Equal(t, 1, a.SortOrder)
	assert.Equal(t, 2, b.SortOrder)
	assert.Equal(t, a.FormHash, b.FormHash, "empty forms dedupe")
	assert.Equal(t, a.LaserHash, b.LaserHash)
	assert.Equal(t, 1, f.blobCount(t, models.KindForm))
	assert.Equal(t, 1, f.blobCount(t, models.KindLaser))
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := []byte("img")

	cases := map[string]struct {
		name    string
		gallery [][]byte
		primary []byte
	}{
		"no name":    {"  ", [][]byte{img}, img},
		"no gallery": {"Roble", [][]byte{nil}, img},
		"no primary": {"Roble", [][]byte{img}, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.catalog.CreateProduct(ctx, tc.name, tc.gallery, tc.primary)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
	assert.Zero(t, f.blobCount(t, models.KindImage))
}

func TestListCatalogResolvesPrimaryImage(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Roble")

	items, err := f.catalog.ListCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	uri := models.DataURI("Um9ibGUtcHJpbWFyeQ==")
	want := models.CatalogItem{ID: p.ID.Hex(), Model: "Roble", SortOrder: 1, Image: &uri}
	if diff := cmp.Diff(want, items[0]); diff != "" {
		t.Errorf("catalog item mismatch (-want +got):\n%s", diff)
	}
}

func TestGetDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Roble")

	_, err := f.catalog.UpdateSchema(ctx, p.ID.Hex(), `{"Cantidad":"number"}`)
	require.NoError(t, err)

	d, err := f.catalog.GetDetail(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Roble", d.Model)
	assert.Equal(t, map[string]any{"Cantidad": "number"}, d.Forms)
	assert.Equal(t, map[string]any{}, d.LaserSpec)
	assert.Equal(t, []string{models.DataURI("Um9ibGUtZ2FsbGVyeQ==")}, d.Images)

	_, err = f.catalog.GetDetail(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrInvalidID)
	_, err = f.catalog.GetDetail(ctx, "65f0c0ffee0000000000abcd")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetDetailUsesPlaceholderWithoutGallery(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	blobs := services.NewContentStore(store.Blobs())
	catalog := services.NewCatalogService(store, blobs, nil, nil)

	p := models.Product{Name: "Pino", SortOrder: 1}
	require.NoError(t, store.Products().Insert(ctx, &p))

	d, err := catalog.GetDetail(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{config.ImagePlaceholder()}, d.Images)
	assert.Empty(t, d.Forms)
}

func TestUpdateSchemaReleasesOldBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product(t, "Roble")
	f.product(t, "Cedro")

	changed, err := f.catalog.UpdateSchema(ctx, a.ID.Hex(), map[string]any{"Figura": "text"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, f.blobCount(t, models.KindForm), "empty form still used by Cedro")

	changed, err = f.catalog.UpdateSchema(ctx, a.ID.Hex(), `{"Figura":"text"}`)
	require.NoError(t, err)
	assert.False(t, changed, "same content is a no-op")

	changed, err = f.catalog.UpdateSchema(ctx, a.ID.Hex(), map[string]any{"Figura": "number"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, f.blobCount(t, models.KindForm), "previous schema released")
}

func TestUpdateSchemaRejectsNonObject(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Roble")
	for _, payload := range []any{nil, map[string]any(nil), "null", "[1,2]", "not json", 42} {
		_, err := f.catalog.UpdateLaserSpec(context.Background(), p.ID.Hex(), payload)
		assert.ErrorIs(t, err, models.ErrInvalidInput, "payload %v", payload)
	}
}

func TestDeleteProductClosesGapAndReleasesBlobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "Roble")
	b := f.product(t, "Cedro")
	f.product(t, "Pino")

	_, err := f.catalog.UpdateLaserSpec(ctx, b.ID.Hex(), map[string]any{"Ancho": 40})
	require.NoError(t, err)
	require.Equal(t, 2, f.blobCount(t, models.KindLaser))

	require.NoError(t, f.catalog.DeleteProduct(ctx, b.ID.Hex()))

	if diff := cmp.Diff(map[string]int{"Roble": 1, "Pino": 2}, f.sortOrders(t)); diff != "" {
		t.Errorf("sort orders (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, f.blobCount(t, models.KindImage))
	assert.Equal(t, 1, f.blobCount(t, models.KindLaser))

	err = f.catalog.DeleteProduct(ctx, b.ID.Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMoveSwapsWithNeighbour(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product(t, "Roble")
	f.product(t, "Cedro")
	c := f.product(t, "Pino")

	require.NoError(t, f.catalog.Move(ctx, c.ID.Hex(), models.Up))
	assert.Equal(t, map[string]int{"Roble": 1, "Pino": 2, "Cedro": 3}, f.sortOrders(t))

	assert.ErrorIs(t, f.catalog.Move(ctx, a.ID.Hex(), models.Up), models.ErrNoNeighbor)
	assert.ErrorIs(t, f.catalog.Move(ctx, a.ID.Hex(), models.Direction("sideways")), models.ErrInvalidInput)
	assert.ErrorIs(t, f.catalog.Move(ctx, "bad", models.Down), models.ErrInvalidID)
}

func TestSortOrderStaysAPermutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var ids []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		ids = append(ids, f.product(t, name).ID.Hex())
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		id := ids[rng.Intn(len(ids))]
		dir := models.Up
		if rng.Intn(2) == 0 {
			dir = models.Down
		}
		if err := f.catalog.Move(ctx, id, dir); err != nil {
			require.ErrorIs(t, err, models.ErrNoNeighbor)
		}
		if i == 100 {
			require.NoError(t, f.catalog.DeleteProduct(ctx, ids[2]))
			ids = append(ids[:2], ids[3:]...)
		}
	}

	seen := map[int]bool{}
	for _, order := range f.sortOrders(t) {
		assert.False(t, seen[order], "duplicate sort order %d", order)
		seen[order] = true
	}
	for i := 1; i <= len(ids); i++ {
		assert.True(t, seen[i], "missing sort order %d", i)
	}
}

// claimCounter counts ClaimOrder calls made through the store.
type claimCounter struct {
	repositories.Store
	claims *int
}

func (c claimCounter) Products() repositories.ProductRepository {
	return claimingProducts{c.Store.Products(), c.claims}
}

type claimingProducts struct {
	repositories.ProductRepository
	claims *int
}

func (p claimingProducts) ClaimOrder(ctx context.Context) error {
	*p.claims++
	return p.ProductRepository.ClaimOrder(ctx)
}

func TestSortOrderWritesClaimTheCatalogOrder(t *testing.T) {
	ctx := context.Background()
	var claims int
	store := claimCounter{repositories.NewMemoryStore(), &claims}
	catalog := services.NewCatalogService(store, services.NewContentStore(store.Blobs()), nil, nil)

	a, err := catalog.CreateProduct(ctx, "Roble", [][]byte{[]byte("r")}, []byte("rp"))
	require.NoError(t, err)
	_, err = catalog.CreateProduct(ctx, "Cedro", [][]byte{[]byte("c")}, []byte("cp"))
	require.NoError(t, err)
	require.NoError(t, catalog.Move(ctx, a.ID.Hex(), models.Down))
	require.NoError(t, catalog.DeleteProduct(ctx, a.ID.Hex()))

	assert.Equal(t, 4, claims)
}

func TestCatalogChangesFireEvents(t *testing.T) {
	store := repositories.NewMemoryStore()
	bus := event.NewBus()
	var got []services.CatalogChange
	bus.Listen(event.CatalogChanged, func(_ context.Context, payload any) {
		got = append(got, payload.(services.CatalogChange))
	})
	catalog := services.NewCatalogService(store, services.NewContentStore(store.Blobs()), nil, bus)

	p, err := catalog.CreateProduct(context.Background(), "Roble", [][]byte{[]byte("g")}, []byte("p"))
	require.NoError(t, err)
	require.NoError(t, catalog.DeleteProduct(context.Background(), p.ID.Hex()))

	want := []services.CatalogChange{
		{Action: "created", ProductID: p.ID.Hex()},
		{Action: "deleted", ProductID: p.ID.Hex()},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}
