package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/app/services"
)

type fixture struct {
	store   *repositories.MemoryStore
	blobs   *services.ContentStore
	catalog *services.CatalogService
	cart    *services.CartService
	orders  *services.OrderService
}

func newFixture(t *testing.T, opts ...services.OrderOption) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	blobs := services.NewContentStore(store.Blobs())
	opts = append([]services.OrderOption{services.WithWhatsAppPhone("3325648862")}, opts...)
	return &fixture{
		store:   store,
		blobs:   blobs,
		catalog: services.NewCatalogService(store, blobs, nil, nil),
		cart:    services.NewCartService(store, blobs),
		orders:  services.NewOrderService(store, blobs, nil, opts...),
	}
}

func (f *fixture) product(t *testing.T, name string) models.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), name,
		[][]byte{[]byte(name + "-gallery")}, []byte(name+"-primary"))
	require.NoError(t, err)
	return p
}

func (f *fixture) sortOrders(t *testing.T) map[string]int {
	t.Helper()
	all, err := f.store.Products().All(context.Background())
	require.NoError(t, err)
	out := map[string]int{}
	for _, p := range all {
		out[p.Name] = p.SortOrder
	}
	return out
}

func (f *fixture) blobCount(t *testing.T, kind models.BlobKind) int {
	t.Helper()
	hashes, err := f.store.Blobs().Hashes(context.Background(), kind)
	require.NoError(t, err)
	return len(hashes)
}
