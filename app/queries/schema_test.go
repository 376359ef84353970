package queries_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/queries"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/app/services"
)

func run(t *testing.T, schema graphql.Schema, q string) map[string]any {
	t.Helper()
	res := graphql.Do(graphql.Params{Schema: schema, RequestString: q, Context: context.Background()})
	require.Empty(t, res.Errors)
	raw, err := json.Marshal(res.Data)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestSchemaResolvesCatalogAndOrders(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	blobs := services.NewContentStore(store.Blobs())
	catalog := services.NewCatalogService(store, blobs, nil, nil)
	cart := services.NewCartService(store, blobs)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	orders := services.NewOrderService(store, blobs, nil, services.WithClock(func() time.Time { return now }))

	p, err := catalog.CreateProduct(ctx, "Roble", [][]byte{[]byte("g")}, []byte("p"))
	require.NoError(t, err)
	_, err = catalog.UpdateSchema(ctx, p.ID.Hex(), map[string]any{"cantidad": "number"})
	require.NoError(t, err)

	u := models.User{Name: "Ana", Email: "ana@example.com", Role: models.RoleClient}
	require.NoError(t, store.Users().Insert(ctx, &u))
	_, _, err = cart.Add(ctx, u.ID.Hex(), p.ID.Hex(), map[string]any{"cantidad": "4"})
	require.NoError(t, err)
	placed, err := orders.Checkout(ctx, u.ID.Hex())
	require.NoError(t, err)

	schema, err := queries.NewSchema(catalog, orders, func() time.Time { return now })
	require.NoError(t, err)

	data := run(t, schema, `{ products { id model sort_order image } }`)
	products := data["products"].([]any)
	require.Len(t, products, 1)
	first := products[0].(map[string]any)
	assert.Equal(t, "Roble", first["model"])
	assert.EqualValues(t, 1, first["sort_order"])

	data = run(t, schema, `{ product(id: "`+p.ID.Hex()+`") { model forms images } }`)
	detail := data["product"].(map[string]any)
	assert.JSONEq(t, `{"cantidad":"number"}`, detail["forms"].(string))
	assert.Len(t, detail["images"], 1)

	data = run(t, schema, `{ orders { orden_id client_name estado total_urnas productos { model_name quantity } } }`)
	list := data["orders"].([]any)
	require.Len(t, list, 1)
	o := list[0].(map[string]any)
	assert.Equal(t, placed.Order.OrderID, o["orden_id"])
	assert.Equal(t, "Ana", o["client_name"])
	assert.Equal(t, string(models.StatusSubmitted), o["estado"])
	assert.EqualValues(t, 4, o["total_urnas"])
	line := o["productos"].([]any)[0].(map[string]any)
	assert.Equal(t, "Roble", line["model_name"])
	assert.EqualValues(t, 4, line["quantity"])

	data = run(t, schema, `{ report { best_sellers { model quantity } top_clients { client_name orders } } }`)
	rep := data["report"].(map[string]any)
	best := rep["best_sellers"].([]any)[0].(map[string]any)
	assert.Equal(t, "Roble", best["model"])
	assert.EqualValues(t, 4, best["quantity"])
}

func TestSchemaReportsUnknownProduct(t *testing.T) {
	store := repositories.NewMemoryStore()
	blobs := services.NewContentStore(store.Blobs())
	schema, err := queries.NewSchema(services.NewCatalogService(store, blobs, nil, nil), services.NewOrderService(store, blobs, nil), nil)
	require.NoError(t, err)

	res := graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: `{ product(id: "65f0c0ffee0000000000beef") { model } }`,
		Context:       context.Background(),
	})
	require.NotEmpty(t, res.Errors)
}
