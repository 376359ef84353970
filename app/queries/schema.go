// Package queries exposes a read-only GraphQL view of the catalog, the
// orders and the admin report.
package queries

import (
	"encoding/json"
	"time"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/services"
	appgql "github.com/shashiranjanraj/leppupy/pkg/graphql"
)

// resolve adapts a typed getter to a graphql resolver.
func resolve[T any](get func(T) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		v, ok := p.Source.(T)
		if !ok {
			return nil, nil
		}
		return get(v), nil
	}
}

func field[T any](t graphql.Output, get func(T) any) *graphql.Field {
	return &graphql.Field{Type: t, Resolve: resolve(get)}
}

// jsonText renders a free-form document as a JSON string.
func jsonText(v map[string]any) any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(raw)
}

var catalogItemType = graphql.NewObject(graphql.ObjectConfig{
	Name: "CatalogItem",
	Fields: graphql.Fields{
		"id":         field(graphql.NewNonNull(graphql.ID), func(c models.CatalogItem) any { return c.ID }),
		"model":      field(graphql.String, func(c models.CatalogItem) any { return c.Model }),
		"sort_order": field(graphql.Int, func(c models.CatalogItem) any { return c.SortOrder }),
		"image": field(graphql.String, func(c models.CatalogItem) any {
			if c.Image == nil {
				return nil
			}
			return *c.Image
		}),
	},
})

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Product",
	Fields: graphql.Fields{
		"id":          field(graphql.NewNonNull(graphql.ID), func(d models.ProductDetail) any { return d.ID }),
		"model":       field(graphql.String, func(d models.ProductDetail) any { return d.Model }),
		"images":      field(graphql.NewList(graphql.String), func(d models.ProductDetail) any { return d.Images }),
		"forms":       field(graphql.String, func(d models.ProductDetail) any { return jsonText(d.Forms) }),
		"corte_lazer": field(graphql.String, func(d models.ProductDetail) any { return jsonText(d.LaserSpec) }),
	},
})

var lineItemType = graphql.NewObject(graphql.ObjectConfig{
	Name: "LineItem",
	Fields: graphql.Fields{
		"entry_id":    field(graphql.String, func(l models.LineItemView) any { return l.EntryID }),
		"product_id":  field(graphql.ID, func(l models.LineItemView) any { return l.ProductID.Hex() }),
		"model_name":  field(graphql.String, func(l models.LineItemView) any { return l.Model }),
		"forms_lleno": field(graphql.String, func(l models.LineItemView) any { return jsonText(l.Form) }),
		"quantity":    field(graphql.Int, func(l models.LineItemView) any { return models.Quantity(l.Form) }),
	},
})

var orderType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Order",
	Fields: graphql.Fields{
		"id":            field(graphql.NewNonNull(graphql.ID), func(o models.OrderView) any { return o.ID }),
		"orden_id":      field(graphql.String, func(o models.OrderView) any { return o.OrderID }),
		"client_id":     field(graphql.String, func(o models.OrderView) any { return o.Owner }),
		"client_name":   field(graphql.String, func(o models.OrderView) any { return o.ClientName }),
		"estado":        field(graphql.String, func(o models.OrderView) any { return string(o.Status) }),
		"timestamp":     field(graphql.DateTime, func(o models.OrderView) any { return o.CreatedAt }),
		"total_pedidos": field(graphql.Int, func(o models.OrderView) any { return o.ItemCount }),
		"total_urnas":   field(graphql.Int, func(o models.OrderView) any { return o.TotalQuantity }),
		"productos":     field(graphql.NewList(lineItemType), func(o models.OrderView) any { return o.Products }),
	},
})

var reportType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Report",
	Fields: graphql.Fields{
		"top_clients": field(graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
			Name: "ClientOrders",
			Fields: graphql.Fields{
				"client_id":   field(graphql.String, func(c models.ClientOrders) any { return c.ClientID }),
				"client_name": field(graphql.String, func(c models.ClientOrders) any { return c.Name }),
				"orders":      field(graphql.Int, func(c models.ClientOrders) any { return c.Orders }),
			},
		})), func(r models.Report) any { return r.TopClients }),
		"daily_orders": field(graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
			Name: "DailyOrders",
			Fields: graphql.Fields{
				"date":   field(graphql.String, func(d models.DailyOrders) any { return d.Date }),
				"orders": field(graphql.Int, func(d models.DailyOrders) any { return d.Orders }),
			},
		})), func(r models.Report) any { return r.Daily }),
		"best_sellers": field(graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
			Name: "ProductSales",
			Fields: graphql.Fields{
				"product_id": field(graphql.String, func(p models.ProductSales) any { return p.ProductID }),
				"model":      field(graphql.String, func(p models.ProductSales) any { return p.Model }),
				"quantity":   field(graphql.Int, func(p models.ProductSales) any { return p.Quantity }),
			},
		})), func(r models.Report) any { return r.BestSellers }),
	},
})

var idArgs = graphql.FieldConfigArgument{
	"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
}

// NewSchema builds the admin query schema. now stamps the report window.
func NewSchema(catalog *services.CatalogService, orders *services.OrderService, now func() time.Time) (graphql.Schema, error) {
	if now == nil {
		now = time.Now
	}
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"products": &graphql.Field{
				Type: graphql.NewList(catalogItemType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return catalog.ListCatalog(p.Context)
				},
			},
			"product": &graphql.Field{
				Type: productType,
				Args: idArgs,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(string)
					return catalog.GetDetail(p.Context, id)
				},
			},
			"orders": &graphql.Field{
				Type: graphql.NewList(orderType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return orders.ListAll(p.Context)
				},
			},
			"order": &graphql.Field{
				Type: orderType,
				Args: idArgs,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(string)
					return orders.GetByID(p.Context, id)
				},
			},
			"report": &graphql.Field{
				Type: reportType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return orders.Report(p.Context, now())
				},
			},
		},
	})
	return appgql.NewSchema(query)
}
