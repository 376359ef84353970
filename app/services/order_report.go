package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/pkg/collection"
)

const (
	reportTopN       = 10
	reportWindowDays = 30
	dayLayout        = "2006-01-02"
)

type soldUnit struct {
	product  string
	quantity int
}

// Report aggregates the admin dashboard: clients by order count, orders
// per day over the 30 days ending at now, and products by units sold.
func (s *OrderService) Report(ctx context.Context, now time.Time) (models.Report, error) {
	orders, err := s.store.Orders().All(ctx)
	if err != nil {
		return models.Report{}, fmt.Errorf("order: report: %w", err)
	}

	var rep models.Report

	byClient := collection.TopN(collection.CountBy(orders, func(o models.Order) string { return o.Owner }), reportTopN)
	names := s.clientNames(ctx, collection.Map(byClient, func(r collection.Ranked[string]) string { return r.Key }))
	for _, r := range byClient {
		rep.TopClients = append(rep.TopClients, models.ClientOrders{ClientID: r.Key, Name: names[r.Key], Orders: r.Total})
	}

	rep.Daily = dailyCounts(orders, now)

	var units []soldUnit
	for _, o := range orders {
		for _, li := range o.LineItems {
			units = append(units, soldUnit{product: li.ProductID.Hex(), quantity: models.Quantity(li.Form)})
		}
	}
	best := collection.TopN(collection.SumBy(units,
		func(u soldUnit) string { return u.product },
		func(u soldUnit) int { return u.quantity },
	), reportTopN)

	var ids []primitive.ObjectID
	for _, r := range best {
		if id, err := primitive.ObjectIDFromHex(r.Key); err == nil {
			ids = append(ids, id)
		}
	}
	modelNames, err := s.productNames(ctx, ids)
	if err != nil {
		return models.Report{}, err
	}
	for _, r := range best {
		row := models.ProductSales{ProductID: r.Key, Model: models.UnknownModel, Quantity: r.Total}
		if id, err := primitive.ObjectIDFromHex(r.Key); err == nil {
			if name, ok := modelNames[id]; ok {
				row.Model = name
			}
		}
		rep.BestSellers = append(rep.BestSellers, row)
	}
	return rep, nil
}

// dailyCounts returns one row per UTC day of the window, oldest first,
// including days without orders.
func dailyCounts(orders []models.Order, now time.Time) []models.DailyOrders {
	end := now.UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -(reportWindowDays - 1))
	counts := collection.CountBy(
		collection.Filter(orders, func(o models.Order) bool { return !o.CreatedAt.Before(start) }),
		func(o models.Order) string { return o.CreatedAt.UTC().Format(dayLayout) },
	)
	out := make([]models.DailyOrders, 0, reportWindowDays)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		out = append(out, models.DailyOrders{Date: key, Orders: counts[key]})
	}
	return out
}
