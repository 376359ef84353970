package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/pkg/collection"
	"github.com/shashiranjanraj/leppupy/pkg/event"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
	"github.com/shashiranjanraj/leppupy/pkg/storage"
	"github.com/shashiranjanraj/leppupy/pkg/workerpool"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	toggleAttempts  = 5
)

// OrderService turns carts into orders and manages them afterwards.
type OrderService struct {
	store  repositories.Store
	blobs  *ContentStore
	events *event.Bus
	now    func() time.Time
	phone  string

	pool *workerpool.Pool
	disk storage.Disk
}

// OrderOption configures an OrderService.
type OrderOption func(*OrderService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

// WithWhatsAppPhone sets the shop number checkout links point at.
func WithWhatsAppPhone(phone string) OrderOption {
	return func(s *OrderService) { s.phone = phone }
}

// WithArchive copies every export to disk under exports/ using pool.
func WithArchive(pool *workerpool.Pool, disk storage.Disk) OrderOption {
	return func(s *OrderService) { s.pool, s.disk = pool, disk }
}

func NewOrderService(store repositories.Store, blobs *ContentStore, events *event.Bus, opts ...OrderOption) *OrderService {
	s := &OrderService{
		store:  store,
		blobs:  blobs,
		events: events,
		now:    time.Now,
		phone:  config.WhatsAppPhone(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OrderEvent is the payload of the order events.
type OrderEvent struct {
	ID      string        `json:"id"`
	OrderID string        `json:"orden_id"`
	Owner   string        `json:"client_id"`
	Status  models.Status `json:"estado"`
}

func (s *OrderService) fire(ctx context.Context, name string, o models.Order) {
	if s.events == nil {
		return
	}
	s.events.FireAsync(ctx, name, OrderEvent{ID: o.ID.Hex(), OrderID: o.OrderID, Owner: o.Owner, Status: o.Status})
}

// Checkout converts the owner's whole cart into one order and empties the
// cart in the same transaction.
func (s *OrderService) Checkout(ctx context.Context, owner string) (models.CheckoutResult, error) {
	var order models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		entries, err := s.store.Carts().ByOwner(ctx, owner)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return models.ErrEmptyCart
		}

		order = models.Order{
			OrderID:   uuid.NewString(),
			Owner:     owner,
			CreatedAt: s.now().UTC(),
			Status:    models.StatusSubmitted,
			LineItems: make([]models.LineItem, 0, len(entries)),
			ItemCount: len(entries),
		}
		for _, e := range entries {
			order.LineItems = append(order.LineItems, models.LineItem{
				EntryID:   e.EntryID,
				ProductID: e.ProductID,
				Form:      e.Form,
				AddedAt:   e.CreatedAt,
			})
			order.TotalQuantity += models.Quantity(e.Form)
		}
		if err := s.store.Orders().Insert(ctx, &order); err != nil {
			return err
		}
		_, err = s.store.Carts().DeleteByOwner(ctx, owner)
		return err
	})
	if err != nil {
		return models.CheckoutResult{}, err
	}

	metrics.OrdersPlaced.Inc()
	logger.WithCtx(ctx).Info("order placed", "order_id", order.OrderID, "client_id", owner,
		"items", order.ItemCount, "quantity", order.TotalQuantity)
	s.fire(ctx, event.OrderPlaced, order)

	name := s.clientNames(ctx, []string{owner})[owner]
	return models.CheckoutResult{
		Order:        order,
		WhatsAppLink: WhatsAppLink(s.phone, OrderSummary(name, order)),
	}, nil
}

// ToggleStatus advances the order one step through the status cycle and
// returns the new status. Concurrent toggles never skip a state: the
// update only applies if the status is still the one that was read.
func (s *OrderService) ToggleStatus(ctx context.Context, id string) (models.Status, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		o, err := s.store.Orders().Find(ctx, oid)
		if err != nil {
			return "", err
		}
		next := o.Status.Next()
		ok, err := s.store.Orders().SetStatus(ctx, oid, o.Status, next)
		if err != nil {
			return "", fmt.Errorf("order: toggle: %w", err)
		}
		if ok {
			metrics.OrderTransitions.WithLabelValues(string(next)).Inc()
			o.Status = next
			s.fire(ctx, event.OrderStatusChanged, o)
			return next, nil
		}
	}
	return "", fmt.Errorf("%w: order %s changed concurrently", models.ErrConflict, id)
}

// ListForOwner returns the owner's orders newest first.
func (s *OrderService) ListForOwner(ctx context.Context, owner string) ([]models.OrderView, error) {
	orders, err := s.store.Orders().ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, orders, false)
}

// ListAll returns every order newest first with client names resolved.
func (s *OrderService) ListAll(ctx context.Context) ([]models.OrderView, error) {
	orders, err := s.store.Orders().All(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, orders, true)
}

// GetByID returns one order with product and client names resolved.
func (s *OrderService) GetByID(ctx context.Context, id string) (models.OrderView, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return models.OrderView{}, err
	}
	o, err := s.store.Orders().Find(ctx, oid)
	if err != nil {
		return models.OrderView{}, err
	}
	views, err := s.views(ctx, []models.Order{o}, true)
	if err != nil {
		return models.OrderView{}, err
	}
	return views[0], nil
}

// Delete removes an order permanently.
func (s *OrderService) Delete(ctx context.Context, id string) error {
	oid, err := models.ParseID(id)
	if err != nil {
		return err
	}
	o, err := s.store.Orders().Find(ctx, oid)
	if err != nil {
		return err
	}
	if err := s.store.Orders().Delete(ctx, oid); err != nil {
		return err
	}
	s.fire(ctx, event.OrderDeleted, o)
	return nil
}

// views resolves product names with one batched lookup. Products deleted
// since checkout show as models.UnknownModel.
func (s *OrderService) views(ctx context.Context, orders []models.Order, withClients bool) ([]models.OrderView, error) {
	var ids []primitive.ObjectID
	var owners []string
	for _, o := range orders {
		ids = append(ids, o.ProductIDs()...)
		owners = append(owners, o.Owner)
	}
	names, err := s.productNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	var clients map[string]string
	if withClients {
		clients = s.clientNames(ctx, owners)
	}

	out := make([]models.OrderView, 0, len(orders))
	for _, o := range orders {
		v := models.OrderView{
			ID:            o.ID.Hex(),
			OrderID:       o.OrderID,
			Owner:         o.Owner,
			ClientName:    clients[o.Owner],
			CreatedAt:     o.CreatedAt,
			Status:        o.Status,
			ItemCount:     o.ItemCount,
			TotalQuantity: o.TotalQuantity,
			Products:      make([]models.LineItemView, 0, len(o.LineItems)),
		}
		for _, li := range o.LineItems {
			name, ok := names[li.ProductID]
			if !ok {
				logger.WithCtx(ctx).Warn("order: line item product missing", "order_id", o.OrderID,
					"error", fmt.Errorf("%w: product %s", models.ErrDanglingReference, li.ProductID.Hex()))
				name = models.UnknownModel
			}
			v.Products = append(v.Products, models.LineItemView{LineItem: li, Model: name})
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *OrderService) productNames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	products, err := s.store.Products().FindMany(ctx, collection.Unique(ids))
	if err != nil {
		return nil, fmt.Errorf("order: products: %w", err)
	}
	out := make(map[primitive.ObjectID]string, len(products))
	for id, p := range products {
		out[id] = p.Name
	}
	return out, nil
}

// clientNames maps owner ids to names. Lookup failures fall back to
// models.UnknownClient; they never fail the caller.
func (s *OrderService) clientNames(ctx context.Context, owners []string) map[string]string {
	out := make(map[string]string, len(owners))
	var ids []primitive.ObjectID
	for _, o := range owners {
		out[o] = models.UnknownClient
		if id, err := primitive.ObjectIDFromHex(o); err == nil {
			ids = append(ids, id)
		}
	}
	users, err := s.store.Users().FindMany(ctx, collection.Unique(ids))
	if err != nil {
		logger.WithCtx(ctx).Warn("order: client lookup failed", "error", err)
		return out
	}
	for id, u := range users {
		out[id.Hex()] = u.Name
	}
	return out
}
