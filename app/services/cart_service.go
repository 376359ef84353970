package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
)

// CartService is the per-user staging area for orders.
type CartService struct {
	store repositories.Store
	blobs *ContentStore
}

func NewCartService(store repositories.Store, blobs *ContentStore) *CartService {
	return &CartService{store: store, blobs: blobs}
}

// Add stages form for productID and returns the new entry together with
// the owner's cart size.
func (s *CartService) Add(ctx context.Context, owner, productID string, form map[string]any) (models.CartEntry, int, error) {
	if strings.TrimSpace(owner) == "" {
		return models.CartEntry{}, 0, fmt.Errorf("%w: owner is required", models.ErrInvalidInput)
	}
	pid, err := models.ParseID(productID)
	if err != nil {
		return models.CartEntry{}, 0, err
	}
	if _, err := s.store.Products().Find(ctx, pid); err != nil {
		return models.CartEntry{}, 0, err
	}
	if form == nil {
		form = map[string]any{}
	}

	e := models.CartEntry{
		EntryID:   uuid.NewString(),
		Owner:     owner,
		ProductID: pid,
		Form:      form,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Carts().Insert(ctx, &e); err != nil {
		return models.CartEntry{}, 0, fmt.Errorf("cart: add: %w", err)
	}
	n, err := s.store.Carts().CountByOwner(ctx, owner)
	if err != nil {
		return e, 0, fmt.Errorf("cart: count: %w", err)
	}
	return e, n, nil
}

// List returns the owner's entries oldest first.
func (s *CartService) List(ctx context.Context, owner string) ([]models.CartEntry, error) {
	return s.store.Carts().ByOwner(ctx, owner)
}

// Count returns the owner's cart size.
func (s *CartService) Count(ctx context.Context, owner string) (int, error) {
	return s.store.Carts().CountByOwner(ctx, owner)
}

// ListWithProductDetails joins each entry with its product's name and
// primary image using one product and one image lookup.
func (s *CartService) ListWithProductDetails(ctx context.Context, owner string) ([]models.CartLine, error) {
	entries, err := s.store.Carts().ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProductID)
	}
	products, err := s.store.Products().FindMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("cart: products: %w", err)
	}
	var hashes []string
	for _, p := range products {
		if p.Images.Primary != "" {
			hashes = append(hashes, p.Images.Primary)
		}
	}
	images, err := s.blobs.GetMany(ctx, models.KindImage, hashes)
	if err != nil {
		return nil, fmt.Errorf("cart: images: %w", err)
	}

	lines := make([]models.CartLine, 0, len(entries))
	for _, e := range entries {
		line := models.CartLine{
			ID:        e.ID.Hex(),
			EntryID:   e.EntryID,
			ProductID: e.ProductID.Hex(),
			Model:     models.UnknownModel,
			Form:      e.Form,
		}
		if p, ok := products[e.ProductID]; ok {
			line.Model = p.Name
			if b, ok := images[p.Images.Primary]; ok {
				uri := models.DataURI(b.Text())
				line.Image = &uri
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Remove deletes the owner's entry identified by its row id or entry token.
func (s *CartService) Remove(ctx context.Context, owner, key string) error {
	ok, err := s.store.Carts().Delete(ctx, owner, key)
	if err != nil {
		return fmt.Errorf("cart: remove: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: cart entry %s", models.ErrNotFound, key)
	}
	return nil
}
