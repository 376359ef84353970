package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/pkg/cache"
	"github.com/shashiranjanraj/leppupy/pkg/event"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

const (
	catalogCacheKey = "catalog:list"
	catalogCacheTTL = 5 * time.Minute
)

// CatalogService manages products, their blob references and the manual
// sort order.
type CatalogService struct {
	store  repositories.Store
	blobs  *ContentStore
	cache  *cache.Store
	events *event.Bus
}

// NewCatalogService wires the service. cache and events may be nil.
func NewCatalogService(store repositories.Store, blobs *ContentStore, c *cache.Store, events *event.Bus) *CatalogService {
	return &CatalogService{store: store, blobs: blobs, cache: c, events: events}
}

// Refs counts product references; it is the RefCounter for every blob kind.
func (s *CatalogService) Refs(ctx context.Context, kind models.BlobKind, hash string) (int, error) {
	return s.store.Products().CountRefs(ctx, kind, hash)
}

// ListCatalog returns every product by ascending sort order with its
// primary image resolved.
func (s *CatalogService) ListCatalog(ctx context.Context) ([]models.CatalogItem, error) {
	return cache.Remember(ctx, s.cache, catalogCacheKey, catalogCacheTTL, func() ([]models.CatalogItem, error) {
		return s.listCatalog(ctx)
	})
}

func (s *CatalogService) listCatalog(ctx context.Context) ([]models.CatalogItem, error) {
	products, err := s.store.Products().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	hashes := make([]string, 0, len(products))
	for _, p := range products {
		if p.Images.Primary != "" {
			hashes = append(hashes, p.Images.Primary)
		}
	}
	images, err := s.blobs.GetMany(ctx, models.KindImage, hashes)
	if err != nil {
		return nil, fmt.Errorf("catalog: images: %w", err)
	}

	items := make([]models.CatalogItem, 0, len(products))
	for _, p := range products {
		item := models.CatalogItem{ID: p.ID.Hex(), Model: p.Name, SortOrder: p.SortOrder}
		if b, ok := images[p.Images.Primary]; ok {
			uri := models.DataURI(b.Text())
			item.Image = &uri
		}
		items = append(items, item)
	}
	return items, nil
}

// GetDetail returns the product page data.
func (s *CatalogService) GetDetail(ctx context.Context, id string) (models.ProductDetail, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return models.ProductDetail{}, err
	}
	p, err := s.store.Products().Find(ctx, oid)
	if err != nil {
		return models.ProductDetail{}, err
	}

	detail := models.ProductDetail{
		ID:        p.ID.Hex(),
		Model:     p.Name,
		Forms:     s.object(ctx, models.KindForm, p.FormHash),
		LaserSpec: s.object(ctx, models.KindLaser, p.LaserHash),
	}

	gallery, err := s.blobs.GetMany(ctx, models.KindImage, p.Images.Gallery)
	if err != nil {
		return models.ProductDetail{}, fmt.Errorf("catalog: gallery: %w", err)
	}
	for _, h := range p.Images.Gallery {
		if b, ok := gallery[h]; ok {
			detail.Images = append(detail.Images, models.DataURI(b.Text()))
		}
	}
	if len(detail.Images) == 0 {
		detail.Images = []string{config.ImagePlaceholder()}
	}
	return detail, nil
}

// object loads a JSON blob, falling back to an empty object when the
// reference is missing or stale.
func (s *CatalogService) object(ctx context.Context, kind models.BlobKind, hash string) map[string]any {
	if hash == "" {
		return map[string]any{}
	}
	b, err := s.blobs.Get(ctx, kind, hash)
	if err != nil {
		logger.WithCtx(ctx).Warn("catalog: unresolved blob", "kind", kind, "hash", hash,
			"error", fmt.Errorf("%w: %v", models.ErrDanglingReference, err))
		return map[string]any{}
	}
	if m := b.Object(); m != nil {
		return m
	}
	return map[string]any{}
}

// CreateProduct stores the images, attaches the shared empty form and
// laser blobs and appends the product at the end of the catalog.
func (s *CatalogService) CreateProduct(ctx context.Context, name string, gallery [][]byte, primary []byte) (models.Product, error) {
	name = strings.TrimSpace(name)
	var images [][]byte
	for _, img := range gallery {
		if len(img) > 0 {
			images = append(images, img)
		}
	}
	switch {
	case name == "":
		return models.Product{}, fmt.Errorf("%w: model name is required", models.ErrInvalidInput)
	case len(images) == 0:
		return models.Product{}, fmt.Errorf("%w: at least one gallery image is required", models.ErrInvalidInput)
	case len(primary) == 0:
		return models.Product{}, fmt.Errorf("%w: a catalog image is required", models.ErrInvalidInput)
	}

	var p models.Product
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Products().ClaimOrder(ctx); err != nil {
			return err
		}
		p = models.Product{Name: name, CreatedAt: time.Now().UTC()}
		for _, img := range images {
			h, err := s.blobs.Put(ctx, models.KindImage, img)
			if err != nil {
				return err
			}
			p.Images.Gallery = append(p.Images.Gallery, h)
		}
		var err error
		if p.Images.Primary, err = s.blobs.Put(ctx, models.KindImage, primary); err != nil {
			return err
		}
		if p.FormHash, err = s.blobs.Put(ctx, models.KindForm, map[string]any{}); err != nil {
			return err
		}
		if p.LaserHash, err = s.blobs.Put(ctx, models.KindLaser, map[string]any{}); err != nil {
			return err
		}
		n, err := s.store.Products().Count(ctx)
		if err != nil {
			return err
		}
		p.SortOrder = n + 1
		return s.store.Products().Insert(ctx, &p)
	})
	if err != nil {
		return models.Product{}, fmt.Errorf("catalog: create: %w", err)
	}
	s.changed(ctx, "created", p.ID.Hex())
	return p, nil
}

// UpdateSchema replaces the product's form schema. It reports false when
// the new schema equals the current one.
func (s *CatalogService) UpdateSchema(ctx context.Context, id string, payload any) (bool, error) {
	return s.swapRef(ctx, id, models.KindForm, payload)
}

// UpdateLaserSpec replaces the product's laser-cut spec.
func (s *CatalogService) UpdateLaserSpec(ctx context.Context, id string, payload any) (bool, error) {
	return s.swapRef(ctx, id, models.KindLaser, payload)
}

func (s *CatalogService) swapRef(ctx context.Context, id string, kind models.BlobKind, payload any) (bool, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return false, err
	}
	obj, err := DecodeObject(payload)
	if err != nil {
		return false, err
	}

	changed := false
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.store.Products().Find(ctx, oid)
		if err != nil {
			return err
		}
		hash, err := s.blobs.Put(ctx, kind, obj)
		if err != nil {
			return err
		}
		old := p.FormHash
		if kind == models.KindLaser {
			old = p.LaserHash
		}
		if old == hash {
			return nil
		}
		if err := s.store.Products().SetRef(ctx, oid, kind, hash); err != nil {
			return err
		}
		if _, err := s.blobs.ReleaseIfUnreferenced(ctx, kind, old, s.Refs); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.changed(ctx, "updated", id)
	}
	return changed, nil
}

// DecodeObject accepts a map, a JSON string, raw JSON bytes or any value
// that marshals to a JSON object.
func DecodeObject(payload any) (map[string]any, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return nil, fmt.Errorf("%w: payload is required", models.ErrInvalidInput)
	case map[string]any:
		if v == nil {
			return nil, fmt.Errorf("%w: payload must be a JSON object", models.ErrInvalidInput)
		}
		return v, nil
	case string:
		raw = []byte(v)
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		raw = b
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: payload must be a JSON object", models.ErrInvalidInput)
	}
	return obj, nil
}

// DeleteProduct removes the product, closes its sort-order gap and
// releases every blob only it referenced.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	oid, err := models.ParseID(id)
	if err != nil {
		return err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Products().ClaimOrder(ctx); err != nil {
			return err
		}
		p, err := s.store.Products().Find(ctx, oid)
		if err != nil {
			return err
		}
		if err := s.store.Products().Delete(ctx, oid); err != nil {
			return err
		}
		if err := s.store.Products().CloseGap(ctx, p.SortOrder); err != nil {
			return err
		}
		for _, kind := range models.BlobKinds {
			for _, h := range p.Refs(kind) {
				if _, err := s.blobs.ReleaseIfUnreferenced(ctx, kind, h, s.Refs); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.changed(ctx, "deleted", id)
	return nil
}

// Move swaps the product's sort order with its nearest neighbour.
func (s *CatalogService) Move(ctx context.Context, id string, dir models.Direction) error {
	if dir != models.Up && dir != models.Down {
		return fmt.Errorf("%w: direction %q", models.ErrInvalidInput, dir)
	}
	oid, err := models.ParseID(id)
	if err != nil {
		return err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.Products().ClaimOrder(ctx); err != nil {
			return err
		}
		p, err := s.store.Products().Find(ctx, oid)
		if err != nil {
			return err
		}
		nb, err := s.store.Products().Neighbor(ctx, p.SortOrder, dir)
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%w: %s is already at the %s edge", models.ErrNoNeighbor, p.Name, dir)
		}
		if err != nil {
			return err
		}
		if err := s.store.Products().SetSortOrder(ctx, p.ID, nb.SortOrder); err != nil {
			return err
		}
		return s.store.Products().SetSortOrder(ctx, nb.ID, p.SortOrder)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, "moved", id)
	return nil
}

// Sweep garbage-collects orphan blobs of every kind.
func (s *CatalogService) Sweep(ctx context.Context) (int, error) {
	total := 0
	for _, kind := range models.BlobKinds {
		n, err := s.blobs.Sweep(ctx, kind, s.Refs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// CatalogChange is the payload of event.CatalogChanged.
type CatalogChange struct {
	Action    string `json:"action"`
	ProductID string `json:"product_id"`
}

func (s *CatalogService) changed(ctx context.Context, action, id string) {
	if err := s.cache.Del(ctx, catalogCacheKey); err != nil {
		logger.WithCtx(ctx).Warn("catalog: cache invalidation failed", "error", err)
	}
	if s.events != nil {
		s.events.Fire(ctx, event.CatalogChanged, CatalogChange{Action: action, ProductID: id})
	}
}
