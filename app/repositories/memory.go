package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/leppupy/app/models"
)

// MemoryStore keeps everything in maps. Transactions hold the store lock
// for their whole duration and restore a snapshot when the callback fails.
type MemoryStore struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
	blobs    map[models.BlobKind]map[string]models.Blob
	carts    map[primitive.ObjectID]models.CartEntry
	orders   map[primitive.ObjectID]models.Order
	users    map[primitive.ObjectID]models.User
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		products: map[primitive.ObjectID]models.Product{},
		blobs:    map[models.BlobKind]map[string]models.Blob{},
		carts:    map[primitive.ObjectID]models.CartEntry{},
		orders:   map[primitive.ObjectID]models.Order{},
		users:    map[primitive.ObjectID]models.User{},
	}
	for _, k := range models.BlobKinds {
		s.blobs[k] = map[string]models.Blob{}
	}
	return s
}

func (s *MemoryStore) Products() ProductRepository { return memProducts{s} }
func (s *MemoryStore) Blobs() BlobRepository       { return memBlobs{s} }
func (s *MemoryStore) Carts() CartRepository       { return memCarts{s} }
func (s *MemoryStore) Orders() OrderRepository     { return memOrders{s} }
func (s *MemoryStore) Users() UserRepository       { return memUsers{s} }

func (s *MemoryStore) Ping(context.Context) error { return nil }

type memTxKey struct{}

// lock takes the store lock unless ctx belongs to a transaction on s,
// which already holds it.
func (s *MemoryStore) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(memTxKey{}) == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.restore(snap)
		}
	}()

	if err := fn(context.WithValue(ctx, memTxKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

type memSnapshot struct {
	products map[primitive.ObjectID]models.Product
	blobs    map[models.BlobKind]map[string]models.Blob
	carts    map[primitive.ObjectID]models.CartEntry
	orders   map[primitive.ObjectID]models.Order
	users    map[primitive.ObjectID]models.User
}

// snapshot copies the top-level maps. Stored values are never mutated in
// place, so sharing them is safe.
func (s *MemoryStore) snapshot() memSnapshot {
	snap := memSnapshot{
		products: copyMap(s.products),
		blobs:    make(map[models.BlobKind]map[string]models.Blob, len(s.blobs)),
		carts:    copyMap(s.carts),
		orders:   copyMap(s.orders),
		users:    copyMap(s.users),
	}
	for k, m := range s.blobs {
		snap.blobs[k] = copyMap(m)
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.products, s.blobs, s.carts, s.orders, s.users = snap.products, snap.blobs, snap.carts, snap.orders, snap.users
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneForm(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

func cloneForm(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// ─── products ────────────────────────────────────────────────────────────────

type memProducts struct{ s *MemoryStore }

func (r memProducts) All(ctx context.Context) ([]models.Product, error) {
	defer r.s.lock(ctx)()
	out := make([]models.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r memProducts) Find(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.products[id]
	if !ok {
		return p, fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	return p, nil
}

func (r memProducts) FindMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	defer r.s.lock(ctx)()
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r memProducts) Count(ctx context.Context) (int, error) {
	defer r.s.lock(ctx)()
	return len(r.s.products), nil
}

// ClaimOrder is a no-op: WithTx holds the store lock for the whole
// transaction.
func (r memProducts) ClaimOrder(ctx context.Context) error { return nil }

func (r memProducts) Insert(ctx context.Context, p *models.Product) error {
	defer r.s.lock(ctx)()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	cp.Images.Gallery = append([]string(nil), p.Images.Gallery...)
	r.s.products[p.ID] = cp
	return nil
}

func (r memProducts) update(ctx context.Context, id primitive.ObjectID, fn func(*models.Product)) error {
	defer r.s.lock(ctx)()
	p, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	fn(&p)
	r.s.products[id] = p
	return nil
}

func (r memProducts) SetRef(ctx context.Context, id primitive.ObjectID, kind models.BlobKind, hash string) error {
	if _, err := refField(kind); err != nil {
		return err
	}
	return r.update(ctx, id, func(p *models.Product) {
		if kind == models.KindForm {
			p.FormHash = hash
		} else {
			p.LaserHash = hash
		}
	})
}

func (r memProducts) SetSortOrder(ctx context.Context, id primitive.ObjectID, order int) error {
	return r.update(ctx, id, func(p *models.Product) { p.SortOrder = order })
}

func (r memProducts) Neighbor(ctx context.Context, order int, dir models.Direction) (models.Product, error) {
	defer r.s.lock(ctx)()
	var best models.Product
	found := false
	for _, p := range r.s.products {
		switch {
		case dir == models.Up && p.SortOrder < order && (!found || p.SortOrder > best.SortOrder),
			dir == models.Down && p.SortOrder > order && (!found || p.SortOrder < best.SortOrder):
			best, found = p, true
		}
	}
	if !found {
		return best, fmt.Errorf("%w: neighbour", models.ErrNotFound)
	}
	return best, nil
}

func (r memProducts) CloseGap(ctx context.Context, order int) error {
	defer r.s.lock(ctx)()
	for id, p := range r.s.products {
		if p.SortOrder > order {
			p.SortOrder--
			r.s.products[id] = p
		}
	}
	return nil
}

func (r memProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.products[id]; !ok {
		return fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	delete(r.s.products, id)
	return nil
}

func (r memProducts) CountRefs(ctx context.Context, kind models.BlobKind, hash string) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for _, p := range r.s.products {
		for _, h := range p.Refs(kind) {
			if h == hash {
				n++
				break
			}
		}
	}
	return n, nil
}

// ─── blobs ───────────────────────────────────────────────────────────────────

type memBlobs struct{ s *MemoryStore }

func (r memBlobs) bucket(kind models.BlobKind) (map[string]models.Blob, error) {
	m, ok := r.s.blobs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: blob kind %q", models.ErrInvalidInput, kind)
	}
	return m, nil
}

func (r memBlobs) Insert(ctx context.Context, b models.Blob) (bool, error) {
	defer r.s.lock(ctx)()
	m, err := r.bucket(b.Kind)
	if err != nil {
		return false, err
	}
	if _, ok := m[b.Hash]; ok {
		return false, nil
	}
	b.Payload = cloneValue(b.Payload)
	m[b.Hash] = b
	return true, nil
}

func (r memBlobs) Find(ctx context.Context, kind models.BlobKind, hash string) (models.Blob, error) {
	defer r.s.lock(ctx)()
	m, err := r.bucket(kind)
	if err != nil {
		return models.Blob{}, err
	}
	b, ok := m[hash]
	if !ok {
		return b, fmt.Errorf("%w: %s blob %s", models.ErrNotFound, kind, hash)
	}
	return b, nil
}

func (r memBlobs) FindMany(ctx context.Context, kind models.BlobKind, hashes []string) (map[string]models.Blob, error) {
	defer r.s.lock(ctx)()
	m, err := r.bucket(kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Blob, len(hashes))
	for _, h := range hashes {
		if b, ok := m[h]; ok {
			out[h] = b
		}
	}
	return out, nil
}

func (r memBlobs) Delete(ctx context.Context, kind models.BlobKind, hash string) (bool, error) {
	defer r.s.lock(ctx)()
	m, err := r.bucket(kind)
	if err != nil {
		return false, err
	}
	if _, ok := m[hash]; !ok {
		return false, nil
	}
	delete(m, hash)
	return true, nil
}

func (r memBlobs) Hashes(ctx context.Context, kind models.BlobKind) ([]string, error) {
	defer r.s.lock(ctx)()
	m, err := r.bucket(kind)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

// ─── cart ────────────────────────────────────────────────────────────────────

type memCarts struct{ s *MemoryStore }

func (r memCarts) Insert(ctx context.Context, e *models.CartEntry) error {
	defer r.s.lock(ctx)()
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	cp := *e
	cp.Form = cloneForm(e.Form)
	r.s.carts[e.ID] = cp
	return nil
}

func (r memCarts) ByOwner(ctx context.Context, owner string) ([]models.CartEntry, error) {
	defer r.s.lock(ctx)()
	var out []models.CartEntry
	for _, e := range r.s.carts {
		if e.Owner == owner {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (r memCarts) CountByOwner(ctx context.Context, owner string) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for _, e := range r.s.carts {
		if e.Owner == owner {
			n++
		}
	}
	return n, nil
}

func (r memCarts) Delete(ctx context.Context, owner, key string) (bool, error) {
	defer r.s.lock(ctx)()
	for id, e := range r.s.carts {
		if e.Owner == owner && (e.EntryID == key || id.Hex() == key) {
			delete(r.s.carts, id)
			return true, nil
		}
	}
	return false, nil
}

func (r memCarts) DeleteByOwner(ctx context.Context, owner string) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for id, e := range r.s.carts {
		if e.Owner == owner {
			delete(r.s.carts, id)
			n++
		}
	}
	return n, nil
}

// ─── orders ──────────────────────────────────────────────────────────────────

type memOrders struct{ s *MemoryStore }

func (r memOrders) Insert(ctx context.Context, o *models.Order) error {
	defer r.s.lock(ctx)()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	cp := *o
	cp.LineItems = make([]models.LineItem, len(o.LineItems))
	for i, li := range o.LineItems {
		li.Form = cloneForm(li.Form)
		cp.LineItems[i] = li
	}
	r.s.orders[o.ID] = cp
	return nil
}

func (r memOrders) Find(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	defer r.s.lock(ctx)()
	o, ok := r.s.orders[id]
	if !ok {
		return o, fmt.Errorf("%w: order %s", models.ErrNotFound, id.Hex())
	}
	return o, nil
}

func (r memOrders) filter(ctx context.Context, keep func(models.Order) bool) []models.Order {
	defer r.s.lock(ctx)()
	var out []models.Order
	for _, o := range r.s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (r memOrders) ByOwner(ctx context.Context, owner string) ([]models.Order, error) {
	return r.filter(ctx, func(o models.Order) bool { return o.Owner == owner }), nil
}

func (r memOrders) All(ctx context.Context) ([]models.Order, error) {
	return r.filter(ctx, func(models.Order) bool { return true }), nil
}

func (r memOrders) Since(ctx context.Context, t time.Time) ([]models.Order, error) {
	return r.filter(ctx, func(o models.Order) bool { return !o.CreatedAt.Before(t) }), nil
}

func (r memOrders) SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.Status) (bool, error) {
	defer r.s.lock(ctx)()
	o, ok := r.s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	r.s.orders[id] = o
	return true, nil
}

func (r memOrders) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.orders[id]; !ok {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, id.Hex())
	}
	delete(r.s.orders, id)
	return nil
}

// ─── users ───────────────────────────────────────────────────────────────────

type memUsers struct{ s *MemoryStore }

func (r memUsers) emailTaken(email string, except primitive.ObjectID) bool {
	for id, u := range r.s.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (r memUsers) Insert(ctx context.Context, u *models.User) error {
	defer r.s.lock(ctx)()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if r.emailTaken(u.Email, primitive.NilObjectID) {
		return fmt.Errorf("%w: email %s already registered", models.ErrConflict, u.Email)
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) Find(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return u, fmt.Errorf("%w: user %s", models.ErrNotFound, id.Hex())
	}
	return u, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (models.User, error) {
	defer r.s.lock(ctx)()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("%w: user %s", models.ErrNotFound, email)
}

func (r memUsers) FindMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	defer r.s.lock(ctx)()
	out := make(map[primitive.ObjectID]models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r memUsers) ByRole(ctx context.Context, role string) ([]models.User, error) {
	defer r.s.lock(ctx)()
	var out []models.User
	for _, u := range r.s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memUsers) Update(ctx context.Context, u models.User) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.users[u.ID]; !ok {
		return fmt.Errorf("%w: user %s", models.ErrNotFound, u.ID.Hex())
	}
	if r.emailTaken(u.Email, u.ID) {
		return fmt.Errorf("%w: email %s already registered", models.ErrConflict, u.Email)
	}
	r.s.users[u.ID] = u
	return nil
}

func (r memUsers) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.users[id]; !ok {
		return fmt.Errorf("%w: user %s", models.ErrNotFound, id.Hex())
	}
	delete(r.s.users, id)
	return nil
}
