// Package repositories persists the domain models. Every repository has a
// MongoDB implementation and an in-memory one used by tests and by
// `leppupy serve --memory`.
//
// Repository methods take the context they should run in: inside
// Store.WithTx the callback's ctx carries the transaction, so passing it
// down is enough to enlist a call.
package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/leppupy/app/models"
)

type ProductRepository interface {
	// All returns every product sorted by ascending sort order.
	All(ctx context.Context) ([]models.Product, error)
	Find(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	FindMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
	Count(ctx context.Context) (int, error)
	// ClaimOrder marks the catalog order as written by the current
	// transaction. Two transactions that both claim it conflict, so
	// creates, deletes and moves never interleave.
	ClaimOrder(ctx context.Context) error
	Insert(ctx context.Context, p *models.Product) error
	// SetRef points the form or laser reference of product id at hash.
	SetRef(ctx context.Context, id primitive.ObjectID, kind models.BlobKind, hash string) error
	SetSortOrder(ctx context.Context, id primitive.ObjectID, order int) error
	// Neighbor returns the product with the nearest lesser (Up) or greater
	// (Down) sort order, or ErrNotFound.
	Neighbor(ctx context.Context, order int, dir models.Direction) (models.Product, error)
	// CloseGap decrements every sort order greater than order.
	CloseGap(ctx context.Context, order int) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// CountRefs counts the products referencing hash as a blob of kind.
	CountRefs(ctx context.Context, kind models.BlobKind, hash string) (int, error)
}

type BlobRepository interface {
	// Insert stores b unless a blob with the same hash exists and reports
	// whether it wrote.
	Insert(ctx context.Context, b models.Blob) (bool, error)
	Find(ctx context.Context, kind models.BlobKind, hash string) (models.Blob, error)
	FindMany(ctx context.Context, kind models.BlobKind, hashes []string) (map[string]models.Blob, error)
	Delete(ctx context.Context, kind models.BlobKind, hash string) (bool, error)
	Hashes(ctx context.Context, kind models.BlobKind) ([]string, error)
}

type CartRepository interface {
	Insert(ctx context.Context, e *models.CartEntry) error
	// ByOwner returns the owner's entries oldest first.
	ByOwner(ctx context.Context, owner string) ([]models.CartEntry, error)
	CountByOwner(ctx context.Context, owner string) (int, error)
	// Delete removes the owner's entry whose row id or entry token is key.
	Delete(ctx context.Context, owner, key string) (bool, error)
	DeleteByOwner(ctx context.Context, owner string) (int, error)
}

type OrderRepository interface {
	Insert(ctx context.Context, o *models.Order) error
	Find(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	// ByOwner and All return orders newest first.
	ByOwner(ctx context.Context, owner string) ([]models.Order, error)
	All(ctx context.Context) ([]models.Order, error)
	Since(ctx context.Context, t time.Time) ([]models.Order, error)
	// SetStatus moves order id from one status to another and reports
	// false when the stored status is no longer from.
	SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.Status) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type UserRepository interface {
	// Insert fails with ErrConflict when the email is taken.
	Insert(ctx context.Context, u *models.User) error
	Find(ctx context.Context, id primitive.ObjectID) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
	ByRole(ctx context.Context, role string) ([]models.User, error)
	Update(ctx context.Context, u models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Store groups the repositories of one backend.
type Store interface {
	Products() ProductRepository
	Blobs() BlobRepository
	Carts() CartRepository
	Orders() OrderRepository
	Users() UserRepository
	// WithTx runs fn as one unit. If fn returns an error nothing it wrote
	// is kept.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
}

// Collection names.
const (
	ProductsCollection = "prods"
	CartCollection     = "cart"
	OrdersCollection   = "orders"
	UsersCollection    = "usuarios"
	MetaCollection     = "catalog_meta"
)

// SortOrderDoc is the _id of the meta document guarding sort orders.
const SortOrderDoc = "sort_order"
