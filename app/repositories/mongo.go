package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/shashiranjanraj/leppupy/app/models"
)

// MongoStore is the MongoDB backend.
type MongoStore struct {
	db           *mongo.Database
	transactions bool

	products *mongoProducts
	blobs    *mongoBlobs
	carts    *mongoCarts
	orders   *mongoOrders
	users    *mongoUsers
}

// NewMongoStore wraps db. With transactions off (standalone servers) WithTx
// runs the callback without a session, so a failure midway leaves earlier
// writes in place.
func NewMongoStore(db *mongo.Database, transactions bool) *MongoStore {
	return &MongoStore{
		db:           db,
		transactions: transactions,
		products:     &mongoProducts{col: db.Collection(ProductsCollection), meta: db.Collection(MetaCollection)},
		blobs:        &mongoBlobs{db: db},
		carts:        &mongoCarts{col: db.Collection(CartCollection)},
		orders:       &mongoOrders{col: db.Collection(OrdersCollection)},
		users:        &mongoUsers{col: db.Collection(UsersCollection)},
	}
}

func (s *MongoStore) Products() ProductRepository { return s.products }
func (s *MongoStore) Blobs() BlobRepository       { return s.blobs }
func (s *MongoStore) Carts() CartRepository       { return s.carts }
func (s *MongoStore) Orders() OrderRepository     { return s.orders }
func (s *MongoStore) Users() UserRepository       { return s.users }

// Database returns the underlying database handle.
func (s *MongoStore) Database() *mongo.Database { return s.db }

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// WithTx runs fn inside a session transaction. Calls made with a context
// that already carries a session join the outer transaction.
func (s *MongoStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("repositories: start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", models.ErrNotFound, what)
	}
	return err
}

// normalize turns decoded bson documents and arrays into plain maps and
// slices so payloads marshal to JSON the same way whichever backend
// produced them.
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func idsFilter(ids []primitive.ObjectID) bson.M {
	return bson.M{"_id": bson.M{"$in": ids}}
}
