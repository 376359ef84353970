// Package migrations registers the MongoDB index migrations. It is
// blank-imported by cmd/leppupy.
package migrations

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/pkg/migration"
)

func init() {
	migration.Register("20260101000000_create_usuarios_indexes", indexes(repositories.UsersCollection,
		mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
		mongo.IndexModel{Keys: bson.D{{Key: "access", Value: 1}}, Options: options.Index().SetName("access")},
	))
	migration.Register("20260101000001_create_prods_indexes", indexes(repositories.ProductsCollection,
		mongo.IndexModel{Keys: bson.D{{Key: "sort_order", Value: 1}}, Options: options.Index().SetName("sort_order")},
		mongo.IndexModel{Keys: bson.D{{Key: "forms_hash", Value: 1}}, Options: options.Index().SetName("forms_hash")},
		mongo.IndexModel{Keys: bson.D{{Key: "corte_lazer_hash", Value: 1}}, Options: options.Index().SetName("corte_lazer_hash")},
		mongo.IndexModel{Keys: bson.D{{Key: "img_hashes.img_2", Value: 1}}, Options: options.Index().SetName("img_primary")},
		mongo.IndexModel{Keys: bson.D{{Key: "img_hashes.img_1", Value: 1}}, Options: options.Index().SetName("img_gallery")},
	))
	migration.Register("20260101000002_create_cart_indexes", indexes(repositories.CartCollection,
		mongo.IndexModel{Keys: bson.D{{Key: "client", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("client_created")},
		mongo.IndexModel{Keys: bson.D{{Key: "entry_id", Value: 1}}, Options: options.Index().SetName("entry_id")},
	))
	migration.Register("20260101000003_create_orders_indexes", indexes(repositories.OrdersCollection,
		mongo.IndexModel{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "timestamp", Value: -1}}, Options: options.Index().SetName("client_timestamp")},
		mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: -1}}, Options: options.Index().SetName("timestamp")},
		mongo.IndexModel{Keys: bson.D{{Key: "orden_id", Value: 1}}, Options: options.Index().SetName("orden_id_unique").SetUnique(true)},
	))
	migration.Register("20260101000004_seed_catalog_meta", sortOrderMeta{})
}

// sortOrderMeta creates the document catalog writes claim, so the first
// concurrent claims update it instead of racing to insert it.
type sortOrderMeta struct{}

func (sortOrderMeta) Up(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(repositories.MetaCollection).UpdateOne(ctx,
		bson.M{"_id": repositories.SortOrderDoc},
		bson.M{"$setOnInsert": bson.M{"rev": 0}},
		options.Update().SetUpsert(true))
	return err
}

func (sortOrderMeta) Down(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(repositories.MetaCollection).DeleteOne(ctx, bson.M{"_id": repositories.SortOrderDoc})
	return err
}

// indexMigration creates a set of indexes on one collection and drops
// them by name on rollback.
type indexMigration struct {
	collection string
	models     []mongo.IndexModel
}

func indexes(collection string, models ...mongo.IndexModel) *indexMigration {
	return &indexMigration{collection: collection, models: models}
}

func (m *indexMigration) Up(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(m.collection).Indexes().CreateMany(ctx, m.models)
	return err
}

func (m *indexMigration) Down(ctx context.Context, db *mongo.Database) error {
	view := db.Collection(m.collection).Indexes()
	for _, im := range m.models {
		if _, err := view.DropOne(ctx, *im.Options.Name); err != nil {
			return err
		}
	}
	return nil
}
