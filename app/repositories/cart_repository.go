package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
)

type mongoCarts struct {
	col *mongo.Collection
}

func (r *mongoCarts) Insert(ctx context.Context, e *models.CartEntry) error {
	defer metrics.ObserveDB(CartCollection, "insert", time.Now())
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *mongoCarts) ByOwner(ctx context.Context, owner string) ([]models.CartEntry, error) {
	defer metrics.ObserveDB(CartCollection, "find", time.Now())
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"client": owner}, opts)
	if err != nil {
		return nil, err
	}
	var out []models.CartEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Form = normalizeMap(out[i].Form)
	}
	return out, nil
}

func (r *mongoCarts) CountByOwner(ctx context.Context, owner string) (int, error) {
	defer metrics.ObserveDB(CartCollection, "count", time.Now())
	n, err := r.col.CountDocuments(ctx, bson.M{"client": owner})
	return int(n), err
}

func (r *mongoCarts) Delete(ctx context.Context, owner, key string) (bool, error) {
	defer metrics.ObserveDB(CartCollection, "delete", time.Now())
	match := bson.A{bson.M{"entry_id": key}}
	if id, err := primitive.ObjectIDFromHex(key); err == nil {
		match = append(match, bson.M{"_id": id})
	}
	res, err := r.col.DeleteOne(ctx, bson.M{"client": owner, "$or": match})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

func (r *mongoCarts) DeleteByOwner(ctx context.Context, owner string) (int, error) {
	defer metrics.ObserveDB(CartCollection, "delete_many", time.Now())
	res, err := r.col.DeleteMany(ctx, bson.M{"client": owner})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}
