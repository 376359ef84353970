package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
)

type mongoOrders struct {
	col *mongo.Collection
}

var newestFirst = bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}

func (r *mongoOrders) Insert(ctx context.Context, o *models.Order) error {
	defer metrics.ObserveDB(OrdersCollection, "insert", time.Now())
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, o)
	return err
}

func (r *mongoOrders) Find(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	defer metrics.ObserveDB(OrdersCollection, "find_one", time.Now())
	var o models.Order
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return o, notFound(err, "order "+id.Hex())
	}
	normalizeOrder(&o)
	return o, nil
}

func (r *mongoOrders) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	defer metrics.ObserveDB(OrdersCollection, "find", time.Now())
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	var out []models.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		normalizeOrder(&out[i])
	}
	return out, nil
}

func (r *mongoOrders) ByOwner(ctx context.Context, owner string) ([]models.Order, error) {
	return r.find(ctx, bson.M{"client_id": owner})
}

func (r *mongoOrders) All(ctx context.Context) ([]models.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *mongoOrders) Since(ctx context.Context, t time.Time) ([]models.Order, error) {
	return r.find(ctx, bson.M{"timestamp": bson.M{"$gte": t}})
}

// SetStatus is a compare-and-set on the estado field.
func (r *mongoOrders) SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.Status) (bool, error) {
	defer metrics.ObserveDB(OrdersCollection, "find_one_and_update", time.Now())
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "estado": from},
		bson.M{"$set": bson.M{"estado": to}},
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func (r *mongoOrders) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer metrics.ObserveDB(OrdersCollection, "delete", time.Now())
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: order %s", models.ErrNotFound, id.Hex())
	}
	return nil
}

func normalizeOrder(o *models.Order) {
	for i := range o.LineItems {
		o.LineItems[i].Form = normalizeMap(o.LineItems[i].Form)
	}
}
