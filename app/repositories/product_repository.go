package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
)

type mongoProducts struct {
	col  *mongo.Collection
	meta *mongo.Collection
}

func (r *mongoProducts) All(ctx context.Context) ([]models.Product, error) {
	defer metrics.ObserveDB(ProductsCollection, "find", time.Now())
	cur, err := r.col.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "sort_order", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []models.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoProducts) Find(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	defer metrics.ObserveDB(ProductsCollection, "find_one", time.Now())
	var p models.Product
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	return p, notFound(err, "product "+id.Hex())
}

func (r *mongoProducts) FindMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	out := make(map[primitive.ObjectID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	defer metrics.ObserveDB(ProductsCollection, "find", time.Now())
	cur, err := r.col.Find(ctx, idsFilter(ids))
	if err != nil {
		return nil, err
	}
	var found []models.Product
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}
	for _, p := range found {
		out[p.ID] = p
	}
	return out, nil
}

func (r *mongoProducts) Count(ctx context.Context) (int, error) {
	defer metrics.ObserveDB(ProductsCollection, "count", time.Now())
	n, err := r.col.CountDocuments(ctx, bson.D{})
	return int(n), err
}

func (r *mongoProducts) ClaimOrder(ctx context.Context) error {
	defer metrics.ObserveDB(MetaCollection, "update", time.Now())
	_, err := r.meta.UpdateOne(ctx,
		bson.M{"_id": SortOrderDoc},
		bson.M{"$inc": bson.M{"rev": 1}},
		options.Update().SetUpsert(true))
	return err
}

func (r *mongoProducts) Insert(ctx context.Context, p *models.Product) error {
	defer metrics.ObserveDB(ProductsCollection, "insert", time.Now())
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, p)
	return err
}

func refField(kind models.BlobKind) (string, error) {
	switch kind {
	case models.KindForm:
		return "forms_hash", nil
	case models.KindLaser:
		return "corte_lazer_hash", nil
	}
	return "", fmt.Errorf("%w: no single reference for %s blobs", models.ErrInvalidInput, kind)
}

func (r *mongoProducts) SetRef(ctx context.Context, id primitive.ObjectID, kind models.BlobKind, hash string) error {
	field, err := refField(kind)
	if err != nil {
		return err
	}
	return r.set(ctx, id, bson.M{field: hash})
}

func (r *mongoProducts) SetSortOrder(ctx context.Context, id primitive.ObjectID, order int) error {
	return r.set(ctx, id, bson.M{"sort_order": order})
}

func (r *mongoProducts) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	defer metrics.ObserveDB(ProductsCollection, "update", time.Now())
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	return nil
}

func (r *mongoProducts) Neighbor(ctx context.Context, order int, dir models.Direction) (models.Product, error) {
	defer metrics.ObserveDB(ProductsCollection, "find_one", time.Now())
	filter, sort := bson.M{"sort_order": bson.M{"$lt": order}}, -1
	if dir == models.Down {
		filter, sort = bson.M{"sort_order": bson.M{"$gt": order}}, 1
	}
	var p models.Product
	err := r.col.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "sort_order", Value: sort}})).Decode(&p)
	return p, notFound(err, "neighbour")
}

func (r *mongoProducts) CloseGap(ctx context.Context, order int) error {
	defer metrics.ObserveDB(ProductsCollection, "update_many", time.Now())
	_, err := r.col.UpdateMany(ctx,
		bson.M{"sort_order": bson.M{"$gt": order}},
		bson.M{"$inc": bson.M{"sort_order": -1}},
	)
	return err
}

func (r *mongoProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer metrics.ObserveDB(ProductsCollection, "delete", time.Now())
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: product %s", models.ErrNotFound, id.Hex())
	}
	return nil
}

func (r *mongoProducts) CountRefs(ctx context.Context, kind models.BlobKind, hash string) (int, error) {
	var filter bson.M
	switch kind {
	case models.KindImage:
		filter = bson.M{"$or": bson.A{
			bson.M{"img_hashes.img_2": hash},
			bson.M{"img_hashes.img_1": hash},
		}}
	default:
		field, err := refField(kind)
		if err != nil {
			return 0, err
		}
		filter = bson.M{field: hash}
	}
	defer metrics.ObserveDB(ProductsCollection, "count", time.Now())
	n, err := r.col.CountDocuments(ctx, filter)
	return int(n), err
}
