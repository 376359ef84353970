package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
)

type mongoBlobs struct {
	db *mongo.Database
}

func (r *mongoBlobs) col(kind models.BlobKind) (*mongo.Collection, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: blob kind %q", models.ErrInvalidInput, kind)
	}
	return r.db.Collection(kind.Collection()), nil
}

// Insert upserts with $setOnInsert so an existing blob is never rewritten.
func (r *mongoBlobs) Insert(ctx context.Context, b models.Blob) (bool, error) {
	col, err := r.col(b.Kind)
	if err != nil {
		return false, err
	}
	defer metrics.ObserveDB(col.Name(), "upsert", time.Now())
	res, err := col.UpdateOne(ctx,
		bson.M{"_id": b.Hash},
		bson.M{"$setOnInsert": bson.M{b.Kind.PayloadField(): b.Payload, "created_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// lost an upsert race; the other writer stored the same content
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

func (r *mongoBlobs) decode(kind models.BlobKind, doc bson.M) models.Blob {
	hash, _ := doc["_id"].(string)
	return models.Blob{Hash: hash, Kind: kind, Payload: normalize(doc[kind.PayloadField()])}
}

func (r *mongoBlobs) Find(ctx context.Context, kind models.BlobKind, hash string) (models.Blob, error) {
	col, err := r.col(kind)
	if err != nil {
		return models.Blob{}, err
	}
	defer metrics.ObserveDB(col.Name(), "find_one", time.Now())
	var doc bson.M
	if err := col.FindOne(ctx, bson.M{"_id": hash}).Decode(&doc); err != nil {
		return models.Blob{}, notFound(err, string(kind)+" blob "+hash)
	}
	return r.decode(kind, doc), nil
}

func (r *mongoBlobs) FindMany(ctx context.Context, kind models.BlobKind, hashes []string) (map[string]models.Blob, error) {
	out := make(map[string]models.Blob, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}
	col, err := r.col(kind)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveDB(col.Name(), "find", time.Now())
	cur, err := col.Find(ctx, bson.M{"_id": bson.M{"$in": hashes}})
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		b := r.decode(kind, doc)
		out[b.Hash] = b
	}
	return out, nil
}

func (r *mongoBlobs) Delete(ctx context.Context, kind models.BlobKind, hash string) (bool, error) {
	col, err := r.col(kind)
	if err != nil {
		return false, err
	}
	defer metrics.ObserveDB(col.Name(), "delete", time.Now())
	res, err := col.DeleteOne(ctx, bson.M{"_id": hash})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

func (r *mongoBlobs) Hashes(ctx context.Context, kind models.BlobKind) ([]string, error) {
	col, err := r.col(kind)
	if err != nil {
		return nil, err
	}
	defer metrics.ObserveDB(col.Name(), "distinct", time.Now())
	vals, err := col.Distinct(ctx, "_id", bson.D{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
