package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
)

type mongoUsers struct {
	col *mongo.Collection
}

func (r *mongoUsers) Insert(ctx context.Context, u *models.User) error {
	defer metrics.ObserveDB(UsersCollection, "insert", time.Now())
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: email %s already registered", models.ErrConflict, u.Email)
	}
	return err
}

func (r *mongoUsers) Find(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	defer metrics.ObserveDB(UsersCollection, "find_one", time.Now())
	var u models.User
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	return u, notFound(err, "user "+id.Hex())
}

func (r *mongoUsers) FindByEmail(ctx context.Context, email string) (models.User, error) {
	defer metrics.ObserveDB(UsersCollection, "find_one", time.Now())
	var u models.User
	err := r.col.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&u)
	return u, notFound(err, "user "+email)
}

func (r *mongoUsers) FindMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	defer metrics.ObserveDB(UsersCollection, "find", time.Now())
	cur, err := r.col.Find(ctx, idsFilter(ids))
	if err != nil {
		return nil, err
	}
	var found []models.User
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}
	for _, u := range found {
		out[u.ID] = u
	}
	return out, nil
}

func (r *mongoUsers) ByRole(ctx context.Context, role string) ([]models.User, error) {
	defer metrics.ObserveDB(UsersCollection, "find", time.Now())
	cur, err := r.col.Find(ctx, bson.M{"access": role}, options.Find().SetSort(bson.D{{Key: "client_name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoUsers) Update(ctx context.Context, u models.User) error {
	defer metrics.ObserveDB(UsersCollection, "replace", time.Now())
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: email %s already registered", models.ErrConflict, u.Email)
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: user %s", models.ErrNotFound, u.ID.Hex())
	}
	return nil
}

func (r *mongoUsers) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer metrics.ObserveDB(UsersCollection, "delete", time.Now())
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: user %s", models.ErrNotFound, id.Hex())
	}
	return nil
}
