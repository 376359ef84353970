package queue

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FailedJobsCollection holds jobs that exhausted their retries.
const FailedJobsCollection = "failed_jobs"

type failedJobRecord struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	JobType  string             `bson:"job_type"`
	Payload  string             `bson:"payload"`
	Error    string             `bson:"error"`
	Attempts int                `bson:"attempts"`
	FailedAt time.Time          `bson:"failed_at"`
}

// MongoFailedStore writes failed jobs to the failed_jobs collection.
type MongoFailedStore struct {
	col *mongo.Collection
}

func NewMongoFailedStore(db *mongo.Database) *MongoFailedStore {
	return &MongoFailedStore{col: db.Collection(FailedJobsCollection)}
}

func (s *MongoFailedStore) Save(ctx context.Context, f FailedJob) error {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	_, err := s.col.InsertOne(ctx, failedJobRecord{
		JobType:  f.Type,
		Payload:  string(f.Payload),
		Error:    msg,
		Attempts: f.Attempts,
		FailedAt: f.FailedAt,
	})
	return err
}

// Recent returns the latest failed jobs, newest first.
func (s *MongoFailedStore) Recent(ctx context.Context, limit int64) ([]FailedJob, error) {
	cur, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "failed_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	var recs []failedJobRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	out := make([]FailedJob, 0, len(recs))
	for _, r := range recs {
		out = append(out, FailedJob{
			Type:     r.JobType,
			Payload:  []byte(r.Payload),
			Err:      stringError(r.Error),
			FailedAt: r.FailedAt,
			Attempts: r.Attempts,
		})
	}
	return out, nil
}

type stringError string

func (e stringError) Error() string { return string(e) }
