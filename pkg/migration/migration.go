// Package migration runs versioned schema changes (indexes, collection
// options, data backfills) against MongoDB.
//
// Register migrations from an init() in database/migrations:
//
//	func init() {
//	    migration.Register("20260101000000_create_users_indexes", &CreateUsersIndexes{})
//	}
//
// and run them with `leppupy migrate`.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

// TrackingCollection records which migrations have run and in which batch.
const TrackingCollection = "leppupy_migrations"

// Migration is implemented by every registered migration.
type Migration interface {
	Up(ctx context.Context, db *mongo.Database) error
	Down(ctx context.Context, db *mongo.Database) error
}

type record struct {
	Name  string    `bson:"_id"`
	Batch int       `bson:"batch"`
	RunAt time.Time `bson:"run_at"`
}

type registered struct {
	name string
	m    Migration
}

var registry []registered

// Register adds a migration. Names should be timestamp-prefixed; pending
// migrations run sorted by name.
func Register(name string, m Migration) {
	registry = append(registry, registered{name: name, m: m})
}

// ErrNoMigrations is returned by Run when nothing is registered.
var ErrNoMigrations = errors.New("migration: no migrations registered")

// Runner executes and tracks migrations.
type Runner struct {
	db  *mongo.Database
	out io.Writer
}

// New creates a Runner that reports progress to out (may be io.Discard).
func New(db *mongo.Database, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{db: db, out: out}
}

func (r *Runner) col() *mongo.Collection { return r.db.Collection(TrackingCollection) }

func (r *Runner) ran(ctx context.Context) (map[string]record, error) {
	cur, err := r.col().Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var recs []record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	out := make(map[string]record, len(recs))
	for _, rec := range recs {
		out[rec.Name] = rec
	}
	return out, nil
}

// Pending returns the registered migrations that have not run yet.
func (r *Runner) Pending(ctx context.Context) ([]string, error) {
	ran, err := r.ran(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: fetch ran: %w", err)
	}
	var names []string
	for _, reg := range registry {
		if _, ok := ran[reg.name]; !ok {
			names = append(names, reg.name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Run executes all pending migrations as one batch.
func (r *Runner) Run(ctx context.Context) error {
	if len(registry) == 0 {
		return ErrNoMigrations
	}
	pending, err := r.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(r.out, "Nothing to migrate.")
		return nil
	}

	batch, err := r.lastBatch(ctx)
	if err != nil {
		return err
	}
	batch++

	byName := r.byName()
	for _, name := range pending {
		logger.Info("migration: running", "name", name)
		fmt.Fprintf(r.out, "  ▶ Migrating: %s\n", name)

		if err := byName[name].Up(ctx, r.db); err != nil {
			return fmt.Errorf("migration: %s up: %w", name, err)
		}
		if _, err := r.col().InsertOne(ctx, record{Name: name, Batch: batch, RunAt: time.Now().UTC()}); err != nil {
			return fmt.Errorf("migration: record %s: %w", name, err)
		}
		fmt.Fprintf(r.out, "  ✅ Migrated:  %s\n", name)
	}

	logger.Info("migration: done", "ran", len(pending), "batch", batch)
	return nil
}

// Rollback reverses every migration of the most recent batch.
func (r *Runner) Rollback(ctx context.Context) error {
	batch, err := r.lastBatch(ctx)
	if err != nil {
		return err
	}
	if batch == 0 {
		fmt.Fprintln(r.out, "Nothing to roll back.")
		return nil
	}

	cur, err := r.col().Find(ctx, bson.M{"batch": batch}, options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}))
	if err != nil {
		return err
	}
	var recs []record
	if err := cur.All(ctx, &recs); err != nil {
		return err
	}

	byName := r.byName()
	for _, rec := range recs {
		m, ok := byName[rec.Name]
		if !ok {
			return fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}
		fmt.Fprintf(r.out, "  ◀ Rolling back: %s\n", rec.Name)
		if err := m.Down(ctx, r.db); err != nil {
			return fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		if _, err := r.col().DeleteOne(ctx, bson.M{"_id": rec.Name}); err != nil {
			return err
		}
	}
	return nil
}

// Status prints every registered migration and whether it has run.
func (r *Runner) Status(ctx context.Context) error {
	ran, err := r.ran(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(registry))
	for _, reg := range registry {
		names = append(names, reg.name)
	}
	sort.Strings(names)

	fmt.Fprintf(r.out, "%-60s  %-8s  %s\n", "Migration", "Status", "Batch")
	for _, name := range names {
		if rec, ok := ran[name]; ok {
			fmt.Fprintf(r.out, "%-60s  %-8s  %d\n", name, "Ran", rec.Batch)
		} else {
			fmt.Fprintf(r.out, "%-60s  %-8s  -\n", name, "Pending")
		}
	}
	return nil
}

func (r *Runner) lastBatch(ctx context.Context) (int, error) {
	var last record
	err := r.col().FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.D{{Key: "batch", Value: -1}})).Decode(&last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("migration: last batch: %w", err)
	}
	return last.Batch, nil
}

func (r *Runner) byName() map[string]Migration {
	out := make(map[string]Migration, len(registry))
	for _, reg := range registry {
		out[reg.name] = reg.m
	}
	return out
}
