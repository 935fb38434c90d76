package metricsstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of totals exported as document gauges.
type Counts struct {
	Users            int64
	Projects         int64
	DeletingProjects int64
	Tasks            int64
	Invites          int64
}

// ByCollection returns the counts keyed by gauge label.
func (c Counts) ByCollection() map[string]int64 {
	return map[string]int64{
		"users":             c.Users,
		"projects":          c.Projects,
		"projects_deleting": c.DeletingProjects,
		"tasks":             c.Tasks,
		"invites":           c.Invites,
	}
}

// FetchCounts returns collection totals.
// Intentionally tolerant: on error it returns 0 for that counter and reports
// the first error seen.
func FetchCounts(ctx context.Context, db *mongo.Database) (Counts, error) {
	var out Counts
	var firstErr error

	count := func(coll string, filter bson.M) int64 {
		n, err := db.Collection(coll).CountDocuments(ctx, filter)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return 0
		}
		return n
	}

	out.Users = count("users", bson.M{})
	out.Projects = count("projects", bson.M{"deleting_at": bson.M{"$exists": false}})
	out.DeletingProjects = count("projects", bson.M{"deleting_at": bson.M{"$exists": true}})
	out.Tasks = count("tasks", bson.M{})
	out.Invites = count("invites", bson.M{})

	return out, firstErr
}
