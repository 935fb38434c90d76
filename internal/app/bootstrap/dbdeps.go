// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	CollabHubMongoClient   *mongo.Client
	CollabHubMongoDatabase *mongo.Database

	// Redis backs the shared invite-redeem limiter. Nil when redis_addr is
	// not configured; limits are then kept per process.
	Redis *redis.Client
}
