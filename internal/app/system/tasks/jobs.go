// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	metricsstore "github.com/dalemusser/collabhub/internal/app/store/metrics"
	"github.com/dalemusser/collabhub/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Sweeper finishes interrupted project deletes.
type Sweeper interface {
	SweepStalled(ctx context.Context, stalledAfter time.Duration) (int, error)
}

// InvitePurger removes expired invite tokens.
type InvitePurger interface {
	PurgeExpiredInvites(ctx context.Context) (int64, error)
}

// DeletionSweeperJob finishes cascade deletes that have been marked for
// longer than stalledAfter, which means the request that started them died.
func DeletionSweeperJob(svc Sweeper, logger *zap.Logger, interval, stalledAfter time.Duration) Job {
	return Job{
		Name:     "project-deletion-sweeper",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := svc.SweepStalled(ctx, stalledAfter)
			if n > 0 {
				logger.Info("finished stalled project deletes",
					zap.Int("count", n),
					zap.Duration("stalled_after", stalledAfter))
			}
			return err
		},
	}
}

// InvitePurgeJob deletes invite tokens past their expiry.
// Redeem already rejects them; this keeps the collection small.
func InvitePurgeJob(svc InvitePurger, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "invite-purge",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := svc.PurgeExpiredInvites(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Debug("purged expired invites", zap.Int64("count", n))
			}
			return nil
		},
	}
}

// DocumentStatsJob refreshes the per-collection document gauges.
func DocumentStatsJob(db *mongo.Database, interval time.Duration) Job {
	return Job{
		Name:     "document-stats",
		Interval: interval,
		Run: func(ctx context.Context) error {
			counts, err := metricsstore.FetchCounts(ctx, db)
			for coll, n := range counts.ByCollection() {
				metrics.SetDocuments(coll, n)
			}
			return err
		},
	}
}
