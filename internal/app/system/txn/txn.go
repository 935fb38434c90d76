// Package txn runs a group of writes in a MongoDB transaction when the
// deployment supports one, and runs them sequentially otherwise.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Runner executes callbacks transactionally where possible.
type Runner struct {
	client      *mongo.Client
	logger      *zap.Logger
	unsupported atomic.Bool
}

// New returns a Runner. A nil client makes every Run non-transactional.
func New(client *mongo.Client, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{client: client, logger: logger}
}

// Run calls fn inside a transaction. If the server rejects transactions
// (standalone mongod, some DocumentDB versions) the Runner remembers that
// and calls fn directly from then on.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.client == nil || r.unsupported.Load() {
		return fn(ctx)
	}

	sess, err := r.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			r.markUnsupported(err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		r.markUnsupported(err)
		return fn(ctx)
	}
	return err
}

func (r *Runner) markUnsupported(err error) {
	if r.unsupported.CompareAndSwap(false, true) {
		r.logger.Warn("transactions not supported; falling back to sequential writes", zap.Error(err))
	}
}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 20, // IllegalOperation
			51,  // NotAReplicaSet (legacy)
			263: // OperationNotSupportedInTransaction
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") {
		for _, kw := range []string{"replica set", "session", "illegal operation", "not supported"} {
			if strings.Contains(msg, kw) {
				return true
			}
		}
	}
	return strings.Contains(msg, "session") && strings.Contains(msg, "not supported")
}
