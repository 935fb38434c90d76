package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/collabhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Meta is the request context stamped on every audit event.
type Meta struct {
	RequestID string
	IP        string
	UserAgent string
}

type metaKey struct{}

// WithMeta returns ctx carrying m.
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// MetaFrom returns the request metadata stored in ctx.
func MetaFrom(ctx context.Context) (Meta, bool) {
	m, ok := ctx.Value(metaKey{}).(Meta)
	return m, ok
}

// Middleware captures request metadata for audit events. The request id is
// taken from X-Request-ID when the client sent a valid UUID, otherwise a new
// one is generated; it is echoed back in the response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := WithMeta(r.Context(), Meta{
			RequestID: id,
			IP:        ratelimit.ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
