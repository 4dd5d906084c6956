package middleware

import (
	"context"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/signal-admin/backend/utils"
)

// RequestInfo copies the request id, client address and user agent into
// the context for services and the audit trail. It must run after chi's
// RequestID and the RealIP middleware.
func RequestInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := utils.WithRequestInfo(r.Context(), utils.RequestInfo{
			RequestID: chimiddleware.GetReqID(r.Context()),
			IPAddress: utils.ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if id := utils.RequestInfoFromContext(ctx).RequestID; id != "" {
		return id
	}
	return chimiddleware.GetReqID(ctx)
}
