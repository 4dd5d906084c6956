package utils

import "context"

type requestInfoKey struct{}

// RequestInfo is request metadata carried into services for logging and audit
type RequestInfo struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// WithRequestInfo adds request metadata to the context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the request metadata, zero if absent
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}
