package testutil

import (
	"context"
	"net/http"
	"time"

	"frota/pkg/requestcontext"
)

// At returns a background context whose request-scoped clock reads t. Stores
// that expire entries consult this clock instead of time.Now.
func At(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// WithRequestID adds a request ID to the request context, as the requestid
// middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
