package tracing

import (
	"log/slog"
	"math/rand"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

// Middleware opens a root span per request, using the request ID as trace
// ID, and logs the finished tree for a sampleRate fraction of requests.
// Server errors are always logged. It must run inside middleware.RequestID.
func Middleware(sampleRate float64) func(http.Handler) http.Handler {
	logger := slog.Default().With("component", "tracing")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := StartSpan(r.Context(), r.Method+" "+r.URL.Path, middleware.GetRequestID(r.Context()))
			sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))
			span.SetAttr("status", sw.status)
			span.End()
			if sw.status >= 500 || sampled(sampleRate) {
				span.Log(logger)
			}
		})
	}
}

func sampled(rate float64) bool {
	return rate >= 1 || (rate > 0 && rand.Float64() < rate)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wrote {
		sr.status = code
		sr.wrote = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.wrote = true
	return sr.ResponseWriter.Write(b)
}
