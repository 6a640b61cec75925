package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/metrics"
)

// Metrics records the count and duration of every request, labelled by the
// matched route template so session ids do not explode the label space.
// It must be installed with Router.Use for the route to be known.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		path := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		metrics.RecordHTTPRequest(r.Method, path, rec.statusOrOK(), time.Since(start))
	})
}
