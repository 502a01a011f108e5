package demo

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	work "git.sr.ht/~sircmpwn/serialwork"
)

var plainCT = []string{"text/plain"}

// NewHandler serves /metrics from gatherer and a /healthz endpoint which
// reports the queue state. /healthz answers 503 once the worker has exited.
func NewHandler(q *work.Queue, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		state := q.State()
		w.Header()["Content-Type"] = plainCT
		if state == work.StateTerminated {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		fmt.Fprintf(w, "queue=%s state=%s pending=%d\n", q.Name(), state, q.Len())
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
