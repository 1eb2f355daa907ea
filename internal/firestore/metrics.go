package firestore

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firestore_requests_total",
			Help: "Total requests issued to the document store",
		},
		[]string{"collection", "op", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(Requests)
}

func observe(collection, op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case IsNotFound(err):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	Requests.WithLabelValues(collection, op, outcome).Inc()
}
