package keycloak

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requests     *prometheus.CounterVec //nolint:gochecknoglobals
	requestsOnce sync.Once              //nolint:gochecknoglobals
)

// InstrumentedTransport counts Keycloak requests by method and status code.
func InstrumentedTransport(next http.RoundTripper) http.RoundTripper {
	requestsOnce.Do(func() {
		requests = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keycloak_requests_total",
				Help: "Number of requests sent to Keycloak, differentiated by method and status code.",
			},
			[]string{"method", "code"},
		)
	})

	if next == nil {
		next = http.DefaultTransport
	}

	return promhttp.InstrumentRoundTripperCounter(requests, next)
}
