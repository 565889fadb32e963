package feeds

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var syncTotal = sync.OnceValue(func() *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staffplan",
		Subsystem: "feed",
		Name:      "sync_total",
		Help:      "Feed sync attempts by outcome state.",
	}, []string{"feed", "state"})
})

func recordSync(feed string, state State) {
	syncTotal().WithLabelValues(feed, string(state)).Inc()
}
