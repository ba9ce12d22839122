package vidmeta

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidmeta_lookups_total",
		Help: "Video metadata lookups by result.",
	}, []string{"result"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidmeta_breaker_state",
		Help: "Circuit breaker state of the video host client (0 closed, 1 half-open, 2 open).",
	})
)
