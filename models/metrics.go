package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamSessionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stream_session_count",
		Help: "The number of streaming sessions.",
	})

	streamSessionCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_session_count_total",
		Help: "The total number of streaming sessions.",
	})
)

func instrumentIncreaseSessionGauge() {
	streamSessionCount.Inc()
}

func instrumentDecreaseSessionGauge() {
	streamSessionCount.Dec()
}

func instrumentCountSession() {
	streamSessionCountTotal.Inc()
}
