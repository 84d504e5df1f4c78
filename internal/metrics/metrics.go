package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reply sources.
const (
	SourceCompletion = "completion"
	SourceFallback   = "fallback"
)

var (
	Turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatlog_turns_total",
			Help: "Conversation log operations that completed, by operation.",
		},
		[]string{"op"},
	)

	Replies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatlog_replies_total",
			Help: "Assistant replies produced, by source (completion or fallback).",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(Turns)
	prometheus.MustRegister(Replies)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
