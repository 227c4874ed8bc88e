package parser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var parsedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "expenses",
		Subsystem: "parser",
		Name:      "parsed_total",
	},
	[]string{"method"},
)
