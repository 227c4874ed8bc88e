package mailbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var emailsScanned = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "expenses",
		Subsystem: "mailbox",
		Name:      "emails_scanned_total",
		Help:      "Invoice emails with PDF attachments that were scanned.",
	},
)
