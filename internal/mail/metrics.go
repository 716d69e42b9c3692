package mail

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var emailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "paperboy_emails_total",
	Help: "The total number of emails sent by kind and outcome.",
}, []string{"kind", "outcome"})
