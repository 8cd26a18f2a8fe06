package connection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waconnect",
		Subsystem: "connections",
		Name:      "created_total",
		Help:      "CreateConnection calls by outcome.",
	}, []string{"outcome"})

	qrAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waconnect",
		Subsystem: "connections",
		Name:      "qr_acquisitions_total",
		Help:      "QR acquisition runs by outcome.",
	}, []string{"outcome"})

	pairingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waconnect",
		Subsystem: "connections",
		Name:      "pairing_polls_total",
		Help:      "Pairing polls by terminal outcome.",
	}, []string{"outcome"})
)
