package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Důvody zahození příchozí zprávy (label "reason").
const (
	dropDecode = "decode"
	dropStore  = "store"
	dropPanic  = "panic"
)

// Metrics sdružuje Prometheus metriky bridge.
type Metrics struct {
	received  prometheus.Counter
	stored    prometheus.Counter
	dropped   *prometheus.CounterVec
	published *prometheus.CounterVec
	connects  prometheus.Counter
	storeSize prometheus.GaugeFunc
}

// NewMetrics vytvoří a zaregistruje metriky do reg.
// sizeFn (může být nil) vrací aktuální počet záznamů ve Store.
func NewMetrics(reg prometheus.Registerer, sizeFn func() float64) *Metrics {
	m := &Metrics{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lecture_messages_received_total",
			Help: "MQTT messages delivered on the lecture channel.",
		}),
		stored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lecture_records_stored_total",
			Help: "Records successfully inserted into the store.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lecture_messages_dropped_total",
			Help: "Inbound messages dropped, by reason.",
		}, []string{"reason"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lecture_publish_total",
			Help: "Publish requests handed to the MQTT client, by result.",
		}, []string{"result"}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lecture_mqtt_connects_total",
			Help: "Successful MQTT (re)connections.",
		}),
	}

	reg.MustRegister(m.received, m.stored, m.dropped, m.published, m.connects)

	if sizeFn != nil {
		m.storeSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "lecture_store_records",
			Help: "Records currently held by the in-memory store.",
		}, sizeFn)
		reg.MustRegister(m.storeSize)
	}

	return m
}

func (m *Metrics) incDropped(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) incPublished(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.published.WithLabelValues(result).Inc()
}
