// Package metrics holds the Prometheus collectors of the settlement service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "billsplit"

var (
	OrderPolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_polls_total",
		Help:      "Order history fetches by the poller, by result.",
	}, []string{"result"})

	PersistWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_writes_total",
		Help:      "Settlement keys written to the store, by key and result.",
	}, []string{"key", "result"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_cache_lookups_total",
		Help:      "Order history cache lookups, by hit, miss or shared in-flight fetch.",
	}, []string{"result"})

	GroupEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_group_events_total",
		Help:      "Payment group lifecycle events.",
	}, []string{"event"})

	OpenSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_sessions",
		Help:      "Settlement sessions currently open.",
	})
)

func init() {
	prometheus.MustRegister(OrderPolls, PersistWrites, CacheLookups, GroupEvents, OpenSessions)
}

const (
	ResultOK    = "ok"
	ResultError = "error"
)
