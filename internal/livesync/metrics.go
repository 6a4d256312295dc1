// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package livesync

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sharedspace_sync"

// Collector is a prometheus.Collector for synchronizer activity, labelled by
// feature. A nil *Collector records nothing.
type Collector struct {
	snapshots      *prometheus.CounterVec
	listenerErrors *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
	mutations      *prometheus.CounterVec
	listeners      *prometheus.GaugeVec
	items          *prometheus.GaugeVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "snapshots_total",
				Help:      "The number of snapshots applied.",
			}, []string{"feature"},
		),
		listenerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "listener_errors_total",
				Help:      "The number of errors delivered to live queries.",
			}, []string{"feature"},
		),
		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "decode_errors_total",
				Help:      "The number of documents skipped because they could not be decoded.",
			}, []string{"feature"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "mutations_total",
				Help:      "The number of writes issued, by operation and result.",
			}, []string{"feature", "op", "result"},
		),
		listeners: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_listeners",
				Help:      "The number of attached live queries.",
			}, []string{"feature"},
		),
		items: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "items",
				Help:      "The number of items in the last applied snapshot.",
			}, []string{"feature"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.snapshots.Describe(ch)
	c.listenerErrors.Describe(ch)
	c.decodeErrors.Describe(ch)
	c.mutations.Describe(ch)
	c.listeners.Describe(ch)
	c.items.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.snapshots.Collect(ch)
	c.listenerErrors.Collect(ch)
	c.decodeErrors.Collect(ch)
	c.mutations.Collect(ch)
	c.listeners.Collect(ch)
	c.items.Collect(ch)
}

func (c *Collector) snapshot(feature string, n int) {
	if c == nil {
		return
	}
	c.snapshots.WithLabelValues(feature).Inc()
	c.items.WithLabelValues(feature).Set(float64(n))
}

func (c *Collector) listenerError(feature string) {
	if c == nil {
		return
	}
	c.listenerErrors.WithLabelValues(feature).Inc()
}

func (c *Collector) decodeError(feature string) {
	if c == nil {
		return
	}
	c.decodeErrors.WithLabelValues(feature).Inc()
}

func (c *Collector) mutation(feature, op string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.mutations.WithLabelValues(feature, op, result).Inc()
}

func (c *Collector) attached(feature string, delta float64) {
	if c == nil {
		return
	}
	c.listeners.WithLabelValues(feature).Add(delta)
}
