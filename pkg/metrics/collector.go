// Package metrics exposes the session/connection store's live bandwidth,
// latency, and outstanding-transfer state as a custom Prometheus
// collector, in the style of a TCPInfoCollector: Collect walks the live
// set on every scrape instead of keeping its own counters.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-iscsi/initiator/pkg/session"
)

// Collector reports per-connection gauges for every session/connection
// currently held by a Store.
type Collector struct {
	store *session.Store

	bytesPerSecond    *prometheus.Desc
	latencyMs         *prometheus.Desc
	dataToTransfer    *prometheus.Desc
	activeConnections *prometheus.Desc
}

// NewCollector builds a Collector over store. Register it with a
// prometheus.Registry the way the daemon registers any other collector.
func NewCollector(store *session.Store) *Collector {
	return &Collector{
		store: store,
		bytesPerSecond: prometheus.NewDesc(
			"iscsi_connection_bytes_per_second",
			"Rolling-window peak throughput estimate for a connection.",
			[]string{"session_id", "connection_id"}, nil,
		),
		latencyMs: prometheus.NewDesc(
			"iscsi_connection_latency_milliseconds",
			"Most recent NOP-Out/NOP-In latency probe result.",
			[]string{"session_id", "connection_id"}, nil,
		),
		dataToTransfer: prometheus.NewDesc(
			"iscsi_connection_data_to_transfer_bytes",
			"Bytes the connection is currently committed to moving.",
			[]string{"session_id", "connection_id"}, nil,
		),
		activeConnections: prometheus.NewDesc(
			"iscsi_session_active_connections",
			"Number of active connections on a session.",
			[]string{"session_id"}, nil,
		),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.bytesPerSecond
	descs <- c.latencyMs
	descs <- c.dataToTransfer
	descs <- c.activeConnections
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	for sid := 0; sid < session.KMaxSessions; sid++ {
		s := c.store.Session(sid)
		if s == nil {
			continue
		}
		sidLabel := strconv.Itoa(sid)

		metrics <- prometheus.MustNewConstMetric(
			c.activeConnections, prometheus.GaugeValue, float64(s.NumActiveConnections()), sidLabel)

		for _, conn := range s.Connections() {
			cidLabel := strconv.Itoa(conn.CID)
			metrics <- prometheus.MustNewConstMetric(
				c.bytesPerSecond, prometheus.GaugeValue, conn.BytesPerSecond(), sidLabel, cidLabel)
			metrics <- prometheus.MustNewConstMetric(
				c.latencyMs, prometheus.GaugeValue, conn.LatencyMs, sidLabel, cidLabel)
			metrics <- prometheus.MustNewConstMetric(
				c.dataToTransfer, prometheus.GaugeValue, float64(conn.DataToTransfer()), sidLabel, cidLabel)
		}
	}
}
