package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreStats is a snapshot of storage engine counters.
type StoreStats struct {
	Keys          int
	IndexSize     int
	ExpiredLazy   uint64
	ExpiredActive uint64
}

// StoreCollector exports storage statistics, read on every scrape.
type StoreCollector struct {
	stats func() StoreStats

	keys      *prometheus.Desc
	indexSize *prometheus.Desc
	expired   *prometheus.Desc
}

// NewStoreCollector creates a collector reading stats on each Collect.
func NewStoreCollector(stats func() StoreStats) *StoreCollector {
	return &StoreCollector{
		stats: stats,
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "keys"),
			"Keys held by the store, including expired keys not yet removed.",
			nil, nil,
		),
		indexSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "expiration_index_size"),
			"Entries in the expiration index, including stale ones.",
			nil, nil,
		),
		expired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "expired_keys_total"),
			"Keys removed because their TTL elapsed, by removal mode.",
			[]string{"mode"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.indexSize
	ch <- c.expired
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats()
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(st.Keys))
	ch <- prometheus.MustNewConstMetric(c.indexSize, prometheus.GaugeValue, float64(st.IndexSize))
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(st.ExpiredLazy), "lazy")
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(st.ExpiredActive), "active")
}
