package kv

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSource is anything that can report Pebble metrics.
type MetricsSource interface {
	Metrics() *pebble.Metrics
}

// PebbleCollector exports Pebble compaction, memtable and WAL metrics to
// Prometheus.
type PebbleCollector struct {
	src MetricsSource

	compactionCount         *prometheus.Desc
	compactionEstimatedDebt *prometheus.Desc
	compactionInProgress    *prometheus.Desc

	memtableSize  *prometheus.Desc
	memtableCount *prometheus.Desc

	walFiles        *prometheus.Desc
	walSize         *prometheus.Desc
	walBytesIn      *prometheus.Desc
	walBytesWritten *prometheus.Desc

	diskUsage *prometheus.Desc
}

// NewPebbleCollector creates a collector reading from src on every scrape.
func NewPebbleCollector(src MetricsSource) *PebbleCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("projectd_pebble_"+name, help, nil, nil)
	}
	return &PebbleCollector{
		src: src,

		compactionCount:         desc("compaction_count_total", "Total number of compactions performed"),
		compactionEstimatedDebt: desc("compaction_estimated_debt_bytes", "Estimated number of bytes that need to be compacted to reach a stable state"),
		compactionInProgress:    desc("compaction_in_progress_bytes", "Number of bytes being compacted currently"),

		memtableSize:  desc("memtable_size_bytes", "Current size of the memtable in bytes"),
		memtableCount: desc("memtable_count", "Current count of memtables"),

		walFiles:        desc("wal_files", "Number of live WAL files"),
		walSize:         desc("wal_size_bytes", "Size of live WAL data in bytes"),
		walBytesIn:      desc("wal_bytes_in_total", "Total logical bytes written to the WAL"),
		walBytesWritten: desc("wal_bytes_written_total", "Total physical bytes written to the WAL"),

		diskUsage: desc("disk_usage_bytes", "Total disk space used by the database"),
	}
}

func (c *PebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.compactionCount
	ch <- c.compactionEstimatedDebt
	ch <- c.compactionInProgress
	ch <- c.memtableSize
	ch <- c.memtableCount
	ch <- c.walFiles
	ch <- c.walSize
	ch <- c.walBytesIn
	ch <- c.walBytesWritten
	ch <- c.diskUsage
}

func (c *PebbleCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.Metrics()

	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.compactionCount, float64(m.Compact.Count))
	gauge(c.compactionEstimatedDebt, float64(m.Compact.EstimatedDebt))
	gauge(c.compactionInProgress, float64(m.Compact.InProgressBytes))

	gauge(c.memtableSize, float64(m.MemTable.Size))
	gauge(c.memtableCount, float64(m.MemTable.Count))

	gauge(c.walFiles, float64(m.WAL.Files))
	gauge(c.walSize, float64(m.WAL.Size))
	counter(c.walBytesIn, float64(m.WAL.BytesIn))
	counter(c.walBytesWritten, float64(m.WAL.BytesWritten))

	gauge(c.diskUsage, float64(m.DiskSpaceUsage()))
}
