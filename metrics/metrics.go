// Package metrics provides Prometheus metrics for cache statistics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krisalay/cache-facade/stats"
)

// Source is what the collector reads at scrape time. *cache.Manager implements it.
type Source interface {
	CacheNames() []string
	Statistics(name string) (stats.Snapshot, bool)
}

/*
Collector exports the statistics of every cache in a Source.
Values are read from the caches on each scrape, so nothing is duplicated and
caches created later show up without registration.
*/
type Collector struct {
	src Source

	hits        *prometheus.Desc
	misses      *prometheus.Desc
	puts        *prometheus.Desc
	removals    *prometheus.Desc
	expirations *prometheus.Desc
	hitRatio    *prometheus.Desc

	getSeconds    *prometheus.Desc
	putSeconds    *prometheus.Desc
	removeSeconds *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector with the given namespace.
func NewCollector(src Source, namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, []string{"cache"}, nil)
	}
	return &Collector{
		src:           src,
		hits:          desc("hits_total", "Reads that found a valid entry"),
		misses:        desc("misses_total", "Reads that found nothing or an expired entry"),
		puts:          desc("puts_total", "Values stored, loaded values included"),
		removals:      desc("removals_total", "Entries removed explicitly"),
		expirations:   desc("expirations_total", "Entries dropped because they expired"),
		hitRatio:      desc("hit_ratio", "Hits divided by reads"),
		getSeconds:    desc("get_seconds_total", "Time spent in reads"),
		putSeconds:    desc("put_seconds_total", "Time spent in writes"),
		removeSeconds: desc("remove_seconds_total", "Time spent in removals"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.hits, c.misses, c.puts, c.removals, c.expirations, c.hitRatio,
		c.getSeconds, c.putSeconds, c.removeSeconds,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.src.CacheNames() {
		s, ok := c.src.Statistics(name)
		if !ok {
			continue
		}
		counter := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, name)
		}
		counter(c.hits, float64(s.Hits))
		counter(c.misses, float64(s.Misses))
		counter(c.puts, float64(s.Puts))
		counter(c.removals, float64(s.Removals))
		counter(c.expirations, float64(s.Expirations))
		counter(c.getSeconds, s.TotalGetTime.Seconds())
		counter(c.putSeconds, s.TotalPutTime.Seconds())
		counter(c.removeSeconds, s.TotalRemoveTime.Seconds())
		ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, s.HitRatio(), name)
	}
}

// Handler serves the collector, plus the Go runtime and process collectors, on its own registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
