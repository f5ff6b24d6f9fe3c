// File: observability/prometheus/collector.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus exposition of runtime counters. The collector reads the
// scheduler and stack-pool snapshots on every scrape; nothing is
// sampled in between, so scrape cost is a handful of atomic loads.

package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-co/sched"
)

// RuntimeCollector exposes one runtime's counters as Prometheus
// metrics. Register it with any prometheus.Registerer.
type RuntimeCollector struct {
	rt *sched.Runtime

	workers       *prometheus.Desc
	spawned       *prometheus.Desc
	completed     *prometheus.Desc
	panicked      *prometheus.Desc
	cancelled     *prometheus.Desc
	steals        *prometheus.Desc
	parks         *prometheus.Desc
	injectorDepth *prometheus.Desc
	localDepth    *prometheus.Desc
	liveCoros     *prometheus.Desc
	stacksInUse   *prometheus.Desc
	stacksPooled  *prometheus.Desc
	stacksByClass *prometheus.Desc
}

// NewRuntimeCollector builds a collector over rt. The runtime's
// instance id becomes the "instance_id" label on every series.
func NewRuntimeCollector(rt *sched.Runtime) *RuntimeCollector {
	labels := prometheus.Labels{"instance_id": rt.Info().InstanceID}
	d := func(name, help string, varLabels ...string) *prometheus.Desc {
		return prometheus.NewDesc("hioload_co_"+name, help, varLabels, labels)
	}
	return &RuntimeCollector{
		rt:            rt,
		workers:       d("workers", "Configured worker count."),
		spawned:       d("coroutines_spawned_total", "Coroutines submitted for execution."),
		completed:     d("coroutines_completed_total", "Coroutines that reached a terminal state."),
		panicked:      d("coroutines_panicked_total", "Coroutines that terminated by panic."),
		cancelled:     d("coroutines_cancelled_total", "Coroutines that terminated cancelled."),
		steals:        d("steals_total", "Handles taken from sibling worker queues."),
		parks:         d("worker_parks_total", "Times a worker went idle."),
		injectorDepth: d("injector_depth", "Handles waiting in the shared injector."),
		localDepth:    d("local_queue_depth", "Handles waiting across worker-local queues."),
		liveCoros:     d("coroutines_live", "Coroutine records currently allocated."),
		stacksInUse:   d("stacks_in_use", "Guarded stack segments currently bound to coroutines."),
		stacksPooled:  d("stacks_pooled", "Guarded stack segments held in free lists."),
		stacksByClass: d("stacks_pooled_by_class", "Pooled stack segments per size class.", "class"),
	}
}

func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workers
	ch <- c.spawned
	ch <- c.completed
	ch <- c.panicked
	ch <- c.cancelled
	ch <- c.steals
	ch <- c.parks
	ch <- c.injectorDepth
	ch <- c.localDepth
	ch <- c.liveCoros
	ch <- c.stacksInUse
	ch <- c.stacksPooled
	ch <- c.stacksByClass
}

func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	ss := c.rt.Stats()
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(ss.Workers))
	ch <- prometheus.MustNewConstMetric(c.spawned, prometheus.CounterValue, float64(ss.Spawned))
	ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(ss.Completed))
	ch <- prometheus.MustNewConstMetric(c.panicked, prometheus.CounterValue, float64(ss.Panicked))
	ch <- prometheus.MustNewConstMetric(c.cancelled, prometheus.CounterValue, float64(ss.Cancelled))
	ch <- prometheus.MustNewConstMetric(c.steals, prometheus.CounterValue, float64(ss.Steals))
	ch <- prometheus.MustNewConstMetric(c.parks, prometheus.CounterValue, float64(ss.Parks))
	ch <- prometheus.MustNewConstMetric(c.injectorDepth, prometheus.GaugeValue, float64(ss.InjectorDepth))
	ch <- prometheus.MustNewConstMetric(c.localDepth, prometheus.GaugeValue, float64(ss.LocalDepth))
	ch <- prometheus.MustNewConstMetric(c.liveCoros, prometheus.GaugeValue, float64(c.rt.Live()))

	ps := c.rt.StackStats()
	ch <- prometheus.MustNewConstMetric(c.stacksInUse, prometheus.GaugeValue, float64(ps.InUse))
	ch <- prometheus.MustNewConstMetric(c.stacksPooled, prometheus.GaugeValue, float64(ps.Pooled))
	for class, n := range ps.PerClass {
		ch <- prometheus.MustNewConstMetric(
			c.stacksByClass, prometheus.GaugeValue, float64(n), strconv.Itoa(class))
	}
}

var _ prometheus.Collector = (*RuntimeCollector)(nil)
