// Copyright (C) 2022-2023, VigilantDoomer
//
// This file is part of VigilantBSP program.
//
// VigilantBSP is free software: you can redistribute it
// and/or modify it under the terms of GNU General Public License
// as published by the Free Software Foundation, either version 2 of
// the License, or (at your option) any later version.
//
// VigilantBSP is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with VigilantBSP.  If not, see <https://www.gnu.org/licenses/>.

// Build counters, written out in the Prometheus textfile format so that a node
// exporter (or a human) can pick them up after a run
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vigilantdoomer/hedgebsp/internal/bsp"
)

const namespace = "hedgebsp"

const (
	RESULT_BUILT  = "built"
	RESULT_CACHED = "cached"
	RESULT_FAILED = "failed"
)

type Metrics struct {
	registry  *prometheus.Registry
	levels    *prometheus.CounterVec
	nodes     prometheus.Counter
	leafs     prometheus.Counter
	hedges    prometheus.Counter
	splits    prometheus.Counter
	miniEdges prometheus.Counter
	migrants  prometheus.Counter
	duration  prometheus.Histogram
	height    *prometheus.GaugeVec
}

// New creates metrics on a private registry, so that several instances may
// coexist in one process
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		levels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "levels_total",
			Help:      "Levels processed, by result.",
		}, []string{"result"}),
		nodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_total",
			Help:      "Nodes created by partitioning.",
		}),
		leafs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leafs_total",
			Help:      "BSP leafs created.",
		}),
		hedges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hedges_total",
			Help:      "Half-edges in hardened levels.",
		}),
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_total",
			Help:      "Half-edges split by partitions.",
		}),
		miniEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "miniedges_total",
			Help:      "Half-edges created along partitions.",
		}),
		migrants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrant_hedges_total",
			Help:      "Half-edges facing a different sector than their leaf.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Time spent building nodes of one level.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		height: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_height",
			Help:      "Height of the BSP tree of a level.",
		}, []string{"level"}),
	}
	m.registry.MustRegister(m.levels, m.nodes, m.leafs, m.hedges, m.splits,
		m.miniEdges, m.migrants, m.duration, m.height)
	return m
}

// ObserveBuild accounts for a level that was built from scratch
func (m *Metrics) ObserveBuild(levelName string, st bsp.Stats) {
	m.levels.WithLabelValues(RESULT_BUILT).Inc()
	m.nodes.Add(float64(st.Nodes))
	m.leafs.Add(float64(st.Leafs))
	m.hedges.Add(float64(st.HEdges))
	m.splits.Add(float64(st.Splits))
	m.miniEdges.Add(float64(st.MiniHEdges))
	m.migrants.Add(float64(st.Migrants))
	m.duration.Observe(st.Duration.Seconds())
	height := 0
	if st.Nodes > 0 {
		height = 1 + max(st.RightHeight, st.LeftHeight)
	}
	m.height.WithLabelValues(levelName).Set(float64(height))
}

func (m *Metrics) ObserveCached(levelName string) {
	m.levels.WithLabelValues(RESULT_CACHED).Inc()
}

func (m *Metrics) ObserveFailed(levelName string) {
	m.levels.WithLabelValues(RESULT_FAILED).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically writes all metrics to path
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
