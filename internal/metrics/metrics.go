// Package metrics exposes the abstract counters named in spec §6 as real
// Prometheus instruments, built the same way bun-kms/internal/metrics and
// functions/internal/prometrics wire up promauto in the wider monorepo.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheEvictInternal counts evictions of internal (non-leaf) pages.
	CacheEvictInternal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bunder_cache_evict_internal_total",
		Help: "Number of internal pages evicted.",
	})
	// CacheEvictUnmodified counts evictions of clean pages.
	CacheEvictUnmodified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bunder_cache_evict_unmodified_total",
		Help: "Number of clean pages evicted without reconciliation.",
	})
	// CacheEvictModified counts evictions of dirty pages that were
	// reconciled before commit.
	CacheEvictModified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bunder_cache_evict_modified_total",
		Help: "Number of dirty pages reconciled and evicted.",
	})
	// CacheEvictHazard counts review failures caused by a hazard
	// conflict on a descendant page.
	CacheEvictHazard = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bunder_cache_evict_hazard_total",
		Help: "Number of eviction attempts aborted by a hazard conflict.",
	})
	// RecHazard counts individual hazard conflicts observed while walking
	// a subtree (one sample per page found busy), finer-grained than
	// CacheEvictHazard, which counts once per aborted review regardless of
	// how many descendants conflicted.
	RecHazard = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bunder_rec_hazard_total",
		Help: "Number of individual hazard conflicts observed while walking a subtree for eviction.",
	})

	// HazardSnapshotSize tracks how many live hazards the evictor sees
	// per snapshot, a proxy for reader contention.
	HazardSnapshotSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bunder_hazard_snapshot_size",
		Help:    "Number of live hazard entries observed per evictor snapshot.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// WalkerDepth tracks how many levels the subtree exclusivity walker
	// descended for a single review.
	WalkerDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bunder_walker_depth",
		Help:    "Depth reached by the subtree exclusivity walker per review.",
		Buckets: prometheus.LinearBuckets(0, 1, 16),
	})
)

// Snapshot is a plain-struct, point-in-time read of the counters above,
// for tests and CLI printing that don't want to talk to the Prometheus
// registry directly - mirrors bun-kms/internal/loadtest/stats.go's split
// between a live registry and a printable snapshot.
type Snapshot struct {
	EvictInternal   float64
	EvictUnmodified float64
	EvictModified   float64
	EvictHazard     float64
	RecHazard       float64
}

// Take reads the current counter values into a Snapshot.
func Take() Snapshot {
	return Snapshot{
		EvictInternal:   readCounter(CacheEvictInternal),
		EvictUnmodified: readCounter(CacheEvictUnmodified),
		EvictModified:   readCounter(CacheEvictModified),
		EvictHazard:     readCounter(CacheEvictHazard),
		RecHazard:       readCounter(RecHazard),
	}
}

func readCounter(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
