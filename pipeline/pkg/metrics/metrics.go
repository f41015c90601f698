package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "electionlake_pipeline_build_info",
			Help: "Build information of the election results pipeline",
		},
		[]string{"version", "commit", "date"},
	)

	DimensionCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_dimension_cache_total",
			Help: "Dimension cache lookups by outcome",
		},
		[]string{"dimension", "result"},
	)

	DimensionStorageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_dimension_storage_ops_total",
			Help: "Dimension storage operations by outcome",
		},
		[]string{"dimension", "op", "status"},
	)

	DimensionResolutionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_dimension_resolution_failures_total",
			Help: "Natural keys that could not be resolved after the allowed retry",
		},
		[]string{"dimension"},
	)

	RowsMalformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_rows_malformed_total",
			Help: "Rows skipped because they failed validation",
		},
	)

	GrainsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_grains_dropped_total",
			Help: "Aggregated grains dropped for missing a required identifier",
		},
	)

	AttributeConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_attribute_conflicts_total",
			Help: "Grains whose rows disagreed on a representative attribute",
		},
	)

	PartitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_partitions_total",
			Help: "Election partitions processed by outcome",
		},
		[]string{"status"},
	)

	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_chunks_total",
			Help: "Chunks processed by terminal state",
		},
		[]string{"state"},
	)

	ChunkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "electionlake_pipeline_chunk_duration_seconds",
			Help:    "Duration of chunk consolidation",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 0.01s to ~82s
		},
	)

	FactsLoadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_facts_loaded_total",
			Help: "Consolidated vote rows written",
		},
	)

	BulkLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "electionlake_pipeline_bulk_load_duration_seconds",
			Help:    "Duration of fact bulk loads",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 0.001s to ~8.2s
		},
		[]string{"status"},
	)

	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_files_total",
			Help: "Files processed by terminal status",
		},
		[]string{"status"},
	)

	ElectionKeyConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_election_key_conflicts_total",
			Help: "Rows whose election year or round disagreed with their partition",
		},
	)

	DiscoverySkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_discovery_skipped_total",
			Help: "Unreadable entries skipped while discovering local extracts",
		},
	)

	OpsHTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "electionlake_pipeline_ops_http_requests_total",
			Help: "Requests served by the ops server",
		},
		[]string{"method", "path", "status"},
	)
)
