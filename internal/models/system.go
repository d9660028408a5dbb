package models

import "time"

// SystemMetrics is a lightweight instrumentation snapshot.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	AlertsGenerated          uint64    `json:"alerts_generated"`
	AlertsSkipped            uint64    `json:"alerts_skipped"`
	DeliveriesSent           uint64    `json:"deliveries_sent"`
	DeliveriesFailed         uint64    `json:"deliveries_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// JobRun reports one execution of a scheduled job.
type JobRun struct {
	RunID      string       `json:"run_id"`
	Job        string       `json:"job"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	DurationMs int64        `json:"duration_ms"`
	Summary    BatchSummary `json:"summary"`
}
