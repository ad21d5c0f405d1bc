package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot served to admin
// dashboards alongside the Prometheus endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	EnrollmentsTotal         uint64    `json:"enrollments_total"`
	WaitlistPromotions       uint64    `json:"waitlist_promotions"`
	GradesFinalized          uint64    `json:"grades_finalized"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
