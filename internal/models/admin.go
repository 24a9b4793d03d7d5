package models

import "time"

// DBStatus summarises store contents for operators.
type DBStatus struct {
	Tables       map[string]int64 `json:"tables"`
	DatabaseSize int64            `json:"databaseSizeBytes"`
	Redis        bool             `json:"redis"`
	Metrics      SystemMetrics    `json:"metrics"`
	GeneratedAt  time.Time        `json:"generatedAt"`
}

// SystemMetrics are process-level counters reported with the DB status.
type SystemMetrics struct {
	CacheHitRatio            float64 `json:"cacheHitRatio"`
	CacheHits                uint64  `json:"cacheHits"`
	CacheMisses              uint64  `json:"cacheMisses"`
	RequestsTotal            uint64  `json:"requestsTotal"`
	AverageRequestDurationMs float64 `json:"averageRequestDurationMs"`
	DBQueryCount             uint64  `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64 `json:"averageDbQueryDurationMs"`
	Goroutines               int     `json:"goroutines"`
}
