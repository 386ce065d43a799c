package store

import (
	"time"

	"github.com/lib/pq"
)

// AuditRecord is one row of the annotation audit log
type AuditRecord struct {
	ID           int64          `db:"id" json:"id"`
	RequestID    string         `db:"request_id" json:"request_id"`
	ClientIP     string         `db:"client_ip" json:"client_ip"`
	RemarkCount  int            `db:"remark_count" json:"remark_count"`
	ChunkCount   int            `db:"chunk_count" json:"chunk_count"`
	RuleIDs      pq.StringArray `db:"rule_ids" json:"rule_ids"`
	BodyBytes    int64          `db:"body_bytes" json:"body_bytes"`
	CacheHit     bool           `db:"cache_hit" json:"cache_hit"`
	DurationMS   float64        `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// AuditStats summarizes the audit log
type AuditStats struct {
	TotalRequests   int64   `db:"total_requests" json:"total_requests"`
	TotalRemarks    int64   `db:"total_remarks" json:"total_remarks"`
	TotalChunks     int64   `db:"total_chunks" json:"total_chunks"`
	CacheHits       int64   `db:"cache_hits" json:"cache_hits"`
	AvgDurationMS   float64 `db:"avg_duration_ms" json:"avg_duration_ms"`
	DistinctClients int64   `db:"distinct_clients" json:"distinct_clients"`
}
