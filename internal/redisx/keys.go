package redisx

import "time"

const (
	// Replenishment delivery dedup: dedup:replenish:{idempotency_key} -> "1"
	KeyDedupReplenish = "dedup:replenish:%s"

	// Single-runner lock for the auto-cancel sweep: lock:scheduler:{job} -> token
	KeySchedulerLock = "lock:scheduler:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
