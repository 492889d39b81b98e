package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventPages      EventType = "search_pages"
	EventZeroResult EventType = "zero_result"
	EventReload     EventType = "index_reload"
)

type SearchEvent struct {
	Type       EventType `json:"type"`
	Version    string    `json:"version"`
	Generation uint64    `json:"generation"`
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	Prefix     bool      `json:"prefix"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// ReloadEvent records one attempt to replace a version's snapshot.
type ReloadEvent struct {
	Type       EventType `json:"type"`
	Version    string    `json:"version"`
	Generation uint64    `json:"generation"`
	Entries    int       `json:"entries"`
	Terms      int       `json:"terms"`
	Status     string    `json:"status"`
	Source     string    `json:"source"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// eventHeader is decoded first to route a message to its concrete type.
type eventHeader struct {
	Type EventType `json:"type"`
}
