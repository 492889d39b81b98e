package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	TotalReloads      int64            `json:"total_reloads"`
	FailedReloads     int64            `json:"failed_reloads"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	SearchesByVersion map[string]int64 `json:"searches_by_version"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds search and reload events into running statistics.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	totalReloads      atomic.Int64
	failedReloads     atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	latencies         []int64
	byVersion         map[string]int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		byVersion:         make(map[string]int64),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler feeding agg. Undecodable messages are
// logged and acknowledged so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var header eventHeader
		if err := json.Unmarshal(value, &header); err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		switch header.Type {
		case EventReload:
			event, err := kafka.DecodeJSON[ReloadEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode reload event", "error", err)
				return nil
			}
			agg.RecordReload(event)
		case EventSearch, EventPages, EventZeroResult:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.RecordSearch(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", header.Type)
		}
		return nil
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	zero := event.TotalHits == 0
	if zero {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	if len(a.latencies) == maxLatencySamples {
		copy(a.latencies, a.latencies[1:])
		a.latencies = a.latencies[:maxLatencySamples-1]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	a.byVersion[event.Version]++
	a.queryCounts[event.Query]++
	if zero {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) RecordReload(event ReloadEvent) {
	a.totalReloads.Add(1)
	if event.Status != "success" && event.Status != "unchanged" {
		a.failedReloads.Add(1)
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches.Load(),
		TotalReloads:      a.totalReloads.Load(),
		FailedReloads:     a.failedReloads.Load(),
		CacheHits:         a.cacheHits.Load(),
		CacheMisses:       a.cacheMisses.Load(),
		ZeroResultCount:   a.zeroResults.Load(),
		SearchesByVersion: make(map[string]int64, len(a.byVersion)),
	}
	for v, n := range a.byVersion {
		stats.SearchesByVersion[v] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so equal counts are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
