package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates request outcomes across workers.
type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	zeroResults   atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

// RecordRequest records one request. hits is the total_hits reported by the
// server, or -1 when the body was not decoded.
func (s *Stats) RecordRequest(duration time.Duration, statusCode int, hits int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
		if hits == 0 {
			s.zeroResults.Add(1)
		}
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

// Report is the summary printed at the end of a run.
type Report struct {
	Total, Success, Errors, ZeroResults int64
	RPS                                 float64
	Min, Avg, P50, P90, P95, P99, Max   time.Duration
	StdDev                              time.Duration
	StatusCodes                         map[int]int64
}

func (s *Stats) Report(elapsed time.Duration) Report {
	r := Report{
		Total:       s.totalRequests.Load(),
		Success:     s.successCount.Load(),
		Errors:      s.errorCount.Load(),
		ZeroResults: s.zeroResults.Load(),
		StatusCodes: make(map[int]int64),
	}
	if elapsed > 0 {
		r.RPS = float64(r.Total) / elapsed.Seconds()
	}

	s.latenciesMu.Lock()
	latencies := make([]time.Duration, len(s.latencies))
	copy(latencies, s.latencies)
	s.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		r.Avg = sum / time.Duration(len(latencies))
		r.Min = latencies[0]
		r.Max = latencies[len(latencies)-1]
		r.P50 = percentile(latencies, 50)
		r.P90 = percentile(latencies, 90)
		r.P95 = percentile(latencies, 95)
		r.P99 = percentile(latencies, 99)

		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l) - float64(r.Avg)
			sumSquared += diff * diff
		}
		r.StdDev = time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
	}

	s.statusCodesMu.Lock()
	for code, n := range s.statusCodes {
		r.StatusCodes[code] = n.Load()
	}
	s.statusCodesMu.Unlock()
	return r
}

func (r Report) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", r.Total)
	fmt.Fprintf(w, "Successful:      %d\n", r.Success)
	fmt.Fprintf(w, "Errors:          %d\n", r.Errors)
	fmt.Fprintf(w, "Zero results:    %d\n", r.ZeroResults)
	if r.Total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(r.Errors)/float64(r.Total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", r.RPS)
	}
	if r.Max > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", r.Min)
		fmt.Fprintf(w, "Avg:    %s\n", r.Avg)
		fmt.Fprintf(w, "P50:    %s\n", r.P50)
		fmt.Fprintf(w, "P90:    %s\n", r.P90)
		fmt.Fprintf(w, "P95:    %s\n", r.P95)
		fmt.Fprintf(w, "P99:    %s\n", r.P99)
		fmt.Fprintf(w, "Max:    %s\n", r.Max)
		fmt.Fprintf(w, "StdDev: %s\n", r.StdDev)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(r.StatusCodes))
	for code := range r.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, r.StatusCodes[code])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
