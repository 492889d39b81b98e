// Command loadtest drives concurrent queries against searchd and reports
// latency percentiles.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL     string
	Version     string
	Endpoint    string
	Limit       int
	Prefix      bool
	Concurrency int
	Duration    time.Duration
	Queries     []string
}

var defaultQueries = []string{
	"sort",
	"sortperm",
	"push",
	"reduce",
	"mapreduce",
	"broadcast",
	"string interpolation",
	"abstract type",
	"multiple dispatch",
	"iterate",
	"missing values",
	"macro hygiene",
	"module",
	"dict",
	"qux",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of searchd")
	version := flag.String("version", "", "documentation version (default: server default)")
	pages := flag.Bool("pages", false, "query the page-grouped endpoint")
	prefix := flag.Bool("prefix", false, "enable prefix expansion")
	limit := flag.Int("limit", 10, "results per query")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queryFile := flag.String("queries", "", "file with one query per line")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := readQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	endpoint := "/api/v1/search"
	if *pages {
		endpoint = "/api/v1/search/pages"
	}
	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Version:     *version,
		Endpoint:    endpoint,
		Limit:       *limit,
		Prefix:      *prefix,
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries:     queries,
	}

	fmt.Println("=== docsearch load test ===")
	fmt.Printf("Target:      %s%s\n", cfg.BaseURL, cfg.Endpoint)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	start := time.Now()
	stats := runLoadTest(cfg)
	report := stats.Report(time.Since(start))
	report.Print(os.Stdout)
	if report.Total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is searchd running?")
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" && !strings.HasPrefix(q, "#") {
			out = append(out, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return out, nil
}

// searchURL builds the request URL for query.
func (c Config) searchURL(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", fmt.Sprint(c.Limit))
	if c.Version != "" {
		v.Set("version", c.Version)
	}
	if c.Prefix {
		v.Set("prefix", "true")
	}
	return c.BaseURL + c.Endpoint + "?" + v.Encode()
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := workerID; ctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.searchURL(query), nil)
				if err != nil {
					stats.RecordRequest(0, 0, -1, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.RecordRequest(elapsed, 0, -1, err)
					continue
				}
				hits := decodeHits(resp.Body)
				resp.Body.Close()
				stats.RecordRequest(elapsed, resp.StatusCode, hits, nil)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// decodeHits reads total_hits (entries) or total_pages (pages) from body.
func decodeHits(body io.Reader) int {
	var resp struct {
		TotalHits  *int `json:"total_hits"`
		TotalPages *int `json:"total_pages"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return -1
	}
	_, _ = io.Copy(io.Discard, body)
	switch {
	case resp.TotalHits != nil:
		return *resp.TotalHits
	case resp.TotalPages != nil:
		return *resp.TotalPages
	default:
		return -1
	}
}
