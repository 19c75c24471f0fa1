// Package main implements a load test harness for the transaction history
// endpoint. Workers post history requests for a rotating set of addresses
// against a running API instance and report throughput, latency and the
// status code mix.
//
// Usage:
//
//	go run ./test/loadtest \
//	  -api-url http://localhost:8082 \
//	  -addresses addr1...,addr1...,e1... \
//	  -until-block 5f20df933584822601f9e3f8c024eb5eb252fe8cefb24d1317dc3d432e940ebb \
//	  -concurrency 8 \
//	  -rps 100 \
//	  -duration 30s
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const historyPath = "/api/v2/txs/history"

type historyRequest struct {
	Addresses  []string `json:"addresses"`
	UntilBlock string   `json:"untilBlock"`
	Limit      int      `json:"limit,omitempty"`
}

// stats is shared by all workers.
type stats struct {
	requests    atomic.Int64
	errors      atomic.Int64
	txsReturned atomic.Int64

	mu        sync.Mutex
	latencies []int64
	statuses  map[int]int64
}

func newStats() *stats {
	return &stats{statuses: make(map[int]int64)}
}

func (s *stats) record(status int, d time.Duration, txs int) {
	s.requests.Add(1)
	s.txsReturned.Add(int64(txs))
	if status != http.StatusOK {
		s.errors.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d.Nanoseconds())
	s.statuses[status]++
	s.mu.Unlock()
}

// recordTransportError counts a request that never produced a status code.
func (s *stats) recordTransportError(d time.Duration) {
	s.record(0, d, 0)
}

func main() {
	var (
		apiURL        = flag.String("api-url", "http://localhost:8082", "Base URL of the API instance")
		addressesFlag = flag.String("addresses", "", "Comma-separated addresses to rotate through")
		untilBlock    = flag.String("until-block", "", "Upper bound block hash sent with every request")
		perRequest    = flag.Int("addresses-per-request", 1, "Addresses per request")
		limit         = flag.Int("limit", 50, "Transactions per response")
		concurrency   = flag.Int("concurrency", 4, "Number of parallel workers")
		rps           = flag.Float64("rps", 0, "Global request rate; 0 means unthrottled")
		duration      = flag.Duration("duration", 30*time.Second, "Test duration")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	addresses := splitAddresses(*addressesFlag)
	if len(addresses) == 0 || *untilBlock == "" {
		fmt.Fprintln(os.Stderr, "-addresses and -until-block are required")
		flag.Usage()
		os.Exit(1)
	}

	logger.Info("load test configuration",
		"api_url", *apiURL,
		"addresses", len(addresses),
		"addresses_per_request", *perRequest,
		"limit", *limit,
		"concurrency", *concurrency,
		"rps", *rps,
		"duration", *duration,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var limiter *rate.Limiter
	if *rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(*rps), *concurrency)
	}

	client := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: *concurrency,
		},
	}
	target := strings.TrimRight(*apiURL, "/") + historyPath
	st := newStats()
	var seq atomic.Int64

	logger.Info("starting load test", "workers", *concurrency, "duration", *duration)
	testStart := time.Now()

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < *concurrency; i++ {
		workerID := i
		g.Go(func() error {
			for {
				if limiter != nil {
					if err := limiter.Wait(gCtx); err != nil {
						return nil
					}
				}
				if gCtx.Err() != nil {
					return nil
				}

				req := historyRequest{
					Addresses:  pickAddresses(addresses, *perRequest, seq.Add(1)-1),
					UntilBlock: *untilBlock,
					Limit:      *limit,
				}
				if err := doRequest(gCtx, client, target, req, st); err != nil && gCtx.Err() == nil {
					logger.Debug("request failed", "worker", workerID, "error", err)
				}
			}
		})
	}
	_ = g.Wait()

	report := summarize(st, time.Since(testStart))
	printReport(os.Stdout, report, *concurrency)

	if report.Requests == 0 || report.Errors > 0 {
		os.Exit(1)
	}
}

func splitAddresses(flagValue string) []string {
	parts := strings.Split(flagValue, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// pickAddresses returns n consecutive addresses starting at position seq,
// wrapping around the pool.
func pickAddresses(pool []string, n int, seq int64) []string {
	if n <= 0 {
		n = 1
	}
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, n)
	start := int(seq % int64(len(pool)))
	for i := range out {
		out[i] = pool[(start+i)%len(pool)]
	}
	return out
}

func doRequest(ctx context.Context, client *http.Client, target string, req historyRequest, st *stats) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() == nil {
			st.recordTransportError(time.Since(start))
		}
		return fmt.Errorf("post history: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			st.recordTransportError(elapsed)
		}
		return fmt.Errorf("read response: %w", err)
	}

	txs := 0
	if resp.StatusCode == http.StatusOK {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			st.recordTransportError(elapsed)
			return fmt.Errorf("decode response: %w", err)
		}
		txs = len(list)
	}
	st.record(resp.StatusCode, elapsed, txs)
	if resp.StatusCode != http.StatusOK {
		return errors.New(strings.TrimSpace(string(raw)))
	}
	return nil
}

type loadReport struct {
	Duration      time.Duration
	Requests      int64
	Errors        int64
	TxsReturned   int64
	RequestsPerS  float64
	ErrorRatePct  float64
	P50, P95, P99 int64
	Statuses      map[int]int64
}

func summarize(st *stats, testDuration time.Duration) loadReport {
	st.mu.Lock()
	latencies := make([]int64, len(st.latencies))
	copy(latencies, st.latencies)
	statuses := make(map[int]int64, len(st.statuses))
	for k, v := range st.statuses {
		statuses[k] = v
	}
	st.mu.Unlock()

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	r := loadReport{
		Duration:    testDuration,
		Requests:    st.requests.Load(),
		Errors:      st.errors.Load(),
		TxsReturned: st.txsReturned.Load(),
		P50:         percentile(latencies, 50),
		P95:         percentile(latencies, 95),
		P99:         percentile(latencies, 99),
		Statuses:    statuses,
	}
	if secs := testDuration.Seconds(); secs > 0 {
		r.RequestsPerS = float64(r.Requests) / secs
	}
	if r.Requests > 0 {
		r.ErrorRatePct = float64(r.Errors) / float64(r.Requests) * 100
	}
	return r
}

func printReport(w io.Writer, r loadReport, workers int) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "       LOAD TEST RESULTS")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Duration:       %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Workers:        %d\n", workers)
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, "Throughput:")
	fmt.Fprintf(w, "  Requests:     %d\n", r.Requests)
	fmt.Fprintf(w, "  Requests/sec: %.2f\n", r.RequestsPerS)
	fmt.Fprintf(w, "  Txs returned: %d\n", r.TxsReturned)
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, "Latency (per request):")
	fmt.Fprintf(w, "  p50:          %s\n", formatNanos(r.P50))
	fmt.Fprintf(w, "  p95:          %s\n", formatNanos(r.P95))
	fmt.Fprintf(w, "  p99:          %s\n", formatNanos(r.P99))
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, "Status codes:")
	codes := make([]int, 0, len(r.Statuses))
	for code := range r.Statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		label := fmt.Sprintf("%d", code)
		if code == 0 {
			label = "transport"
		}
		fmt.Fprintf(w, "  %-12s  %d\n", label+":", r.Statuses[code])
	}
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, "Errors:")
	fmt.Fprintf(w, "  Total:        %d\n", r.Errors)
	fmt.Fprintf(w, "  Error rate:   %.2f%%\n", r.ErrorRatePct)
	fmt.Fprintln(w, "========================================")
}

// percentile returns the value at the given percentile from a sorted slice.
func percentile(sorted []int64, pct float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(pct/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func formatNanos(ns int64) string {
	return time.Duration(ns).Round(time.Microsecond).String()
}
