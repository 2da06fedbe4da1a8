package benchmark

import (
	"math"
	"slices"
	"time"
)

// TrimLimit caps how many of the fastest iterations feed the averages
const TrimLimit = 99

// Result is one completed query execution
type Result struct {
	Iteration     int // 1-based
	Latency       time.Duration
	RequestCharge float64
	CompletedAt   time.Time
}

// LatencyMs returns the latency in fractional milliseconds
func (r Result) LatencyMs() float64 {
	return float64(r.Latency) / float64(time.Millisecond)
}

// Summary aggregates the results of a run
type Summary struct {
	Count   int // all recorded results
	Trimmed int // results averaged, min(TrimLimit, Count)

	// Averages over the Trimmed fastest results, rounded to one decimal
	AverageLatencyMs     float64
	AverageRequestCharge float64

	// Distribution over all results
	MinLatencyMs       float64
	MaxLatencyMs       float64
	P50LatencyMs       float64
	P95LatencyMs       float64
	P99LatencyMs       float64
	TotalRequestCharge float64
}

// Summarize computes the run summary. Results are ordered by latency (ties
// keep iteration order) and the first TrimLimit of them are averaged; the
// request charge average uses the same subset. The input is not modified.
func Summarize(results []Result) Summary {
	if len(results) == 0 {
		return Summary{}
	}

	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b Result) int {
		switch {
		case a.Latency < b.Latency:
			return -1
		case a.Latency > b.Latency:
			return 1
		default:
			return 0
		}
	})

	trimmed := sorted[:min(TrimLimit, len(sorted))]
	var latencySum, chargeSum float64
	for _, r := range trimmed {
		latencySum += r.LatencyMs()
		chargeSum += r.RequestCharge
	}

	var total float64
	for _, r := range results {
		total += r.RequestCharge
	}

	return Summary{
		Count:                len(results),
		Trimmed:              len(trimmed),
		AverageLatencyMs:     roundTenth(latencySum / float64(len(trimmed))),
		AverageRequestCharge: roundTenth(chargeSum / float64(len(trimmed))),
		MinLatencyMs:         sorted[0].LatencyMs(),
		MaxLatencyMs:         sorted[len(sorted)-1].LatencyMs(),
		P50LatencyMs:         percentile(sorted, 50),
		P95LatencyMs:         percentile(sorted, 95),
		P99LatencyMs:         percentile(sorted, 99),
		TotalRequestCharge:   total,
	}
}

// percentile uses the nearest-rank method on latency-sorted results
func percentile(sorted []Result, p float64) float64 {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	rank = max(rank, 1)
	return sorted[rank-1].LatencyMs()
}

// roundTenth rounds half to even at one decimal place
func roundTenth(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}
