package sim

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// LatencySummary holds the distribution of access latencies in picoseconds.
type LatencySummary struct {
	Count int
	Mean  float64
	P50   float64
	P90   float64
	P99   float64
	Max   float64
}

// SummarizeLatencies computes mean and empirical quantiles of data.
// data is sorted in place. Returns a zero summary for empty input.
func SummarizeLatencies(data []float64) LatencySummary {
	if len(data) == 0 {
		return LatencySummary{}
	}
	sort.Float64s(data)
	return LatencySummary{
		Count: len(data),
		Mean:  stat.Mean(data, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, data, nil),
		P90:   stat.Quantile(0.90, stat.Empirical, data, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, data, nil),
		Max:   data[len(data)-1],
	}
}
