package workload

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func sampleGaps(t *testing.T, process string, cv float64, n int) []float64 {
	t.Helper()
	s, err := NewGapSampler(process, 50_000, cv)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(42))
	gaps := make([]float64, n)
	for i := range gaps {
		gaps[i] = float64(s.SampleGap(rng))
	}
	return gaps
}

func TestGapSamplers_MeanMatches(t *testing.T) {
	for _, process := range []string{ArrivalPoisson, ArrivalGamma, ArrivalWeibull} {
		t.Run(process, func(t *testing.T) {
			// GIVEN a 50 ns mean gap with CV 2
			gaps := sampleGaps(t, process, 2, 50_000)

			// WHEN the sample mean is computed
			mean := stat.Mean(gaps, nil)

			// THEN it is within 5% of the configured mean
			if math.Abs(mean-50_000)/50_000 > 0.05 {
				t.Errorf("mean gap = %.0f ps, want ≈ 50000", mean)
			}
		})
	}
}

func TestGammaSampler_HighCV_IsBurstier(t *testing.T) {
	gamma := sampleGaps(t, ArrivalGamma, 3.5, 20_000)
	poisson := sampleGaps(t, ArrivalPoisson, 0, 20_000)

	gammaCV := stat.StdDev(gamma, nil) / stat.Mean(gamma, nil)
	poissonCV := stat.StdDev(poisson, nil) / stat.Mean(poisson, nil)
	if gammaCV < 2.0 {
		t.Errorf("gamma CV = %.2f, want > 2.0", gammaCV)
	}
	if poissonCV < 0.9 || poissonCV > 1.1 {
		t.Errorf("poisson CV = %.2f, want ≈ 1.0", poissonCV)
	}
}

func TestWeibullShapeFromCV_Inverts(t *testing.T) {
	for _, cv := range []float64{0.5, 1, 2} {
		k := weibullShapeFromCV(cv)
		if got := weibullCV(k); math.Abs(got-cv) > 0.001 {
			t.Errorf("weibullCV(%.3f) = %.4f, want %.1f", k, got, cv)
		}
	}
}

func TestNewGapSampler_Errors(t *testing.T) {
	if _, err := NewGapSampler("pareto", 1000, 1); err == nil {
		t.Error("expected error for unknown process")
	}
	if _, err := NewGapSampler(ArrivalPoisson, 0, 1); err == nil {
		t.Error("expected error for zero mean")
	}
}
