package workload

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Gap processes recognized by NewGapSampler.
const (
	ArrivalPoisson = "poisson"
	ArrivalGamma   = "gamma"
	ArrivalWeibull = "weibull"
)

// ValidArrivalProcesses is the set of recognized gap processes.
var ValidArrivalProcesses = map[string]bool{"": true, ArrivalPoisson: true, ArrivalGamma: true, ArrivalWeibull: true}

// GapSampler draws the time between consecutive accesses of one requester.
type GapSampler interface {
	// SampleGap returns the next gap in picoseconds, never negative.
	SampleGap(rng *rand.Rand) int64
}

// PoissonSampler draws exponential gaps (CV=1).
type PoissonSampler struct {
	mean float64
}

func (s *PoissonSampler) SampleGap(rng *rand.Rand) int64 {
	return int64(rng.ExpFloat64() * s.mean)
}

// GammaSampler draws Gamma-distributed gaps. CV > 1 gives bursty access
// phases separated by long quiet periods.
type GammaSampler struct {
	shape float64 // 1/CV²
	scale float64 // mean·CV²
}

func (s *GammaSampler) SampleGap(rng *rand.Rand) int64 {
	return int64(gammaRand(rng, s.shape, s.scale))
}

// gammaRand samples Gamma(shape, scale) with Marsaglia-Tsang for shape >= 1
// and Gamma(a) = Gamma(a+1)·U^(1/a) below that.
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// WeibullSampler draws Weibull-distributed gaps by inverse CDF.
type WeibullSampler struct {
	shape float64 // k
	scale float64 // λ in picoseconds
}

func (s *WeibullSampler) SampleGap(rng *rand.Rand) int64 {
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64
	}
	return int64(s.scale * math.Pow(-math.Log(u), 1.0/s.shape))
}

// NewGapSampler creates the sampler for process with the given mean gap in
// picoseconds and coefficient of variation (ignored by poisson; <= 0 means 1).
func NewGapSampler(process string, meanPs, cv float64) (GapSampler, error) {
	if meanPs <= 0 {
		return nil, fmt.Errorf("mean gap must be > 0, got %f", meanPs)
	}
	if cv <= 0 {
		cv = 1.0
	}
	switch process {
	case "", ArrivalPoisson:
		return &PoissonSampler{mean: meanPs}, nil
	case ArrivalGamma:
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
			return &PoissonSampler{mean: meanPs}, nil
		}
		return &GammaSampler{shape: shape, scale: meanPs * cv * cv}, nil
	case ArrivalWeibull:
		k := weibullShapeFromCV(cv)
		return &WeibullSampler{shape: k, scale: meanPs / math.Gamma(1.0+1.0/k)}, nil
	default:
		return nil, fmt.Errorf("unknown arrival process %q", process)
	}
}

// weibullShapeFromCV finds k with CV² = Γ(1+2/k)/Γ(1+1/k)² - 1 by bisection
// over [0.1, 100].
func weibullShapeFromCV(targetCV float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2.0
		cv := weibullCV(mid)
		if math.Abs(cv-targetCV) < 0.001 {
			return mid
		}
		// CV decreases in k
		if cv > targetCV {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("weibullShapeFromCV: no convergence for CV=%.3f; using k=%.3f", targetCV, (lo+hi)/2.0)
	return (lo + hi) / 2.0
}

func weibullCV(k float64) float64 {
	g1 := math.Gamma(1.0 + 1.0/k)
	g2 := math.Gamma(1.0 + 2.0/k)
	return math.Sqrt(g2/(g1*g1) - 1.0)
}
