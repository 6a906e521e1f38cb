package htps

import "math"

// MinLogValue stands in for log(0) = -infinity throughout the package:
// actual -Inf propagates awkwardly through sums (-Inf + Inf = NaN), so
// killed/invalid/terminal-bad values are clamped to this large negative
// finite number instead, matching the original source's use of a sentinel
// "minimum float" rather than a true infinity.
const MinLogValue = -1e38

// policy turns (q, prior, count) triples into an action distribution.
// AlphaZero and RPO are the two supported kernels; masked entries
// (q == MinLogValue) always receive zero probability.
type policy struct {
	kind        PolicyType
	exploration float64
}

func newPolicy(p Params) *policy {
	return &policy{kind: p.PolicyType, exploration: p.Exploration}
}

// compute returns p[i] for each non-masked i, given q (log-value, masked
// entries at MinLogValue), pi (prior), and n (visits + virtual visits).
func (pl *policy) compute(q, pi []float64, n []int) ([]float64, error) {
	switch pl.kind {
	case RPO:
		return pl.rpo(q, pi, n)
	default:
		return pl.alphaZero(q, pi, n)
	}
}

func (pl *policy) alphaZero(q, pi []float64, n []int) ([]float64, error) {
	nSum := 0.0
	for _, ni := range n {
		nSum += float64(ni)
	}
	sqrtSum := math.Sqrt(nSum)

	scores := make([]float64, len(q))
	total := 0.0
	anyValid := false
	for i := range q {
		if q[i] <= MinLogValue {
			continue
		}
		anyValid = true
		scores[i] = q[i] + pl.exploration*pi[i]*sqrtSum/(1+float64(n[i]))
		total += scores[i]
	}
	if !anyValid {
		return nil, ErrNoValidTactic
	}
	return normalize(scores, total), nil
}

func (pl *policy) rpo(q, pi []float64, n []int) ([]float64, error) {
	nSum := 0.0
	anyValid := false
	for i, ni := range n {
		nSum += float64(ni)
		if q[i] > MinLogValue {
			anyValid = true
		}
	}
	if !anyValid {
		return nil, ErrNoValidTactic
	}

	k := float64(len(q))
	m := pl.exploration * math.Sqrt(nSum) / (nSum + k)

	if m <= 0 {
		out := make([]float64, len(q))
		total := 0.0
		for i := range q {
			if q[i] <= MinLogValue {
				continue
			}
			out[i] = q[i]
			total += q[i]
		}
		return normalize(out, total), nil
	}

	scaledPi := make([]float64, len(q))
	alphaMin := math.Inf(-1)
	alphaMax := math.Inf(-1)
	for i := range q {
		if q[i] <= MinLogValue {
			continue
		}
		scaledPi[i] = pi[i] * m
		alphaMin = math.Max(alphaMin, q[i]+m*pi[i])
		alphaMax = math.Max(alphaMax, q[i]+m)
	}

	alpha, err := findRPOAlpha(q, scaledPi, alphaMin, alphaMax)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(q))
	total := 0.0
	for i := range q {
		if q[i] <= MinLogValue {
			continue
		}
		out[i] = scaledPi[i] / math.Max(alpha-q[i], 1e-10)
		total += out[i]
	}
	return normalize(out, total), nil
}

const (
	rpoMaxIter   = 50
	rpoTolerance = 1e-3
)

// findRPOAlpha bisects for alpha solving sum(scaledPi[i] / (alpha - q[i])) == 1
// over non-masked i, bounded by [alphaMin, alphaMax].
func findRPOAlpha(q, scaledPi []float64, alphaMin, alphaMax float64) (float64, error) {
	f := func(alpha float64) float64 {
		sum := 0.0
		for i := range q {
			if q[i] <= MinLogValue {
				continue
			}
			sum += scaledPi[i] / math.Max(alpha-q[i], 1e-10)
		}
		return sum - 1
	}

	lo, hi := alphaMin, alphaMax
	flo, fhi := f(lo), f(hi)
	if flo == 0 {
		return lo, nil
	}
	if fhi == 0 {
		return hi, nil
	}

	for i := 0; i < rpoMaxIter; i++ {
		mid := (lo + hi) / 2
		fmid := f(mid)
		if math.Abs(fmid) < rpoTolerance {
			return mid, nil
		}
		if (fmid > 0) == (flo > 0) {
			lo, flo = mid, fmid
		} else {
			hi, fhi = mid, fmid
		}
	}
	return (lo + hi) / 2, nil
}

func normalize(scores []float64, total float64) []float64 {
	out := make([]float64, len(scores))
	if total == 0 {
		return out
	}
	for i, s := range scores {
		out[i] = s / total
	}
	return out
}
