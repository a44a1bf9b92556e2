// Package randvar implements the small bank of random distributions
// behind the traffic models: constant, exponential, log-normal and
// Pareto variables, the latter two bounded to a closed interval, plus
// a two-point discrete variable.
//
// Every variable draws from an injected *rand.Rand, so a simulation
// seeded identically reproduces identical traffic.
package randvar

import (
	"math"
	"math/rand"
)

// Variable yields one random value per call.
type Variable interface {
	Value() float64
}

// Constant always returns the same value.
type Constant struct {
	C float64
}

func (v Constant) Value() float64 { return v.C }

// Exponential is an unbounded exponential distribution.
type Exponential struct {
	Rng  *rand.Rand
	Mean float64
}

func (v Exponential) Value() float64 {
	return v.Rng.ExpFloat64() * v.Mean
}

// BoundedLogNormal is a log-normal distribution resampled until the
// draw falls inside [Min, Max]. Mu and Sigma parameterize the
// underlying normal.
type BoundedLogNormal struct {
	Rng      *rand.Rand
	Mu       float64
	Sigma    float64
	Min, Max float64
}

func (v BoundedLogNormal) Value() float64 {
	for i := 0; i < 1000; i++ {
		x := math.Exp(v.Mu + v.Sigma*v.Rng.NormFloat64())
		if x >= v.Min && x <= v.Max {
			return x
		}
	}
	// Pathological parameters; clamp rather than spin forever.
	x := math.Exp(v.Mu)
	return math.Min(math.Max(x, v.Min), v.Max)
}

// BoundedPareto is a Pareto distribution truncated to [Scale, Max]
// by inverse-CDF sampling, so no draw is ever discarded.
type BoundedPareto struct {
	Rng   *rand.Rand
	Shape float64
	Scale float64
	Max   float64
}

func (v BoundedPareto) Value() float64 {
	u := v.Rng.Float64()
	ratio := math.Pow(v.Scale/v.Max, v.Shape)
	return v.Scale / math.Pow(1-u*(1-ratio), 1/v.Shape)
}

// TwoPoint returns A with probability ProbA, otherwise B.
type TwoPoint struct {
	Rng   *rand.Rand
	A, B  float64
	ProbA float64
}

func (v TwoPoint) Value() float64 {
	if v.Rng.Float64() < v.ProbA {
		return v.A
	}
	return v.B
}
