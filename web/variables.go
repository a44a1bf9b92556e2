package web

import (
	"math/rand"
	"time"

	"github.com/a-andre/traffic/randvar"
)

// Variables is the random-draw capability the state machines pull
// from. The core calls these without any knowledge of the underlying
// distributions, so tests may substitute fixed values.
type Variables interface {
	// MTUSize is drawn once per server start when the MTU is not
	// configured explicitly.
	MTUSize() int
	// MainObjectSize and EmbeddedObjectSize size one response,
	// header included.
	MainObjectSize() int
	EmbeddedObjectSize() int
	// NumEmbeddedObjects is drawn once per page, after parsing the
	// main object. Zero is a legal draw.
	NumEmbeddedObjects() int
	// ParsingTime simulates rendering the main object.
	ParsingTime() time.Duration
	// ReadingTime is the idle period between page-load cycles.
	ReadingTime() time.Duration
	// ResponseDelay is the server-side delay before the first byte
	// of a response, when the server is configured to draw it.
	ResponseDelay() time.Duration
}

// Vars is the default variable bank, parameterized per the 3GPP web
// browsing traffic profile the original model follows. Distributions
// are exported so callers can reshape individual quantities before
// starting the simulation.
type Vars struct {
	rng *rand.Rand

	MTU            randvar.Variable
	MainObject     randvar.Variable // bytes
	EmbeddedObject randvar.Variable // bytes
	EmbeddedCount  randvar.BoundedPareto
	Parsing        randvar.Variable // seconds
	Reading        randvar.Variable // seconds
	Response       randvar.Variable // seconds
}

// NewVariables builds the default bank. Two runs with the same seed
// draw identical sequences.
func NewVariables(seed int64) *Vars {
	rng := rand.New(rand.NewSource(seed))
	return &Vars{
		rng:            rng,
		MTU:            randvar.TwoPoint{Rng: rng, A: 1460, B: 536, ProbA: 0.76},
		MainObject:     randvar.BoundedLogNormal{Rng: rng, Mu: 8.37, Sigma: 1.37, Min: 100, Max: 2e6},
		EmbeddedObject: randvar.BoundedLogNormal{Rng: rng, Mu: 6.17, Sigma: 2.36, Min: 50, Max: 2e6},
		EmbeddedCount:  randvar.BoundedPareto{Rng: rng, Shape: 1.1, Scale: 2, Max: 55},
		Parsing:        randvar.Exponential{Rng: rng, Mean: 0.13},
		Reading:        randvar.Exponential{Rng: rng, Mean: 30},
		Response:       randvar.Constant{C: 0},
	}
}

// SetStream reseeds the bank, restoring repeatability mid-run.
func (v *Vars) SetStream(seed int64) {
	v.rng.Seed(seed)
}

func (v *Vars) MTUSize() int { return int(v.MTU.Value()) }

func (v *Vars) MainObjectSize() int {
	return clampObjectSize(int(v.MainObject.Value()))
}

func (v *Vars) EmbeddedObjectSize() int {
	return clampObjectSize(int(v.EmbeddedObject.Value()))
}

// NumEmbeddedObjects shifts the bounded Pareto draw down by its scale
// parameter, as the original model does, yielding values starting
// at zero.
func (v *Vars) NumEmbeddedObjects() int {
	n := int(v.EmbeddedCount.Value() - v.EmbeddedCount.Scale)
	if n < 0 {
		n = 0
	}
	return n
}

func (v *Vars) ParsingTime() time.Duration { return seconds(v.Parsing.Value()) }

func (v *Vars) ReadingTime() time.Duration { return seconds(v.Reading.Value()) }

func (v *Vars) ResponseDelay() time.Duration { return seconds(v.Response.Value()) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func clampObjectSize(n int) int {
	if n < HeaderSize {
		return HeaderSize
	}
	return n
}
