package tiler

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/golang/geo/r3"
)

const (
	DefaultActionBudget        = 5
	DefaultEvalMinInterval     = 200 * time.Millisecond
	DefaultEvalMaxInterval     = time.Second
	DefaultRootActivationDelay = 500 * time.Millisecond
)

// Shared state read by every tile evaluation. Owned by the tile manager and only mutated from
// the goroutine that ticks it.
type TilingContext struct {
	Radius     float64
	MaxLevel   int
	Thresholds *ThresholdTable

	// Finalize stages allowed per tick
	ActionBudget int

	// Each tile is re-evaluated after a random delay in [EvalMinInterval, EvalMaxInterval]
	EvalMinInterval time.Duration
	EvalMaxInterval time.Duration

	// Upper bound of the random delay before a root tile is first evaluated
	RootActivationDelay time.Duration

	// Viewpoint and reference origin, in absolute cartesian coordinates
	Viewpoint r3.Vector
	Origin    r3.Vector

	rnd *rand.Rand
}

func NewTilingContext(radius float64, maxLevel int, thresholds *ThresholdTable, seed int64) *TilingContext {
	if thresholds == nil {
		thresholds = DefaultThresholdTable(maxLevel)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TilingContext{
		Radius:              radius,
		MaxLevel:            maxLevel,
		Thresholds:          thresholds,
		ActionBudget:        DefaultActionBudget,
		EvalMinInterval:     DefaultEvalMinInterval,
		EvalMaxInterval:     DefaultEvalMaxInterval,
		RootActivationDelay: DefaultRootActivationDelay,
		rnd:                 rand.New(rand.NewSource(seed)),
	}
}

func (c *TilingContext) Validate() error {
	if c.Radius <= 0 {
		return fmt.Errorf("invalid radius %v", c.Radius)
	}
	if c.MaxLevel < 0 {
		return fmt.Errorf("invalid max level %d", c.MaxLevel)
	}
	if c.ActionBudget <= 0 {
		return fmt.Errorf("invalid action budget %d", c.ActionBudget)
	}
	if c.EvalMinInterval < 0 || c.EvalMaxInterval < c.EvalMinInterval {
		return fmt.Errorf("invalid evaluation interval [%v, %v]", c.EvalMinInterval, c.EvalMaxInterval)
	}
	return c.Thresholds.Validate()
}

// Distance from the viewpoint to a point given relative to the reference origin, as a
// fraction of the planet radius
func (c *TilingContext) DistanceFraction(center r3.Vector) float64 {
	return c.Viewpoint.Sub(c.Origin.Add(center)).Norm() / c.Radius
}

// Time of the next evaluation of a tile evaluated at now
func (c *TilingContext) NextEvaluation(now time.Time) time.Time {
	return now.Add(c.jitter(c.EvalMinInterval, c.EvalMaxInterval))
}

// Time of the first evaluation of a root tile finalized at now
func (c *TilingContext) RootActivation(now time.Time) time.Time {
	return now.Add(c.jitter(0, c.RootActivationDelay))
}

func (c *TilingContext) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	if c.rnd == nil {
		c.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return min + time.Duration(c.rnd.Int63n(int64(max-min)+1))
}
