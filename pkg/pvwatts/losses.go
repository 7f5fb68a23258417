package pvwatts

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
)

// Named loss categories, in percent.
const (
	LossSoiling                 = "soiling"
	LossSnow                    = "snow"
	LossMismatch                = "mismatch"
	LossWiring                  = "wiring"
	LossConnections             = "connections"
	LossLightInducedDegradation = "light-induced degradation"
	LossNameplateRating         = "nameplate rating"
	LossAge                     = "age"
	LossAvailability            = "availability"
)

// DefaultLosses returns the PVWatts default loss table, in percent.
func DefaultLosses() map[string]float64 {
	return map[string]float64{
		LossSoiling:                 2.0,
		LossSnow:                    0.0,
		LossMismatch:                2.0,
		LossWiring:                  2.0,
		LossConnections:             0.5,
		LossLightInducedDegradation: 1.5,
		LossNameplateRating:         1.0,
		LossAge:                     0.0,
		LossAvailability:            3.0,
	}
}

// SystemLosses derates DC power by a fixed chain of losses. The total is
// computed once, at construction.
type SystemLosses struct {
	losses map[string]float64
	total  float64
}

// NewSystemLosses builds the derate chain. Every loss must lie in [0, 100).
func NewSystemLosses(losses map[string]float64) (SystemLosses, error) {
	var errs error
	names := make([]string, 0, len(losses))
	for name := range losses {
		names = append(names, name)
	}
	sort.Strings(names)

	retained := make([]float64, 0, len(losses))
	copied := make(map[string]float64, len(losses))
	for _, name := range names {
		loss := losses[name]
		if loss < 0 || loss >= 100 {
			errs = multierr.Append(errs, fmt.Errorf("loss %q = %v outside [0, 100)", name, loss))
			continue
		}
		retained = append(retained, 1-loss/100)
		copied[name] = loss
	}
	if errs != nil {
		return SystemLosses{}, errs
	}

	total := 0.0
	if len(retained) > 0 {
		total = 100 * (1 - floats.Prod(retained))
	}
	return SystemLosses{losses: copied, total: total}, nil
}

// DefaultSystemLosses is NewSystemLosses(DefaultLosses()).
func DefaultSystemLosses() SystemLosses {
	l, _ := NewSystemLosses(DefaultLosses())
	return l
}

// Total is the combined loss in percent.
func (l SystemLosses) Total() float64 {
	return l.total
}

// Loss returns a single named loss in percent.
func (l SystemLosses) Loss(name string) (float64, bool) {
	v, ok := l.losses[name]
	return v, ok
}

// Apply derates dcPower by the total loss.
func (l SystemLosses) Apply(dcPower float64) float64 {
	return dcPower * (1 - l.total/100)
}
