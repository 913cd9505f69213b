package propagation

import (
	"fmt"
	"runtime"

	"github.com/star/tlepos/internal/transform"
)

// Branch names the propagation model chosen at initialization.
type Branch uint8

const (
	NearEarth Branch = iota + 1 // SGP4, period below 225 minutes
	DeepSpace                   // SDP4 with lunar-solar and resonance terms
)

func (b Branch) String() string {
	switch b {
	case NearEarth:
		return "near-earth"
	case DeepSpace:
		return "deep-space"
	}
	return fmt.Sprintf("Branch(%d)", uint8(b))
}

// SeriesPoint is one sample of a series evaluation.
type SeriesPoint struct {
	Epoch transform.Epoch
	State transform.StateVector // ITRF
	Err   error
}

// PropConfig holds propagation settings.
type PropConfig struct {
	Gravity GravityModel
	Workers int // worker pool size for series evaluation (default: runtime.NumCPU())
}

// DefaultPropConfig returns WGS72 gravity and one worker per CPU.
func DefaultPropConfig() PropConfig {
	return PropConfig{Gravity: WGS72, Workers: runtime.NumCPU()}
}
