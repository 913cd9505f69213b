package propagation

import (
	"errors"
	"fmt"
)

// ErrKeplerNotConverged reports a Kepler equation solve that ran out of
// iterations.
var ErrKeplerNotConverged = errors.New("kepler equation did not converge")

// ErrorCode identifies why SGP4 could not produce a state.
type ErrorCode int

const (
	CodeMeanEccentricity      ErrorCode = 1 // mean eccentricity outside [-0.001, 1)
	CodeMeanMotion            ErrorCode = 2 // mean motion not positive
	CodePerturbedEccentricity ErrorCode = 3 // eccentricity after lunar-solar periodics outside [0, 1]
	CodeSemiLatusRectum       ErrorCode = 4 // semi-latus rectum negative
	CodeDecayed               ErrorCode = 6 // radius below one earth radius
)

func (c ErrorCode) String() string {
	switch c {
	case CodeMeanEccentricity:
		return "mean eccentricity out of range"
	case CodeMeanMotion:
		return "mean motion not positive"
	case CodePerturbedEccentricity:
		return "perturbed eccentricity out of range"
	case CodeSemiLatusRectum:
		return "semi-latus rectum negative"
	case CodeDecayed:
		return "satellite has decayed"
	}
	return fmt.Sprintf("sgp4 error %d", int(c))
}

// Error is a propagation failure at a given time since epoch.
type Error struct {
	Code   ErrorCode
	Tsince float64 // minutes
}

func (e *Error) Error() string {
	return fmt.Sprintf("sgp4: %s at %.3f min from epoch", e.Code, e.Tsince)
}
