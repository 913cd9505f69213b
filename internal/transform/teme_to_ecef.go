// Package transform provides time scales and coordinate frame transformations
// for satellite positions.
//
// SGP4 outputs positions in TEME (True Equator Mean Equinox). RotateToEarthFixed
// takes them to ITRF: a rotation about Z by the convention's sidereal angle
// (TEME → PEF), then polar motion (PEF → ITRF). Velocities pick up the
// −ω × r term of the rotating frame.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3;
// IERS Conventions (2010), Ch. 5.
package transform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrFrame reports a state vector handed to a transform in the wrong frame.
var ErrFrame = errors.New("unexpected reference frame")

// Frame tags the reference frame of a StateVector.
type Frame uint8

const (
	FrameTEME Frame = iota + 1
	FrameITRF
)

func (f Frame) String() string {
	switch f {
	case FrameTEME:
		return "TEME"
	case FrameITRF:
		return "ITRF"
	}
	return fmt.Sprintf("Frame(%d)", uint8(f))
}

// Vec3 is a Cartesian vector.
type Vec3 [3]float64

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// StateVector is a position (m) and velocity (m/s) in a tagged frame.
type StateVector struct {
	Epoch    Epoch
	Frame    Frame
	Position Vec3
	Velocity Vec3
}

// Finite reports whether every component of sv is a finite number.
func Finite(sv StateVector) bool {
	for i := 0; i < 3; i++ {
		p, v := sv.Position[i], sv.Velocity[i]
		if math.IsNaN(p) || math.IsInf(p, 0) || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// RotateToEarthFixed transforms a TEME state to ITRF at the state's epoch.
//
// Position transform: r_ITRF = W * R3(θ) * r_TEME
// Velocity transform: v_ITRF = W * (R3(θ) * v_TEME - ω × r_PEF)
//
// where θ is the sidereal angle of f.Convention, W is the polar motion
// matrix and ω = [0, 0, ω_earth·(1 − LOD/86400)].
func RotateToEarthFixed(sv StateVector, f Frames) (StateVector, error) {
	if sv.Frame != FrameTEME {
		return StateVector{}, fmt.Errorf("rotate to earth-fixed: %w: %s", ErrFrame, sv.Frame)
	}
	theta := f.EarthRotationAngle(sv.Epoch)
	omega := OmegaEarth * (1 - f.EOP.LOD/86400.0)

	r3 := rotZ(theta)
	w := f.polarMotion()

	var rPEF, vPEF, rITRF, vITRF mat.VecDense
	rPEF.MulVec(r3, vec(sv.Position))
	vPEF.MulVec(r3, vec(sv.Velocity))

	// ω × r_PEF = [-ω*y, ω*x, 0]
	vPEF.SetVec(0, vPEF.AtVec(0)+omega*rPEF.AtVec(1))
	vPEF.SetVec(1, vPEF.AtVec(1)-omega*rPEF.AtVec(0))

	rITRF.MulVec(w, &rPEF)
	vITRF.MulVec(w, &vPEF)

	return StateVector{
		Epoch:    sv.Epoch,
		Frame:    FrameITRF,
		Position: Vec3{rITRF.AtVec(0), rITRF.AtVec(1), rITRF.AtVec(2)},
		Velocity: Vec3{vITRF.AtVec(0), vITRF.AtVec(1), vITRF.AtVec(2)},
	}, nil
}

func vec(v Vec3) *mat.VecDense {
	return mat.NewVecDense(3, []float64{v[0], v[1], v[2]})
}

// rotX, rotY and rotZ are the frame rotations R1, R2 and R3.
func rotX(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, s,
		0, -s, c,
	})
}

func rotY(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		c, 0, -s,
		0, 1, 0,
		s, 0, c,
	})
}

func rotZ(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	})
}
