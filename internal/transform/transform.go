// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transform derives where reference-relative points are now, given
// the femur tracker's reference pose and its current pose. Every function is
// a pure computation over its arguments.
package transform

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/spatial"
)

// ErrReferenceMissing is returned when no reference frame has been captured.
var ErrReferenceMissing = errors.New("no reference captured yet")

// Delta is the rigid motion of the tracker from its reference pose to its
// current pose.
type Delta struct {
	Rotation    quat.Number `json:"rotation"`
	Translation r3.Vector   `json:"translation"`
}

// Result is a target's current world position and the homogeneous matrix
// combining the current tracker orientation with that position.
type Result struct {
	Position r3.Vector       `json:"position"`
	Matrix   spatial.Matrix4 `json:"matrix"`
}

// ErrorAnalysis compares a calculated position with a measured one.
// Components are actual minus calculated.
type ErrorAnalysis struct {
	X         float64 `json:"x_error"`
	Y         float64 `json:"y_error"`
	Z         float64 `json:"z_error"`
	Magnitude float64 `json:"magnitude"`
}

// ComputeDelta returns Δq = current ⊗ reference⁻¹ and Δt = current − reference
// for the frame's tracker pose.
func ComputeDelta(ref *pose.Frame, current pose.Sample) (Delta, error) {
	if ref == nil {
		return Delta{}, ErrReferenceMissing
	}
	refQ, curQ, err := checkOrientations(ref.Tracker, current)
	if err != nil {
		return Delta{}, err
	}
	return Delta{
		Rotation:    spatial.Compose(curQ, spatial.Inverse(refQ)),
		Translation: current.Position.Sub(ref.Tracker.Position),
	}, nil
}

// ApplyOffset places a tracker-local offset at the tracker's current pose:
//
//	position = current.Position + rotate(current.Orientation, offset)
//
// The matrix rotation block is the current tracker orientation and its
// translation column is position.
func ApplyOffset(ref *pose.Frame, current pose.Sample, offset r3.Vector) (Result, error) {
	if ref == nil {
		return Result{}, ErrReferenceMissing
	}
	_, curQ, err := checkOrientations(ref.Tracker, current)
	if err != nil {
		return Result{}, err
	}
	tracker := spatial.NewPoseMatrix(curQ, current.Position)
	m := spatial.NewPoseMatrix(curQ, tracker.Apply(offset))
	return Result{Position: m.Translation(), Matrix: m}, nil
}

// LocalOffset expresses a world point in the tracker's local frame at the
// reference pose: rotate(reference⁻¹, world − reference.Position).
func LocalOffset(reference pose.Sample, world r3.Vector) (r3.Vector, error) {
	q, err := orientation(reference)
	if err != nil {
		return r3.Vector{}, err
	}
	return spatial.Rotate(spatial.Inverse(q), world.Sub(reference.Position)), nil
}

// PositionError reports actual − calculated per axis and its length.
func PositionError(calculated, actual r3.Vector) ErrorAnalysis {
	d := actual.Sub(calculated)
	return ErrorAnalysis{X: d.X, Y: d.Y, Z: d.Z, Magnitude: d.Norm()}
}

func checkOrientations(reference, current pose.Sample) (quat.Number, quat.Number, error) {
	refQ, err := orientation(reference)
	if err != nil {
		return quat.Number{}, quat.Number{}, fmt.Errorf("reference tracker: %w", err)
	}
	curQ, err := orientation(current)
	if err != nil {
		return quat.Number{}, quat.Number{}, fmt.Errorf("current tracker: %w", err)
	}
	return refQ, curQ, nil
}

// orientation renormalizes drift; only degenerate quaternions are rejected.
func orientation(s pose.Sample) (quat.Number, error) {
	q, err := spatial.Normalize(s.Orientation)
	if err != nil {
		return quat.Number{}, fmt.Errorf("rigid body %d: %w", s.ID, err)
	}
	return q, nil
}
