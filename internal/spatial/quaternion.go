// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package spatial holds the vector, quaternion and matrix values used by the
// transform engine. Quaternions are gonum quat.Number values (Real is w,
// Imag/Jmag/Kmag are x/y/z); vectors are r3.Vector.
package spatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// UnitTolerance is how far a quaternion norm may drift from 1 before it is
// reported as non-unit by CheckUnit.
const UnitTolerance = 1e-3

// degenerateNorm is the norm below which a quaternion carries no usable
// rotation and cannot be renormalized.
const degenerateNorm = 1e-9

// ErrInvalidQuaternion is returned for orientations that are degenerate
// (zero, NaN, Inf) or outside the unit tolerance.
var ErrInvalidQuaternion = errors.New("invalid quaternion")

// Identity is the zero rotation.
var Identity = quat.Number{Real: 1}

// Quat builds a quaternion from the (x, y, z, w) order used by the pose feed.
func Quat(x, y, z, w float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// XYZW returns q in feed order.
func XYZW(q quat.Number) [4]float64 {
	return [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}

// Normalize scales q to unit length. Degenerate quaternions are rejected.
func Normalize(q quat.Number) (quat.Number, error) {
	if quat.IsNaN(q) || quat.IsInf(q) {
		return quat.Number{}, fmt.Errorf("%w: non-finite component %v", ErrInvalidQuaternion, XYZW(q))
	}
	n := quat.Abs(q)
	if n <= degenerateNorm {
		return quat.Number{}, fmt.Errorf("%w: norm %g is too close to zero", ErrInvalidQuaternion, n)
	}
	if n == 1 {
		return q, nil
	}
	return quat.Scale(1/n, q), nil
}

// CheckUnit reports ErrInvalidQuaternion when the norm of q is further than
// tol from 1.
func CheckUnit(q quat.Number, tol float64) error {
	if quat.IsNaN(q) || quat.IsInf(q) {
		return fmt.Errorf("%w: non-finite component %v", ErrInvalidQuaternion, XYZW(q))
	}
	if d := math.Abs(quat.Abs(q) - 1); d > tol {
		return fmt.Errorf("%w: norm deviates from 1 by %g (tolerance %g)", ErrInvalidQuaternion, d, tol)
	}
	return nil
}

// Inverse returns the inverse of a unit quaternion, which is its conjugate.
func Inverse(q quat.Number) quat.Number {
	return quat.Conj(q)
}

// Compose returns a ⊗ b renormalized to absorb floating point drift. Inputs
// are expected to be unit quaternions.
func Compose(a, b quat.Number) quat.Number {
	c := quat.Mul(a, b)
	if n := quat.Abs(c); n > degenerateNorm {
		c = quat.Scale(1/n, c)
	}
	return c
}

// Rotate applies the unit quaternion q to v (q v q⁻¹) using the
// two-cross-product form:
//
//	t  = 2 (u × v)
//	v' = v + w t + u × t
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	u := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	t := u.Cross(v).Mul(2)
	return v.Add(t.Mul(q.Real)).Add(u.Cross(t))
}

// RotationMatrix converts a unit quaternion to its 3×3 rotation matrix.
func RotationMatrix(q quat.Number) [3][3]float64 {
	x, y, z, w := q.Imag, q.Jmag, q.Kmag, q.Real
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return [3][3]float64{
		{1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy)},
		{2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx)},
		{2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy)},
	}
}

// AxisAngle returns the unit quaternion for a rotation of theta radians
// about axis. The axis does not need to be normalized.
func AxisAngle(axis r3.Vector, theta float64) quat.Number {
	a := axis.Normalize()
	s := math.Sin(theta / 2)
	return quat.Number{Real: math.Cos(theta / 2), Imag: a.X * s, Jmag: a.Y * s, Kmag: a.Z * s}
}
