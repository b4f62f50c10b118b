// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Matrix4 is a row-major homogeneous transformation:
//
//	[[R11 R12 R13 Tx]
//	 [R21 R22 R23 Ty]
//	 [R31 R32 R33 Tz]
//	 [0   0   0   1 ]]
type Matrix4 [4][4]float64

// NewPoseMatrix builds the homogeneous matrix for rotation q and translation t.
func NewPoseMatrix(q quat.Number, t r3.Vector) Matrix4 {
	r := RotationMatrix(q)
	return Matrix4{
		{r[0][0], r[0][1], r[0][2], t.X},
		{r[1][0], r[1][1], r[1][2], t.Y},
		{r[2][0], r[2][1], r[2][2], t.Z},
		{0, 0, 0, 1},
	}
}

// Translation returns the top-right column.
func (m Matrix4) Translation() r3.Vector {
	return r3.Vector{X: m[0][3], Y: m[1][3], Z: m[2][3]}
}

// Rows returns the matrix as nested slices, the shape JSON consumers expect.
func (m Matrix4) Rows() [][]float64 {
	rows := make([][]float64, 4)
	for i := range m {
		row := m[i]
		rows[i] = row[:]
	}
	return rows
}

// Dense copies m into a gonum matrix.
func (m Matrix4) Dense() *mat.Dense {
	data := make([]float64, 0, 16)
	for i := range m {
		data = append(data, m[i][:]...)
	}
	return mat.NewDense(4, 4, data)
}

// Apply transforms point p by m.
func (m Matrix4) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}
}

// IsRigid reports whether m is a proper rigid transform: orthonormal
// rotation block with determinant +1 and a [0 0 0 1] bottom row, all within
// tol.
func IsRigid(m Matrix4, tol float64) bool {
	if m[3][0] != 0 || m[3][1] != 0 || m[3][2] != 0 || m[3][3] != 1 {
		return false
	}
	r := m.Dense().Slice(0, 3, 0, 3)

	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	if !mat.EqualApprox(&rtr, eye3, tol) {
		return false
	}
	return math.Abs(mat.Det(r)-1) <= tol
}

var eye3 = mat.NewDiagDense(3, []float64{1, 1, 1})
