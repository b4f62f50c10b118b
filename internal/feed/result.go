// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package feed

import "time"

// PointResult is published for downstream robotics consumers each time a
// mapped point or the stylus is calculated.
type PointResult struct {
	Label    string      `json:"label"`
	Position [3]float64  `json:"position_mm"`
	Matrix   [][]float64 `json:"matrix"` // row-major 4x4
	Status   string      `json:"stream_status"`
	Time     time.Time   `json:"time"`
}

// StreamStatus is the retained connection status message.
type StreamStatus struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
	Error  string    `json:"error,omitempty"`
}
