// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/rigid_body_tracker/internal/spatial"
)

// Sample is one rigid body's pose at one streaming callback. Positions are
// millimetres in the world frame; Orientation is always unit length.
// Samples are values: a newer callback replaces a Sample, it never edits one.
type Sample struct {
	ID          int         `json:"id"`
	Position    r3.Vector   `json:"position"`
	Orientation quat.Number `json:"orientation"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewSample validates and normalizes the orientation.
func NewSample(id int, position r3.Vector, orientation quat.Number, ts time.Time) (Sample, error) {
	q, err := spatial.Normalize(orientation)
	if err != nil {
		return Sample{}, fmt.Errorf("rigid body %d: %w", id, err)
	}
	return Sample{ID: id, Position: position, Orientation: q, Timestamp: ts}, nil
}

// Frame is a captured baseline: the femur tracker pose and, optionally, the
// stylus pose at the same instant. A Frame is never modified after
// NewFrame; capturing again builds a new one.
type Frame struct {
	Tracker  Sample    `json:"tracker"`
	Stylus   *Sample   `json:"stylus,omitempty"`
	Captured time.Time `json:"captured"`
}

// NewFrame copies stylus so later changes to the caller's value cannot leak
// into the frame.
func NewFrame(tracker Sample, stylus *Sample, captured time.Time) *Frame {
	f := &Frame{Tracker: tracker, Captured: captured}
	if stylus != nil {
		s := *stylus
		f.Stylus = &s
	}
	return f
}

// HasStylus reports whether the stylus was captured with the frame.
func (f *Frame) HasStylus() bool {
	return f != nil && f.Stylus != nil
}

// Source is anything that can provide rigid body samples over time: the
// mock source, a replay file, or a live feed adapter.
type Source interface {
	Next() ([]Sample, error)
}
