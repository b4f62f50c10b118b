// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"math"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"

	"github.com/relabs-tech/rigid_body_tracker/internal/spatial"
)

// MockStylusOffset is where the mock stylus tip sits in the femur tracker's
// local frame (mm).
var MockStylusOffset = r3.Vector{X: 15, Y: -40, Z: 120}

type mockSource struct {
	clk       clock.Clock
	start     float64
	trackerID int
	stylusID  int
}

// NewMockSource creates a source that sways the femur tracker around a fixed
// point and keeps the stylus rigidly attached to it, so the calculated and
// actual stylus positions should agree.
func NewMockSource(trackerID, stylusID int, clk clock.Clock) Source {
	if clk == nil {
		clk = clock.New()
	}
	return &mockSource{
		clk:       clk,
		start:     seconds(clk),
		trackerID: trackerID,
		stylusID:  stylusID,
	}
}

func seconds(clk clock.Clock) float64 {
	return float64(clk.Now().UnixNano()) / 1e9
}

func (m *mockSource) Next() ([]Sample, error) {
	now := m.clk.Now()
	elapsed := seconds(m.clk) - m.start

	position := r3.Vector{
		X: 250 + 40*math.Sin(elapsed),
		Y: 900 + 10*math.Cos(elapsed*0.7),
		Z: -300 + 25*math.Sin(elapsed*0.4),
	}
	yaw := spatial.AxisAngle(r3.Vector{Y: 1}, 0.5*math.Sin(elapsed*0.5))
	roll := spatial.AxisAngle(r3.Vector{X: 1}, 0.2*math.Cos(elapsed*0.3))
	orientation := spatial.Compose(yaw, roll)

	tracker, err := NewSample(m.trackerID, position, orientation, now)
	if err != nil {
		return nil, err
	}
	tip := position.Add(spatial.Rotate(orientation, MockStylusOffset))
	stylus, err := NewSample(m.stylusID, tip, orientation, now)
	if err != nil {
		return nil, err
	}
	return []Sample{tracker, stylus}, nil
}
