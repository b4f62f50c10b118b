// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/spatial"
)

func TestRigidBodySample(t *testing.T) {
	var rb RigidBody
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"position":[0.1,0.2,-0.3],"rotation":[0,0,0,2]}`), &rb))

	received := time.Unix(50, 0)
	s, err := rb.Sample(1000, received)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ID)
	assert.InDelta(t, 100.0, s.Position.X, 1e-9)
	assert.InDelta(t, 200.0, s.Position.Y, 1e-9)
	assert.InDelta(t, -300.0, s.Position.Z, 1e-9)
	assert.Equal(t, spatial.Identity, s.Orientation)
	assert.Equal(t, received, s.Timestamp)

	rb.Timestamp = 7
	s, err = rb.Sample(1, received)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(0, 7), s.Timestamp)

	rb.Rotation = []float64{0, 0, 0, 0}
	_, err = rb.Sample(1, received)
	assert.ErrorIs(t, err, spatial.ErrInvalidQuaternion)
}

func TestRigidBodyIncomplete(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"no position", `{"id":1,"rotation":[0,0,0,1]}`, "position has 0 components"},
		{"short position", `{"id":1,"position":[0.1,0.2],"rotation":[0,0,0,1]}`, "position has 2 components"},
		{"long position", `{"id":1,"position":[0.1,0.2,0.3,0.4],"rotation":[0,0,0,1]}`, "position has 4 components"},
		{"no rotation", `{"id":1,"position":[0.1,0.2,0.3]}`, "rotation has 0 components"},
		{"short rotation", `{"id":1,"position":[0.1,0.2,0.3],"rotation":[0,0,1]}`, "rotation has 3 components"},
		{"no id", `{"position":[0.1,0.2,0.3],"rotation":[0,0,0,1]}`, "no id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rb RigidBody
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &rb))
			_, err := rb.Sample(1000, time.Unix(1, 0))
			require.ErrorIs(t, err, ErrIncomplete)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveID(t *testing.T) {
	decode := func(payload string) RigidBody {
		var rb RigidBody
		require.NoError(t, json.Unmarshal([]byte(payload), &rb))
		return rb
	}

	rb := decode(`{"position":[0,0,0],"rotation":[0,0,0,1]}`)
	require.NoError(t, rb.ResolveID("mocap/rigid_body/4"))
	assert.Equal(t, 4, *rb.ID)

	rb = decode(`{"id":0,"position":[0,0,0],"rotation":[0,0,0,1]}`)
	require.NoError(t, rb.ResolveID("mocap/rigid_body/0"))
	assert.Equal(t, 0, *rb.ID)

	rb = decode(`{"id":0,"position":[0,0,0],"rotation":[0,0,0,1]}`)
	assert.ErrorIs(t, rb.ResolveID("mocap/rigid_body/3"), ErrIDMismatch)

	rb = decode(`{"id":2,"position":[0,0,0],"rotation":[0,0,0,1]}`)
	assert.ErrorIs(t, rb.ResolveID("mocap/rigid_body/1"), ErrIDMismatch)

	// A topic without an id defers to the payload.
	rb = decode(`{"id":2,"position":[0,0,0],"rotation":[0,0,0,1]}`)
	require.NoError(t, rb.ResolveID("mocap/femur"))
	assert.Equal(t, 2, *rb.ID)

	rb = decode(`{"position":[0,0,0],"rotation":[0,0,0,1]}`)
	assert.Error(t, rb.ResolveID("mocap/femur"))
}

func TestFromSampleRoundTrip(t *testing.T) {
	s := pose.Sample{
		ID:          2,
		Position:    r3.Vector{X: 120, Y: -5, Z: 40},
		Orientation: spatial.AxisAngle(r3.Vector{X: 1}, 0.4),
		Timestamp:   time.Unix(3, 500),
	}
	rb := FromSample(s, 1000)
	require.NotNil(t, rb.ID)
	assert.Equal(t, 2, *rb.ID)
	assert.InDelta(t, 0.12, rb.Position[0], 1e-12)

	back, err := rb.Sample(1000, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, s.Position.X, back.Position.X, 1e-9)
	assert.InDelta(t, s.Orientation.Imag, back.Orientation.Imag, 1e-12)
	assert.True(t, s.Timestamp.Equal(back.Timestamp))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "mocap/rigid_body/3", Topic("mocap/rigid_body/", 3))
	assert.Equal(t, "mocap/rigid_body/+", Wildcard("mocap/rigid_body"))

	id, err := IDFromTopic("mocap/rigid_body/12")
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	_, err = IDFromTopic("mocap/rigid_body/femur")
	assert.Error(t, err)
}
