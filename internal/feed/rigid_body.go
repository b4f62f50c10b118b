// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package feed

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"

	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/spatial"
)

var (
	ErrIncomplete = errors.New("incomplete rigid body message")
	ErrIDMismatch = errors.New("rigid body id does not match topic")
)

// RigidBody is one rigid body delivered by the streaming client, as
// published on MQTT by the mocap bridge. ID is optional on the wire; the
// topic carries it too.
type RigidBody struct {
	ID       *int      `json:"id,omitempty"`
	Position []float64 `json:"position"` // feed units, metres for NatNet
	Rotation []float64 `json:"rotation"` // x, y, z, w
	// Timestamp is Unix nanoseconds; zero means "use the receive time".
	Timestamp int64 `json:"timestamp_ns,omitempty"`
}

// ResolveID reconciles the payload id with the id in topic. A payload
// without an id takes the topic's; when both are present they must agree.
func (rb *RigidBody) ResolveID(topic string) error {
	id, err := IDFromTopic(topic)
	switch {
	case rb.ID == nil && err != nil:
		return err
	case rb.ID == nil:
		rb.ID = &id
	case err == nil && *rb.ID != id:
		return fmt.Errorf("%w: payload %d, topic %q", ErrIDMismatch, *rb.ID, topic)
	}
	return nil
}

// Validate reports ErrIncomplete unless the message has an id, three
// position components and four rotation components.
func (rb RigidBody) Validate() error {
	switch {
	case rb.ID == nil:
		return fmt.Errorf("%w: no id", ErrIncomplete)
	case len(rb.Position) != 3:
		return fmt.Errorf("%w: position has %d components, want 3", ErrIncomplete, len(rb.Position))
	case len(rb.Rotation) != 4:
		return fmt.Errorf("%w: rotation has %d components, want 4", ErrIncomplete, len(rb.Rotation))
	}
	return nil
}

// Sample converts the message into a pose.Sample. scale converts feed units
// to millimetres; received stands in for a missing timestamp.
func (rb RigidBody) Sample(scale float64, received time.Time) (pose.Sample, error) {
	if err := rb.Validate(); err != nil {
		return pose.Sample{}, err
	}
	ts := received
	if rb.Timestamp != 0 {
		ts = time.Unix(0, rb.Timestamp)
	}
	pos := r3.Vector{X: rb.Position[0], Y: rb.Position[1], Z: rb.Position[2]}.Mul(scale)
	q := spatial.Quat(rb.Rotation[0], rb.Rotation[1], rb.Rotation[2], rb.Rotation[3])
	return pose.NewSample(*rb.ID, pos, q, ts)
}

// FromSample is the inverse of Sample, used by the mock producer.
func FromSample(s pose.Sample, scale float64) RigidBody {
	p := s.Position.Mul(1 / scale)
	id := s.ID
	q := spatial.XYZW(s.Orientation)
	return RigidBody{
		ID:        &id,
		Position:  []float64{p.X, p.Y, p.Z},
		Rotation:  q[:],
		Timestamp: s.Timestamp.UnixNano(),
	}
}

// Topic is where rigid body id is published under prefix.
func Topic(prefix string, id int) string {
	return strings.TrimRight(prefix, "/") + "/" + strconv.Itoa(id)
}

// Wildcard subscribes to every rigid body under prefix.
func Wildcard(prefix string) string {
	return strings.TrimRight(prefix, "/") + "/+"
}

// IDFromTopic parses the rigid body id from the last topic level.
func IDFromTopic(topic string) (int, error) {
	i := strings.LastIndexByte(topic, '/')
	id, err := strconv.Atoi(topic[i+1:])
	if err != nil {
		return 0, fmt.Errorf("topic %q: no rigid body id: %w", topic, err)
	}
	return id, nil
}
