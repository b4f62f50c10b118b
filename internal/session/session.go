// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session ties the pose stream to the user's commands. The stream
// writes into a latest-sample cache; commands read the cache, the active
// reference frame, the mapped point table and the connection monitor.
//
// The reference frame is swapped atomically: a command that started with the
// old frame finishes with it, and the next command sees the new one.
package session

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/rigid_body_tracker/internal/mapping"
	"github.com/relabs-tech/rigid_body_tracker/internal/monitor"
	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/store"
	"github.com/relabs-tech/rigid_body_tracker/internal/transform"
)

var (
	ErrNoTrackerData     = errors.New("no femur tracker data received")
	ErrNoStylusReference = errors.New("reference was captured without the stylus")
	ErrNoTable           = errors.New("no mapped point table loaded")
)

// Options wires a Session. Monitor, Store and Clock default when nil.
type Options struct {
	TrackerID int
	StylusID  int
	Table     *mapping.Table
	Monitor   *monitor.Monitor
	Store     *store.Store
	Clock     clock.Clock
}

type Session struct {
	trackerID int
	stylusID  int
	table     *mapping.Table
	mon       *monitor.Monitor
	store     *store.Store
	clk       clock.Clock

	cache *pose.Cache
	ref   atomic.Pointer[pose.Frame]
}

func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Monitor == nil {
		opts.Monitor = monitor.New(monitor.Options{Clock: opts.Clock})
	}
	if opts.Store == nil {
		opts.Store = store.New()
	}
	return &Session{
		trackerID: opts.TrackerID,
		stylusID:  opts.StylusID,
		table:     opts.Table,
		mon:       opts.Monitor,
		store:     opts.Store,
		clk:       opts.Clock,
		cache:     pose.NewCache(),
	}
}

// Snapshot is the latest tracker and stylus samples at one instant.
type Snapshot struct {
	Tracker *pose.Sample   `json:"tracker,omitempty"`
	Stylus  *pose.Sample   `json:"stylus,omitempty"`
	Status  monitor.Status `json:"-"`
	Time    time.Time      `json:"time"`
}

// PointResult is a calculated position with the inputs it was derived from.
type PointResult struct {
	Label string `json:"label"`
	Kind  string `json:"kind"`
	transform.Result
	Tracker pose.Sample `json:"tracker"`
	// Stylus is the measured stylus at calculation time, if there was one.
	Stylus *pose.Sample   `json:"stylus,omitempty"`
	Status monitor.Status `json:"-"`
	Time   time.Time      `json:"time"`
}

// StylusResult adds the comparison with the measured stylus.
type StylusResult struct {
	PointResult
	Error *transform.ErrorAnalysis `json:"error,omitempty"`
}

// PairResult is one L/M plane at the current tracker pose.
type PairResult struct {
	Index int         `json:"index"`
	L     PointResult `json:"l"`
	M     PointResult `json:"m"`
}

// HandleSample is the streaming callback: it replaces the cached sample and
// feeds the monitor. It never blocks on command work.
func (s *Session) HandleSample(smp pose.Sample) {
	s.cache.Put(smp)
	s.mon.Observe(smp.ID)
}

func (s *Session) Monitor() *monitor.Monitor { return s.mon }

func (s *Session) Table() *mapping.Table { return s.table }

func (s *Session) Status() monitor.Status { return s.mon.Status() }

func (s *Session) TrackerID() int { return s.trackerID }

func (s *Session) StylusID() int { return s.stylusID }

// Bodies lists every rigid body id the stream has delivered.
func (s *Session) Bodies() []int { return s.cache.IDs() }

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{Status: s.mon.Status(), Time: s.clk.Now()}
	if t, ok := s.cache.Latest(s.trackerID); ok {
		snap.Tracker = &t
	}
	if st, ok := s.cache.Latest(s.stylusID); ok {
		snap.Stylus = &st
	}
	return snap
}

// CaptureReference makes the current poses the new reference frame. The
// tracker is required; the stylus is captured when present.
func (s *Session) CaptureReference() (*pose.Frame, error) {
	snap := s.Snapshot()
	if snap.Tracker == nil {
		return nil, ErrNoTrackerData
	}
	f := pose.NewFrame(*snap.Tracker, snap.Stylus, snap.Time)
	s.ref.Store(f)
	return f, nil
}

// Reference returns the active frame, or nil before the first capture.
func (s *Session) Reference() *pose.Frame {
	return s.ref.Load()
}

// Delta is the tracker motion since the reference was captured.
func (s *Session) Delta() (transform.Delta, error) {
	ref := s.ref.Load()
	if ref == nil {
		return transform.Delta{}, transform.ErrReferenceMissing
	}
	tracker, ok := s.cache.Latest(s.trackerID)
	if !ok {
		return transform.Delta{}, ErrNoTrackerData
	}
	return transform.ComputeDelta(ref, tracker)
}

// UpdatedStylus carries the stylus captured with the reference along with
// the tracker's motion since then. When the stylus is currently visible the
// result includes the error against its measured position.
func (s *Session) UpdatedStylus() (StylusResult, error) {
	ref := s.ref.Load()
	if ref == nil {
		return StylusResult{}, transform.ErrReferenceMissing
	}
	if !ref.HasStylus() {
		return StylusResult{}, ErrNoStylusReference
	}
	snap := s.Snapshot()
	if snap.Tracker == nil {
		return StylusResult{}, ErrNoTrackerData
	}
	offset, err := transform.LocalOffset(ref.Tracker, ref.Stylus.Position)
	if err != nil {
		return StylusResult{}, err
	}
	res, err := transform.ApplyOffset(ref, *snap.Tracker, offset)
	if err != nil {
		return StylusResult{}, err
	}
	out := StylusResult{PointResult: PointResult{
		Label:   "stylus",
		Kind:    store.KindStylus,
		Result:  res,
		Tracker: *snap.Tracker,
		Stylus:  snap.Stylus,
		Status:  snap.Status,
		Time:    snap.Time,
	}}
	if snap.Stylus != nil {
		e := transform.PositionError(res.Position, snap.Stylus.Position)
		out.Error = &e
	}
	return out, nil
}

// MappedPoint places a table point at the current tracker pose. It does not
// need a captured reference: each entry carries its own.
func (s *Session) MappedPoint(label string) (PointResult, error) {
	if s.table == nil {
		return PointResult{}, ErrNoTable
	}
	entry, err := s.table.Lookup(label)
	if err != nil {
		return PointResult{}, err
	}
	snap := s.Snapshot()
	if snap.Tracker == nil {
		return PointResult{}, ErrNoTrackerData
	}
	return s.place(entry, snap)
}

// MappedPairs places every complete L/M pair at one tracker sample.
func (s *Session) MappedPairs() ([]PairResult, error) {
	if s.table == nil {
		return nil, ErrNoTable
	}
	snap := s.Snapshot()
	if snap.Tracker == nil {
		return nil, ErrNoTrackerData
	}
	pairs := s.table.Pairs()
	out := make([]PairResult, 0, len(pairs))
	for _, p := range pairs {
		l, err := s.place(p.L, snap)
		if err != nil {
			return nil, err
		}
		m, err := s.place(p.M, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, PairResult{Index: p.Index, L: l, M: m})
	}
	return out, nil
}

func (s *Session) place(e mapping.Entry, snap Snapshot) (PointResult, error) {
	res, err := transform.ApplyOffset(e.Frame(), *snap.Tracker, e.Offset)
	if err != nil {
		return PointResult{}, fmt.Errorf("%s: %w", e.Label, err)
	}
	return PointResult{
		Label:   e.Label,
		Kind:    store.KindMapped,
		Result:  res,
		Tracker: *snap.Tracker,
		Stylus:  snap.Stylus,
		Status:  snap.Status,
		Time:    snap.Time,
	}, nil
}

// StorePositions records the current raw tracker and stylus poses. The
// record position is the stylus tip when visible, else the tracker.
func (s *Session) StorePositions() (store.Record, error) {
	snap := s.Snapshot()
	if snap.Tracker == nil {
		return store.Record{}, ErrNoTrackerData
	}
	r := store.Record{
		Kind:      store.KindSnapshot,
		Timestamp: snap.Time,
		Position:  snap.Tracker.Position,
		Tracker:   *snap.Tracker,
		Stylus:    snap.Stylus,
	}
	if snap.Stylus != nil {
		r.Position = snap.Stylus.Position
	}
	rec := s.store.Append(r)
	return rec, nil
}

// RecordResult appends a calculated point to the store.
func (s *Session) RecordResult(p PointResult) store.Record {
	m := p.Matrix
	return s.store.Append(store.Record{
		Label:     p.Label,
		Kind:      p.Kind,
		Timestamp: p.Time,
		Position:  p.Position,
		Tracker:   p.Tracker,
		Stylus:    p.Stylus,
		Matrix:    &m,
	})
}

func (s *Session) Records() []store.Record {
	return s.store.Records()
}

// Export writes the store to a timestamped CSV in dir.
func (s *Session) Export(dir string) (string, error) {
	return s.store.ExportFile(dir, s.clk.Now())
}
