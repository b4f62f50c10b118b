// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/rigid_body_tracker/internal/mapping"
	"github.com/relabs-tech/rigid_body_tracker/internal/monitor"
	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/spatial"
	"github.com/relabs-tech/rigid_body_tracker/internal/store"
	"github.com/relabs-tech/rigid_body_tracker/internal/transform"
)

const (
	femurID  = 1
	stylusID = 2
)

var zAxis = r3.Vector{Z: 1}

func newSession(t *testing.T, table *mapping.Table) (*Session, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	mon := monitor.New(monitor.Options{Clock: clk})
	mon.Start()
	return New(Options{
		TrackerID: femurID,
		StylusID:  stylusID,
		Table:     table,
		Monitor:   mon,
		Clock:     clk,
	}), clk
}

func sample(id int, pos r3.Vector, q quat.Number) pose.Sample {
	return pose.Sample{ID: id, Position: pos, Orientation: q}
}

func assertVec(t *testing.T, want, got r3.Vector) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-9, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-9, "z")
}

func TestHandleSampleConnects(t *testing.T) {
	s, _ := newSession(t, nil)
	assert.Equal(t, monitor.Connecting, s.Status())

	s.HandleSample(sample(femurID, r3.Vector{X: 1}, spatial.Identity))
	assert.Equal(t, monitor.Connected, s.Status())

	snap := s.Snapshot()
	require.NotNil(t, snap.Tracker)
	assert.Nil(t, snap.Stylus)
	assert.Equal(t, 1.0, snap.Tracker.Position.X)
}

func TestCaptureReference(t *testing.T) {
	s, clk := newSession(t, nil)

	_, err := s.CaptureReference()
	assert.ErrorIs(t, err, ErrNoTrackerData)
	assert.Nil(t, s.Reference())

	s.HandleSample(sample(femurID, r3.Vector{X: 1}, spatial.Identity))
	first, err := s.CaptureReference()
	require.NoError(t, err)
	assert.False(t, first.HasStylus())
	assert.Same(t, first, s.Reference())
	assert.Equal(t, clk.Now(), first.Captured)

	s.HandleSample(sample(femurID, r3.Vector{X: 2}, spatial.Identity))
	s.HandleSample(sample(stylusID, r3.Vector{Y: 5}, spatial.Identity))
	second, err := s.CaptureReference()
	require.NoError(t, err)
	assert.True(t, second.HasStylus())
	assert.Same(t, second, s.Reference())

	// The replaced frame is untouched.
	assert.Equal(t, 1.0, first.Tracker.Position.X)
	assert.Nil(t, first.Stylus)
}

func TestUpdatedStylus(t *testing.T) {
	s, _ := newSession(t, nil)

	_, err := s.UpdatedStylus()
	assert.ErrorIs(t, err, transform.ErrReferenceMissing)

	s.HandleSample(sample(femurID, r3.Vector{}, spatial.Identity))
	_, err = s.CaptureReference()
	require.NoError(t, err)
	_, err = s.UpdatedStylus()
	assert.ErrorIs(t, err, ErrNoStylusReference)

	s.HandleSample(sample(stylusID, r3.Vector{X: 100, Z: 50}, spatial.Identity))
	_, err = s.CaptureReference()
	require.NoError(t, err)

	// Tracker turns 90° about Z and moves 10 mm along X.
	s.HandleSample(sample(femurID, r3.Vector{X: 10}, spatial.AxisAngle(zAxis, math.Pi/2)))
	s.HandleSample(sample(stylusID, r3.Vector{X: 10, Y: 101, Z: 50}, spatial.Identity))

	res, err := s.UpdatedStylus()
	require.NoError(t, err)
	assertVec(t, r3.Vector{X: 10, Y: 100, Z: 50}, res.Position)
	assertVec(t, res.Position, res.Matrix.Translation())
	assert.True(t, spatial.IsRigid(res.Matrix, 1e-9))
	assert.Equal(t, monitor.Connected, res.Status)
	assert.Equal(t, store.KindStylus, res.Kind)

	require.NotNil(t, res.Error)
	assert.InDelta(t, 0, res.Error.X, 1e-9)
	assert.InDelta(t, 1, res.Error.Y, 1e-9)
	assert.InDelta(t, 1, res.Error.Magnitude, 1e-9)
}

func TestDelta(t *testing.T) {
	s, _ := newSession(t, nil)
	_, err := s.Delta()
	assert.ErrorIs(t, err, transform.ErrReferenceMissing)

	s.HandleSample(sample(femurID, r3.Vector{X: 5}, spatial.Identity))
	_, err = s.CaptureReference()
	require.NoError(t, err)

	d, err := s.Delta()
	require.NoError(t, err)
	assertVec(t, r3.Vector{}, d.Translation)
	assert.InDelta(t, 1, d.Rotation.Real, 1e-12)

	s.HandleSample(sample(femurID, r3.Vector{X: 5, Y: 3}, spatial.Identity))
	d, err = s.Delta()
	require.NoError(t, err)
	assertVec(t, r3.Vector{Y: 3}, d.Translation)
}

const tableCSV = `label,x,y,z
L1,100,0,50
M1,-100,0,50
L2,0,30,0
`

func loadTable(t *testing.T) *mapping.Table {
	t.Helper()
	tbl, err := mapping.Load(strings.NewReader(tableCSV))
	require.NoError(t, err)
	return tbl
}

func TestMappedPoint(t *testing.T) {
	t.Run("no table", func(t *testing.T) {
		s, _ := newSession(t, nil)
		_, err := s.MappedPoint("L1")
		assert.ErrorIs(t, err, ErrNoTable)
	})

	s, _ := newSession(t, loadTable(t))

	_, err := s.MappedPoint("L1")
	assert.ErrorIs(t, err, ErrNoTrackerData)

	s.HandleSample(sample(femurID, r3.Vector{X: 10}, spatial.AxisAngle(zAxis, math.Pi/2)))

	res, err := s.MappedPoint("l1")
	require.NoError(t, err)
	assert.Equal(t, "L1", res.Label)
	assertVec(t, r3.Vector{X: 10, Y: 100, Z: 50}, res.Position)
	assert.True(t, spatial.IsRigid(res.Matrix, 1e-9))

	_, err = s.MappedPoint("L9")
	assert.ErrorIs(t, err, mapping.ErrUnknownLabel)
}

func TestMappedPairs(t *testing.T) {
	s, _ := newSession(t, loadTable(t))
	s.HandleSample(sample(femurID, r3.Vector{}, spatial.Identity))

	pairs, err := s.MappedPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 1, pairs[0].Index)
	assertVec(t, r3.Vector{X: 100, Z: 50}, pairs[0].L.Position)
	assertVec(t, r3.Vector{X: -100, Z: 50}, pairs[0].M.Position)
	assert.Equal(t, pairs[0].L.Time, pairs[0].M.Time)
}

func TestStoreAndExport(t *testing.T) {
	s, clk := newSession(t, loadTable(t))

	_, err := s.StorePositions()
	assert.ErrorIs(t, err, ErrNoTrackerData)

	s.HandleSample(sample(femurID, r3.Vector{X: 1}, spatial.Identity))
	rec, err := s.StorePositions()
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Number)
	assert.Equal(t, 1.0, rec.Position.X)
	assert.Nil(t, rec.Stylus)

	s.HandleSample(sample(stylusID, r3.Vector{Y: 7}, spatial.Identity))
	rec, err = s.StorePositions()
	require.NoError(t, err)
	assert.Equal(t, 7.0, rec.Position.Y)
	require.NotNil(t, rec.Stylus)

	res, err := s.MappedPoint("L2")
	require.NoError(t, err)
	rec = s.RecordResult(res)
	assert.Equal(t, 3, rec.Number)
	assert.Equal(t, store.KindMapped, rec.Kind)
	require.NotNil(t, rec.Matrix)

	require.Len(t, s.Records(), 3)

	clk.Add(time.Hour)
	path, err := s.Export(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "rigid_body_data_"+clk.Now().Format("20060102_150405")+".csv", filepath.Base(path))
}

func TestExportEmpty(t *testing.T) {
	s, _ := newSession(t, nil)
	_, err := s.Export(t.TempDir())
	assert.ErrorIs(t, err, store.ErrEmpty)
}

func TestStaleStatusFlowsIntoResults(t *testing.T) {
	s, clk := newSession(t, loadTable(t))
	s.HandleSample(sample(femurID, r3.Vector{}, spatial.Identity))

	clk.Add(monitor.DefaultTimeout + time.Second)
	s.Monitor().Check()

	res, err := s.MappedPoint("L1")
	require.NoError(t, err)
	assert.Equal(t, monitor.Stale, res.Status)
	assert.ErrorIs(t, monitor.Advisory(res.Status), monitor.ErrStreamStale)
}

func TestConcurrentCaptureAndRead(t *testing.T) {
	s, _ := newSession(t, loadTable(t))
	s.HandleSample(sample(femurID, r3.Vector{}, spatial.Identity))
	s.HandleSample(sample(stylusID, r3.Vector{X: 1}, spatial.Identity))
	_, err := s.CaptureReference()
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.HandleSample(sample(femurID, r3.Vector{X: float64(i)}, spatial.Identity))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = s.CaptureReference()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			res, err := s.UpdatedStylus()
			if assert.NoError(t, err) {
				assert.True(t, spatial.IsRigid(res.Matrix, 1e-9))
			}
		}
	}()
	wg.Wait()
}
