// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/spatial"
)

// Record kinds.
const (
	KindSnapshot = "snapshot" // raw tracker + stylus positions
	KindStylus   = "stylus"   // calculated stylus position
	KindMapped   = "mapped"   // calculated mapped point
)

// ErrEmpty is returned when exporting with nothing stored.
var ErrEmpty = errors.New("no data points stored")

// Record is one capture event.
type Record struct {
	ID        uuid.UUID        `json:"id"`
	Number    int              `json:"number"`
	Label     string           `json:"label"`
	Kind      string           `json:"kind"`
	Timestamp time.Time        `json:"timestamp"`
	Position  r3.Vector        `json:"position"`
	Tracker   pose.Sample      `json:"tracker"`
	Stylus    *pose.Sample     `json:"stylus,omitempty"`
	Matrix    *spatial.Matrix4 `json:"matrix,omitempty"`
}

// Store is an append-only, in-memory log of records.
type Store struct {
	mu      sync.RWMutex
	records []Record
}

func New() *Store {
	return &Store{}
}

// Append numbers the record, assigns its ID and returns the stored copy.
func (s *Store) Append(r Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Number = len(s.records) + 1
	r.ID = uuid.New()
	if r.Stylus != nil {
		st := *r.Stylus
		r.Stylus = &st
	}
	if r.Matrix != nil {
		m := *r.Matrix
		r.Matrix = &m
	}
	s.records = append(s.records, r)
	return r
}

// Records returns the log in append order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.records...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Columns is the export header, in order.
var Columns = []string{
	"Point_Number", "ID", "Label", "Kind", "Timestamp",
	"X_mm", "Y_mm", "Z_mm",
	"Femur_X_mm", "Femur_Y_mm", "Femur_Z_mm",
	"Femur_QX", "Femur_QY", "Femur_QZ", "Femur_QW",
	"Stylus_X_mm", "Stylus_Y_mm", "Stylus_Z_mm",
	"Stylus_QX", "Stylus_QY", "Stylus_QZ", "Stylus_QW",
}

// WriteCSV writes the header and one row per record. Stylus columns are
// empty for records captured without a stylus.
func (s *Store) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range s.Records() {
		row := []string{
			strconv.Itoa(r.Number),
			r.ID.String(),
			r.Label,
			r.Kind,
			r.Timestamp.Format("2006-01-02 15:04:05.000"),
		}
		row = append(row, mm(r.Position)...)
		row = append(row, mm(r.Tracker.Position)...)
		row = append(row, quatCols(r.Tracker)...)
		if r.Stylus != nil {
			row = append(row, mm(r.Stylus.Position)...)
			row = append(row, quatCols(*r.Stylus)...)
		} else {
			row = append(row, make([]string, 7)...)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFile writes the log to dir/rigid_body_data_YYYYMMDD_HHMMSS.csv.
func (s *Store) ExportFile(dir string, now time.Time) (string, error) {
	if s.Len() == 0 {
		return "", ErrEmpty
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export dir: %w", err)
	}
	path := filepath.Join(dir, "rigid_body_data_"+now.Format("20060102_150405")+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}
	if err := s.WriteCSV(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	return path, nil
}

func mm(v r3.Vector) []string {
	return []string{
		strconv.FormatFloat(v.X, 'f', 3, 64),
		strconv.FormatFloat(v.Y, 'f', 3, 64),
		strconv.FormatFloat(v.Z, 'f', 3, 64),
	}
}

func quatCols(s pose.Sample) []string {
	q := spatial.XYZW(s.Orientation)
	out := make([]string, 4)
	for i, v := range q {
		out[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return out
}
