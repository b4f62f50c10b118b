// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mapping loads the anatomically mapped reference points (L1..L10,
// M1..M10) and stores each one as a tracker-local offset.
package mapping

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/spatial"
	"github.com/relabs-tech/rigid_body_tracker/internal/transform"
)

var (
	ErrMalformedRow   = errors.New("malformed row")
	ErrDuplicateLabel = errors.New("duplicate label")
	ErrUnknownLabel   = errors.New("unknown label")
)

var labelPattern = regexp.MustCompile(`^[LM]([1-9]|10)$`)

// Entry is one mapped point. Offset is tracker-local; Reference is the
// tracker pose the point was recorded against.
type Entry struct {
	Label     string      `json:"label"`
	Offset    r3.Vector   `json:"offset"`
	Reference pose.Sample `json:"reference"`
	// Orientation is the per-point orientation recorded with the row, if
	// the source had one. It is kept for inspection only; results inherit
	// the tracker orientation.
	Orientation *quat.Number `json:"orientation,omitempty"`
}

// Frame returns the reference frame to hand to transform.ApplyOffset.
func (e Entry) Frame() *pose.Frame {
	return pose.NewFrame(e.Reference, nil, e.Reference.Timestamp)
}

// Pair is an L/M pair sharing an index; each pair spans one plane in the
// live view.
type Pair struct {
	Index int   `json:"index"`
	L     Entry `json:"l"`
	M     Entry `json:"m"`
}

// Table is read-only after Load.
type Table struct {
	entries map[string]Entry
	labels  []string
}

// NormalizeLabel trims and upper-cases a label as typed by an operator.
func NormalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

// ValidLabel reports whether label is L1..L10 or M1..M10.
func ValidLabel(label string) bool {
	return labelPattern.MatchString(label)
}

// LoadFile opens path and calls Load.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapped points %s: %w", path, err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load parses a mapped point table. Two layouts are accepted:
//
//	label,x,y,z[,ref_qx,ref_qy,ref_qz,ref_qw]
//	Point_Number,...,Femur_Pos_X_mm,...,Femur_Rot_W,...,Stylus_Pos_X_mm,...
//
// The compact layout gives the point's offset from the tracker in world axes
// plus the tracker's reference orientation; the recorded layout gives both
// world positions. Either way the offset is un-rotated into tracker-local
// coordinates here, once.
func Load(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	t := &Table{entries: make(map[string]Entry)}

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}

	var parse rowParser
	switch {
	case strings.EqualFold(strings.TrimSpace(first[0]), "Point_Number"):
		parse, err = recordedParser(first)
		if err != nil {
			return nil, err
		}
	case strings.EqualFold(strings.TrimSpace(first[0]), "label"):
		parse = compactRow
	default:
		parse = compactRow
		line, _ := cr.FieldPos(0)
		if err := t.add(parse(first), line); err != nil {
			return nil, err
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
		}
		line, _ := cr.FieldPos(0)
		if err := t.add(parse(rec), line); err != nil {
			return nil, err
		}
	}

	sort.Slice(t.labels, func(i, j int) bool { return labelLess(t.labels[i], t.labels[j]) })
	return t, nil
}

// Lookup returns the entry for label.
func (t *Table) Lookup(label string) (Entry, error) {
	e, ok := t.entries[NormalizeLabel(label)]
	if !ok {
		return Entry{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownLabel, label, strings.Join(t.labels, ", "))
	}
	return e, nil
}

// Labels lists the loaded labels, L before M, by index.
func (t *Table) Labels() []string {
	return append([]string(nil), t.labels...)
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Pairs returns the L_i/M_i pairs where both points are present.
func (t *Table) Pairs() []Pair {
	var pairs []Pair
	for i := 1; i <= 10; i++ {
		l, okL := t.entries["L"+strconv.Itoa(i)]
		m, okM := t.entries["M"+strconv.Itoa(i)]
		if okL && okM {
			pairs = append(pairs, Pair{Index: i, L: l, M: m})
		}
	}
	return pairs
}

// row is what both layouts reduce to before conversion.
type row struct {
	label       string
	offsetWorld r3.Vector
	tracker     r3.Vector
	orientation quat.Number
	hasRotation bool
	err         error
}

type rowParser func(rec []string) row

func (t *Table) add(r row, line int) error {
	if r.err != nil {
		return fmt.Errorf("line %d: %w: %v", line, ErrMalformedRow, r.err)
	}
	label := NormalizeLabel(r.label)
	if !ValidLabel(label) {
		return fmt.Errorf("line %d: %w: label %q is not L1-L10 or M1-M10", line, ErrMalformedRow, r.label)
	}
	if _, dup := t.entries[label]; dup {
		return fmt.Errorf("line %d: %w %q", line, ErrDuplicateLabel, label)
	}

	q := spatial.Identity
	if r.hasRotation {
		// Recorded orientations are unit to the exported precision; a larger
		// deviation is a damaged row, not drift.
		err := spatial.CheckUnit(r.orientation, spatial.UnitTolerance)
		if err == nil {
			q, err = spatial.Normalize(r.orientation)
		}
		if err != nil {
			return fmt.Errorf("line %d: %w: %v", line, ErrMalformedRow, err)
		}
	}
	reference := pose.Sample{Position: r.tracker, Orientation: q}
	offset, err := transform.LocalOffset(reference, r.tracker.Add(r.offsetWorld))
	if err != nil {
		return fmt.Errorf("line %d: %w: %v", line, ErrMalformedRow, err)
	}

	e := Entry{Label: label, Offset: offset, Reference: reference}
	if r.hasRotation {
		e.Orientation = &q
	}
	t.entries[label] = e
	t.labels = append(t.labels, label)
	return nil
}

func compactRow(rec []string) row {
	if len(rec) != 4 && len(rec) != 8 {
		return row{err: fmt.Errorf("want 4 or 8 fields, got %d", len(rec))}
	}
	v, err := floats(rec[1:])
	if err != nil {
		return row{err: err}
	}
	r := row{
		label:       rec[0],
		offsetWorld: r3.Vector{X: v[0], Y: v[1], Z: v[2]},
	}
	if len(v) == 7 {
		r.orientation = spatial.Quat(v[3], v[4], v[5], v[6])
		r.hasRotation = true
	}
	return r
}

var recordedColumns = []string{
	"Point_Number",
	"Femur_Pos_X_mm", "Femur_Pos_Y_mm", "Femur_Pos_Z_mm",
	"Femur_Rot_X", "Femur_Rot_Y", "Femur_Rot_Z", "Femur_Rot_W",
	"Stylus_Pos_X_mm", "Stylus_Pos_Y_mm", "Stylus_Pos_Z_mm",
}

func recordedParser(header []string) (rowParser, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	cols := make([]int, len(recordedColumns))
	for i, name := range recordedColumns {
		c, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: header is missing column %s", ErrMalformedRow, name)
		}
		cols[i] = c
	}

	return func(rec []string) row {
		fields := make([]string, len(cols)-1)
		for i, c := range cols[1:] {
			if c >= len(rec) {
				return row{err: fmt.Errorf("missing column %s", recordedColumns[i+1])}
			}
			fields[i] = rec[c]
		}
		if cols[0] >= len(rec) {
			return row{err: fmt.Errorf("missing column %s", recordedColumns[0])}
		}
		v, err := floats(fields)
		if err != nil {
			return row{err: err}
		}
		femur := r3.Vector{X: v[0], Y: v[1], Z: v[2]}
		stylus := r3.Vector{X: v[7], Y: v[8], Z: v[9]}
		return row{
			label:       rec[cols[0]],
			offsetWorld: stylus.Sub(femur),
			tracker:     femur,
			orientation: spatial.Quat(v[3], v[4], v[5], v[6]),
			hasRotation: true,
		}
	}, nil
}

func floats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return nil, errors.New("empty coordinate")
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", f)
		}
		out[i] = v
	}
	return out, nil
}

// labelLess orders L before M, then by numeric index.
func labelLess(a, b string) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	ai, _ := strconv.Atoi(a[1:])
	bi, _ := strconv.Atoi(b[1:])
	return ai < bi
}
