// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/relabs-tech/rigid_body_tracker/internal/monitor"
	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/session"
	"github.com/relabs-tech/rigid_body_tracker/internal/spatial"
	"github.com/relabs-tech/rigid_body_tracker/internal/transform"
)

const helpText = `commands:
  c          show current femur and stylus positions
  s          store current positions
  l          list stored data points
  e          export stored data points to CSV
  r          capture femur (and stylus) as the reference
  u          updated stylus position from the reference
  d          femur motion since the reference
  t          test the connection to the pose stream
  p <label>  calculate a mapped point (L1-L10, M1-M10)
  m          list mapped point labels
  h          help
  q          quit`

// Dispatcher reads single-letter commands and prints their results. A failed
// command prints its error and the loop carries on.
type Dispatcher struct {
	sess      *session.Session
	out       io.Writer
	exportDir string
	// OnResult, if set, receives every calculated point (for publishing).
	OnResult func(session.PointResult)
}

func NewDispatcher(sess *session.Session, out io.Writer, exportDir string) *Dispatcher {
	return &Dispatcher{sess: sess, out: out, exportDir: exportDir}
}

// Run reads commands from in until q or end of input.
func (d *Dispatcher) Run(in io.Reader) error {
	fmt.Fprintln(d.out, helpText)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(d.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(d.out)
			return sc.Err()
		}
		if quit := d.Execute(sc.Text()); quit {
			return nil
		}
	}
}

// Execute runs one command line and reports whether it asked to quit.
func (d *Dispatcher) Execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "q", "quit", "exit":
		fmt.Fprintln(d.out, "bye")
		return true
	case "h", "help", "?":
		fmt.Fprintln(d.out, helpText)
	case "c":
		d.warnIfNotLive()
		d.current()
	case "s":
		d.warnIfNotLive()
		err = d.store()
	case "l":
		d.list()
	case "e":
		err = d.export()
	case "r":
		d.warnIfNotLive()
		err = d.capture()
	case "u":
		d.warnIfNotLive()
		err = d.updatedStylus()
	case "d":
		d.warnIfNotLive()
		err = d.delta()
	case "t":
		d.connection()
	case "p":
		if len(args) != 1 {
			err = fmt.Errorf("usage: p <label>")
			break
		}
		d.warnIfNotLive()
		err = d.mappedPoint(args[0])
	case "m":
		d.labels()
	default:
		err = fmt.Errorf("unknown command %q, h for help", fields[0])
	}
	if err != nil {
		fmt.Fprintf(d.out, "error: %v\n", err)
	}
	return false
}

func (d *Dispatcher) warnIfNotLive() {
	if err := monitor.Advisory(d.sess.Status()); err != nil {
		fmt.Fprintf(d.out, "warning: %v, data may be out of date\n", err)
	}
}

func (d *Dispatcher) current() {
	snap := d.sess.Snapshot()
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Body", "ID", "X (mm)", "Y (mm)", "Z (mm)", "QX", "QY", "QZ", "QW"})
	t.AppendRow(poseRow("femur", d.sess.TrackerID(), snap.Tracker))
	t.AppendRow(poseRow("stylus", d.sess.StylusID(), snap.Stylus))
	fmt.Fprintln(d.out, t.Render())
	fmt.Fprintf(d.out, "stream: %s\n", snap.Status)
}

func poseRow(name string, id int, s *pose.Sample) table.Row {
	if s == nil {
		return table.Row{name, id, "-", "-", "-", "-", "-", "-", "-"}
	}
	q := spatial.XYZW(s.Orientation)
	return table.Row{
		name, id,
		fmt.Sprintf("%.3f", s.Position.X),
		fmt.Sprintf("%.3f", s.Position.Y),
		fmt.Sprintf("%.3f", s.Position.Z),
		fmt.Sprintf("%.6f", q[0]),
		fmt.Sprintf("%.6f", q[1]),
		fmt.Sprintf("%.6f", q[2]),
		fmt.Sprintf("%.6f", q[3]),
	}
}

func (d *Dispatcher) store() error {
	rec, err := d.sess.StorePositions()
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "stored data point #%d at (%.3f, %.3f, %.3f)\n",
		rec.Number, rec.Position.X, rec.Position.Y, rec.Position.Z)
	return nil
}

func (d *Dispatcher) list() {
	recs := d.sess.Records()
	if len(recs) == 0 {
		fmt.Fprintln(d.out, "no data points stored")
		return
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Kind", "Label", "Time", "X (mm)", "Y (mm)", "Z (mm)", "Stylus"})
	for _, r := range recs {
		stylus := "no"
		if r.Stylus != nil {
			stylus = "yes"
		}
		t.AppendRow(table.Row{
			r.Number, r.Kind, r.Label, r.Timestamp.Format("15:04:05.000"),
			fmt.Sprintf("%.3f", r.Position.X),
			fmt.Sprintf("%.3f", r.Position.Y),
			fmt.Sprintf("%.3f", r.Position.Z),
			stylus,
		})
	}
	fmt.Fprintln(d.out, t.Render())
}

func (d *Dispatcher) export() error {
	path, err := d.sess.Export(d.exportDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "exported %d data points to %s\n", len(d.sess.Records()), path)
	return nil
}

func (d *Dispatcher) capture() error {
	f, err := d.sess.CaptureReference()
	if err != nil {
		return err
	}
	p := f.Tracker.Position
	fmt.Fprintf(d.out, "reference captured: femur at (%.3f, %.3f, %.3f)\n", p.X, p.Y, p.Z)
	if f.HasStylus() {
		s := f.Stylus.Position
		fmt.Fprintf(d.out, "                    stylus at (%.3f, %.3f, %.3f)\n", s.X, s.Y, s.Z)
	} else {
		fmt.Fprintln(d.out, "stylus not visible, u is unavailable until the next capture")
	}
	return nil
}

func (d *Dispatcher) updatedStylus() error {
	res, err := d.sess.UpdatedStylus()
	if err != nil {
		return err
	}
	d.printPoint(res.PointResult)
	if res.Error != nil {
		e := res.Error
		fmt.Fprintf(d.out, "error vs measured stylus: x=%.3f y=%.3f z=%.3f |e|=%.3f mm\n", e.X, e.Y, e.Z, e.Magnitude)
	} else {
		fmt.Fprintln(d.out, "stylus not visible, no error analysis")
	}
	d.sess.RecordResult(res.PointResult)
	d.emit(res.PointResult)
	return nil
}

func (d *Dispatcher) delta() error {
	dl, err := d.sess.Delta()
	if err != nil {
		return err
	}
	q := spatial.XYZW(dl.Rotation)
	fmt.Fprintf(d.out, "since reference captured at %s\n", d.sess.Reference().Captured.Format("15:04:05.000"))
	fmt.Fprintf(d.out, "translation: (%.3f, %.3f, %.3f) mm\n", dl.Translation.X, dl.Translation.Y, dl.Translation.Z)
	fmt.Fprintf(d.out, "rotation:    x=%.6f y=%.6f z=%.6f w=%.6f\n", q[0], q[1], q[2], q[3])
	return nil
}

// connection reports stream health: the monitor state, when each tracked
// body was last seen, and the last stream error.
func (d *Dispatcher) connection() {
	mon := d.sess.Monitor()
	now := d.sess.Snapshot().Time
	fmt.Fprintf(d.out, "stream: %s\n", mon.Status())

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Body", "ID", "Last sample", "Age"})
	for _, b := range []struct {
		name string
		id   int
	}{{"femur", d.sess.TrackerID()}, {"stylus", d.sess.StylusID()}} {
		seen, ok := mon.LastSeen(b.id)
		if !ok {
			t.AppendRow(table.Row{b.name, b.id, "never", "-"})
			continue
		}
		t.AppendRow(table.Row{b.name, b.id, seen.Format("15:04:05.000"), now.Sub(seen).String()})
	}
	fmt.Fprintln(d.out, t.Render())

	if since, ok := mon.SinceLast(); ok {
		verdict := "ok"
		if since > mon.Timeout() {
			verdict = "timed out"
		}
		fmt.Fprintf(d.out, "last sample %s ago (timeout %s): %s\n", since, mon.Timeout(), verdict)
	} else {
		fmt.Fprintf(d.out, "no samples received (timeout %s)\n", mon.Timeout())
	}
	if ids := d.sess.Bodies(); len(ids) > 0 {
		fmt.Fprintf(d.out, "bodies seen: %s\n", strings.Trim(fmt.Sprint(ids), "[]"))
	}
	if err := mon.Err(); err != nil {
		fmt.Fprintf(d.out, "last error: %v\n", err)
	}
}

func (d *Dispatcher) mappedPoint(label string) error {
	res, err := d.sess.MappedPoint(label)
	if err != nil {
		return err
	}
	d.printPoint(res)
	d.sess.RecordResult(res)
	d.emit(res)
	return nil
}

func (d *Dispatcher) labels() {
	tbl := d.sess.Table()
	if tbl == nil || tbl.Len() == 0 {
		fmt.Fprintln(d.out, "no mapped points loaded")
		return
	}
	fmt.Fprintf(d.out, "mapped points: %s\n", strings.Join(tbl.Labels(), ", "))
}

func (d *Dispatcher) printPoint(p session.PointResult) {
	fmt.Fprintf(d.out, "%s position: (%.3f, %.3f, %.3f) mm\n", p.Label, p.Position.X, p.Position.Y, p.Position.Z)
	fmt.Fprintln(d.out, matrixTable(p.Result))
}

func matrixTable(r transform.Result) string {
	t := table.NewWriter()
	for _, row := range r.Matrix.Rows() {
		cells := make(table.Row, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%10.4f", v)
		}
		t.AppendRow(cells)
	}
	return t.Render()
}

func (d *Dispatcher) emit(p session.PointResult) {
	if d.OnResult != nil {
		d.OnResult(p)
	}
}
