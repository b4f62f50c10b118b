// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package monitor classifies the liveness of the incoming pose stream from
// the arrival times of samples. It only reports; it never blocks callers or
// returns errors from status queries.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultCheckInterval = 2 * time.Second
)

// Status is the stream classification.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Stale
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Advisory errors for callers that want to surface a non-connected status.
var (
	ErrStreamStale        = errors.New("pose stream is stale")
	ErrStreamDisconnected = errors.New("pose stream is disconnected")
)

// Advisory maps a status to the error a caller may show; Connected is nil.
func Advisory(s Status) error {
	switch s {
	case Connected:
		return nil
	case Stale:
		return ErrStreamStale
	default:
		return ErrStreamDisconnected
	}
}

// Options configures a Monitor. Zero values take the defaults.
type Options struct {
	Timeout       time.Duration
	CheckInterval time.Duration
	Clock         clock.Clock
	// OnChange is called after every transition, outside the lock.
	OnChange func(from, to Status)
}

// Monitor tracks the last arrival per rigid body id.
type Monitor struct {
	timeout  time.Duration
	interval time.Duration
	clk      clock.Clock
	onChange func(from, to Status)

	mu       sync.Mutex
	status   Status
	lastSeen map[int]time.Time
	newest   time.Time
	err      error
}

func New(opts Options) *Monitor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Monitor{
		timeout:  opts.Timeout,
		interval: opts.CheckInterval,
		clk:      opts.Clock,
		onChange: opts.OnChange,
		lastSeen: make(map[int]time.Time),
	}
}

// Start marks the stream as being brought up.
func (m *Monitor) Start() {
	m.transition(func() (Status, bool) {
		if m.status != Disconnected {
			return m.status, false
		}
		m.err = nil
		return Connecting, true
	})
}

// Observe records an arrival for id at the monitor's clock. The arrival time
// is the local receive time, not the sample's own timestamp, so a server
// clock offset cannot make a live stream look stale.
func (m *Monitor) Observe(id int) {
	now := m.clk.Now()
	m.transition(func() (Status, bool) {
		m.lastSeen[id] = now
		if now.After(m.newest) {
			m.newest = now
		}
		switch m.status {
		case Connecting, Stale:
			return Connected, true
		}
		return m.status, false
	})
}

// Check moves Connected to Stale once no id has been seen for longer than
// the timeout.
func (m *Monitor) Check() Status {
	now := m.clk.Now()
	var st Status
	m.transition(func() (Status, bool) {
		st = m.status
		if m.status == Connected && now.Sub(m.newest) > m.timeout {
			st = Stale
			return Stale, true
		}
		return m.status, false
	})
	return st
}

// Stop is an explicit teardown.
func (m *Monitor) Stop() {
	m.transition(func() (Status, bool) {
		return Disconnected, m.status != Disconnected
	})
}

// Fail records a stream-level error reported by the streaming client.
func (m *Monitor) Fail(err error) {
	m.transition(func() (Status, bool) {
		m.err = err
		return Disconnected, m.status != Disconnected
	})
}

// Run calls Check every CheckInterval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clk.Ticker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastSeen returns when id last delivered a sample.
func (m *Monitor) LastSeen(id int) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.lastSeen[id]
	return ts, ok
}

// SinceLast is the time since any id delivered a sample; ok is false before
// the first sample.
func (m *Monitor) SinceLast() (time.Duration, bool) {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.newest.IsZero() {
		return 0, false
	}
	return now.Sub(m.newest), true
}

// Err is the last stream error passed to Fail, cleared by Start.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

func (m *Monitor) transition(fn func() (Status, bool)) {
	m.mu.Lock()
	from := m.status
	to, changed := fn()
	m.status = to
	m.mu.Unlock()

	if changed && m.onChange != nil {
		m.onChange(from, to)
	}
}
