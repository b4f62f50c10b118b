// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/rigid_body_tracker/internal/config"
	"github.com/relabs-tech/rigid_body_tracker/internal/feed"
	"github.com/relabs-tech/rigid_body_tracker/internal/mapping"
	"github.com/relabs-tech/rigid_body_tracker/internal/monitor"
	"github.com/relabs-tech/rigid_body_tracker/internal/session"
)

// loadTable loads the mapped point table. A missing file is not fatal: the
// tracker still runs, only p is unavailable.
func loadTable(component, path string) (*mapping.Table, error) {
	tbl, err := mapping.LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("%s: no mapped point table at %s, p is disabled", component, path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Printf("%s: loaded %d mapped points from %s", component, tbl.Len(), path)
	return tbl, nil
}

// statusLogger logs connection transitions the way an operator reads them.
func statusLogger(component string) func(from, to monitor.Status) {
	return func(from, to monitor.Status) {
		switch {
		case to == monitor.Stale:
			log.Printf("%s: connection lost: no data for the timeout period", component)
		case to == monitor.Connected && from == monitor.Stale:
			log.Printf("%s: connection restored", component)
		default:
			log.Printf("%s: stream %s -> %s", component, from, to)
		}
	}
}

// RunTracker subscribes to the rigid body feed and runs the interactive
// command loop on stdin until q, end of input or a signal.
func RunTracker() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	clk := clock.New()

	tbl, err := loadTable("tracker", cfg.MappedPointsCSV)
	if err != nil {
		return err
	}

	var (
		client mqtt.Client
		mon    *monitor.Monitor
	)
	logChange := statusLogger("tracker")
	mon = monitor.New(monitor.Options{
		Timeout:       cfg.Timeout(),
		CheckInterval: cfg.CheckInterval(),
		Clock:         clk,
		OnChange: func(from, to monitor.Status) {
			logChange(from, to)
			if cfg.TopicStreamStatus == "" || client == nil || !client.IsConnected() {
				return
			}
			st := toFeedStatus(to, mon.Err(), clk.Now())
			// OnChange can run inside a message handler, which must not wait
			// on a publish token.
			go func() {
				if err := publishJSON(client, cfg.TopicStreamStatus, true, st); err != nil {
					log.Printf("tracker: status publish error: %v", err)
				}
			}()
		},
	})

	sess := session.New(session.Options{
		TrackerID: cfg.FemurID,
		StylusID:  cfg.StylusID,
		Table:     tbl,
		Monitor:   mon,
		Clock:     clk,
	})

	topic := feed.Wildcard(cfg.TopicRigidBody)
	handler := rigidBodyHandler("tracker", sess, cfg.PositionScale, clk)
	client = newClient(cfg.MQTTBroker, cfg.MQTTClientIDTracker,
		func(c mqtt.Client) {
			mon.Start()
			if err := subscribe(c, topic, handler); err != nil {
				log.Printf("tracker: %v", err)
				mon.Fail(err)
				return
			}
			log.Printf("tracker: subscribed to %s", topic)
		},
		func(err error) {
			log.Printf("tracker: MQTT connection lost: %v", err)
			mon.Fail(err)
		},
	)
	if err := connect(client, cfg.MQTTBroker); err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("tracker: connected to MQTT broker at %s", cfg.MQTTBroker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	d := NewDispatcher(sess, os.Stdout, cfg.ExportDir)
	if cfg.TopicMappedPoint != "" {
		d.OnResult = func(p session.PointResult) {
			if err := publishJSON(client, cfg.TopicMappedPoint, false, toFeedResult(p)); err != nil {
				log.Printf("tracker: result publish error: %v", err)
			}
		}
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(os.Stdin) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-done:
	case <-sigCh:
	}

	log.Println("tracker: shutting down")
	mon.Stop()
	return err
}
