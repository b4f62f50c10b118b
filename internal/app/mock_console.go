// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"os"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/rigid_body_tracker/internal/config"
	"github.com/relabs-tech/rigid_body_tracker/internal/monitor"
	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/session"
)

// RunMockConsole runs the command loop against the in-process mock source,
// with no broker involved. Config is optional; defaults apply without it.
func RunMockConsole() error {
	cfg := config.Get()
	if cfg == nil {
		cfg = config.Default()
	}
	clk := clock.New()

	tbl, err := loadTable("mock", cfg.MappedPointsCSV)
	if err != nil {
		return err
	}
	mon := monitor.New(monitor.Options{
		Timeout:       cfg.Timeout(),
		CheckInterval: cfg.CheckInterval(),
		Clock:         clk,
		OnChange:      statusLogger("mock"),
	})
	sess := session.New(session.Options{
		TrackerID: cfg.FemurID,
		StylusID:  cfg.StylusID,
		Table:     tbl,
		Monitor:   mon,
		Clock:     clk,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mon.Start()
	go mon.Run(ctx)

	ticker := clk.Ticker(cfg.ProducerPeriod())
	defer ticker.Stop()
	go pump(ctx, "mock", pose.NewMockSource(cfg.FemurID, cfg.StylusID, clk), ticker, sess.HandleSample)

	log.Printf("mock: femur %d and stylus %d simulated every %s", cfg.FemurID, cfg.StylusID, cfg.ProducerPeriod())
	return NewDispatcher(sess, os.Stdout, cfg.ExportDir).Run(os.Stdin)
}
