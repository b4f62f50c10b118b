// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"os"

	"github.com/relabs-tech/rigid_body_tracker/internal/app"
	"github.com/relabs-tech/rigid_body_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "tracker_config.txt", "path to the KEY=VALUE config file (optional)")
	flag.Parse()

	log.Println("starting rigid-body-tracker (mock console)")

	if _, err := os.Stat(*configPath); err == nil {
		if err := config.InitGlobal(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	if err := app.RunMockConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
