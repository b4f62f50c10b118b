package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/rigid_body_tracker/internal/app"
	"github.com/relabs-tech/rigid_body_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "tracker_config.txt", "path to the KEY=VALUE config file")
	flag.Parse()

	log.Println("starting rigid-body-tracker console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
