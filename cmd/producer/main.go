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

	log.Println("starting rigid-body-tracker mock producer")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunMockProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
