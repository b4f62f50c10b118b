// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/rigid_body_tracker/internal/config"
	"github.com/relabs-tech/rigid_body_tracker/internal/feed"
	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
)

// publisher is the part of mqtt.Client the producer loop needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// pump hands every sample from src to fn on each tick until ctx is done.
// Source errors are logged and the tick skipped.
func pump(ctx context.Context, component string, src pose.Source, ticker *clock.Ticker, fn func(pose.Sample)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		samples, err := src.Next()
		if err != nil {
			log.Printf("%s: source error: %v", component, err)
			continue
		}
		for _, s := range samples {
			fn(s)
		}
	}
}

// produce publishes one message per rigid body from src on every tick.
func produce(ctx context.Context, pub publisher, src pose.Source, ticker *clock.Ticker, prefix string, scale float64) {
	pump(ctx, "producer", src, ticker, func(s pose.Sample) {
		topic := feed.Topic(prefix, s.ID)
		if err := publishJSON(pub, topic, false, feed.FromSample(s, scale)); err != nil {
			log.Printf("producer: publish %s error: %v", topic, err)
		}
	})
}

// RunMockProducer publishes a simulated femur tracker with a stylus rigidly
// attached to it, for running the tracker without a capture system.
func RunMockProducer() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	clk := clock.New()

	client := newClient(cfg.MQTTBroker, cfg.MQTTClientIDProducer, nil, func(err error) {
		log.Printf("producer: MQTT connection lost: %v", err)
	})
	if err := connect(client, cfg.MQTTBroker); err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("producer: connected to MQTT, publishing femur %d and stylus %d under %s every %s",
		cfg.FemurID, cfg.StylusID, cfg.TopicRigidBody, cfg.ProducerPeriod())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := clk.Ticker(cfg.ProducerPeriod())
	defer ticker.Stop()
	produce(ctx, client, pose.NewMockSource(cfg.FemurID, cfg.StylusID, clk), ticker, cfg.TopicRigidBody, cfg.PositionScale)

	log.Println("producer: shutting down")
	return nil
}
