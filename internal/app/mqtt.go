// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/rigid_body_tracker/internal/feed"
	"github.com/relabs-tech/rigid_body_tracker/internal/monitor"
	"github.com/relabs-tech/rigid_body_tracker/internal/pose"
	"github.com/relabs-tech/rigid_body_tracker/internal/session"
)

// newClient builds an MQTT client that reconnects on its own. onConnect runs
// after every (re)connect and is where subscriptions belong; onLost runs when
// an established connection drops. Either may be nil.
func newClient(broker, clientID string, onConnect func(mqtt.Client), onLost func(error)) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)
	if onConnect != nil {
		opts.SetOnConnectHandler(onConnect)
	}
	if onLost != nil {
		opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) { onLost(err) })
	}
	return mqtt.NewClient(opts)
}

func connect(client mqtt.Client, broker string) error {
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect %s: %w", broker, token.Error())
	}
	return nil
}

func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// sampleSink is where decoded rigid body samples go.
type sampleSink interface {
	HandleSample(pose.Sample)
}

// rigidBodyHandler decodes rigid body messages into sink. Positions are
// scaled to millimetres; a message without a timestamp gets the receive time.
// Malformed or incomplete messages, and messages whose id disagrees with the
// topic, are logged and dropped.
func rigidBodyHandler(component string, sink sampleSink, scale float64, clk clock.Clock) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var rb feed.RigidBody
		if err := json.Unmarshal(msg.Payload(), &rb); err != nil {
			log.Printf("%s: rigid body unmarshal error on %s: %v", component, msg.Topic(), err)
			return
		}
		if err := rb.ResolveID(msg.Topic()); err != nil {
			log.Printf("%s: dropping sample: %v", component, err)
			return
		}
		s, err := rb.Sample(scale, clk.Now())
		if err != nil {
			log.Printf("%s: dropping sample: %v", component, err)
			return
		}
		sink.HandleSample(s)
	}
}

func publishJSON(pub publisher, topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := pub.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

func toFeedResult(p session.PointResult) feed.PointResult {
	return feed.PointResult{
		Label:    p.Label,
		Position: [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Matrix:   p.Matrix.Rows(),
		Status:   p.Status.String(),
		Time:     p.Time,
	}
}

func toFeedStatus(to monitor.Status, err error, now time.Time) feed.StreamStatus {
	st := feed.StreamStatus{Status: to.String(), Time: now}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}
