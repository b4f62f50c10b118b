package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/rigid_body_tracker/internal/config"
	"github.com/relabs-tech/rigid_body_tracker/internal/feed"
)

func printRigidBody(out io.Writer, payload []byte) error {
	var rb feed.RigidBody
	if err := json.Unmarshal(payload, &rb); err != nil {
		return err
	}
	if err := rb.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(out,
		"[RB %2d]  x=%9.4f y=%9.4f z=%9.4f  qx=%7.4f qy=%7.4f qz=%7.4f qw=%7.4f\n",
		*rb.ID, rb.Position[0], rb.Position[1], rb.Position[2],
		rb.Rotation[0], rb.Rotation[1], rb.Rotation[2], rb.Rotation[3],
	)
	return nil
}

func printStreamStatus(out io.Writer, payload []byte) error {
	var st feed.StreamStatus
	if err := json.Unmarshal(payload, &st); err != nil {
		return err
	}
	line := fmt.Sprintf("[STAT]   %s at %s", st.Status, st.Time.Format("15:04:05.000"))
	if st.Error != "" {
		line += " (" + st.Error + ")"
	}
	fmt.Fprintln(out, line)
	return nil
}

func printPointResult(out io.Writer, payload []byte) error {
	var p feed.PointResult
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	fmt.Fprintf(out,
		"[PT %-3s] x=%9.3f y=%9.3f z=%9.3f mm  stream=%s\n",
		p.Label, p.Position[0], p.Position[1], p.Position[2], p.Status,
	)
	return nil
}

// RunConsoleMQTT prints every rigid body, stream status and calculated point
// message until Ctrl+C.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	client := newClient(cfg.MQTTBroker, cfg.MQTTClientIDConsole, nil, nil)
	if err := connect(client, cfg.MQTTBroker); err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subs := []struct {
		topic string
		print func(io.Writer, []byte) error
	}{
		{feed.Wildcard(cfg.TopicRigidBody), printRigidBody},
		{cfg.TopicStreamStatus, printStreamStatus},
		{cfg.TopicMappedPoint, printPointResult},
	}
	for _, sub := range subs {
		if sub.topic == "" {
			continue
		}
		show := sub.print
		err := subscribe(client, sub.topic, func(_ mqtt.Client, msg mqtt.Message) {
			if err := show(os.Stdout, msg.Payload()); err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
			}
		})
		if err != nil {
			return err
		}
		log.Printf("console: subscribed to %s", sub.topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
