// Package mqtt republishes decoded sensor readings to an MQTT broker so
// external consumers (dashboards, recorders) can subscribe without touching
// the UDP wire format.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oakfield-data/motion.report/internal/monitoring"
	"github.com/oakfield-data/motion.report/internal/orientation"
	"github.com/oakfield-data/motion.report/internal/store"
	"github.com/oakfield-data/motion.report/internal/telemetry"
)

// TopicPrefix is prepended to every published topic.
const TopicPrefix = "phone"

// Publisher subscribes to a store and republishes each reading as JSON.
// Sensor readings go to phone/<sensor>, rotation vectors additionally
// publish the derived pose to phone/orientation, and GPS fixes to phone/gps.
type Publisher struct {
	client paho.Client
	store  *store.Store
}

// NewPublisher connects to the broker and returns a ready Publisher.
func NewPublisher(brokerURL, clientID string, st *store.Store) (*Publisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", brokerURL, token.Error())
	}

	monitoring.Logf("MQTT: connected to %s as %s", brokerURL, clientID)
	return &Publisher{client: client, store: st}, nil
}

// Run consumes readings from the store subscription until ctx is cancelled.
// Publish failures are logged and skipped; the loop keeps going.
func (p *Publisher) Run(ctx context.Context) {
	id, readings := p.store.Subscribe()
	defer p.store.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-readings:
			if !ok {
				return
			}
			p.publishReading(r)
		}
	}
}

func (p *Publisher) publishReading(r telemetry.Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		monitoring.Logf("MQTT: marshal error for %s: %v", r.Type, err)
		return
	}
	topic := TopicPrefix + "/" + topicName(r)
	if token := p.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		monitoring.Logf("MQTT: publish error (%s): %v", topic, token.Error())
		return
	}

	switch {
	case r.Type.IsRotationVector():
		pose, err := orientation.FromReading(r)
		if err != nil {
			return
		}
		if payload, err := json.Marshal(pose); err == nil {
			p.client.Publish(TopicPrefix+"/orientation", 0, true, payload)
		}
	case r.Type == telemetry.TypeGPS:
		fix, ok := r.Fix()
		if !ok {
			return
		}
		if payload, err := json.Marshal(fix); err == nil {
			p.client.Publish(TopicPrefix+"/gps", 0, true, payload)
		}
	}
}

// topicName derives a broker-safe topic segment from the reading.
func topicName(r telemetry.Reading) string {
	name := r.Type.String()
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	return name
}

// Close disconnects from the broker, allowing 250ms for in-flight messages.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
