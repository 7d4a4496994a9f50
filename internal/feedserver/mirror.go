package feedserver

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Mirror republishes every accepted update to an MQTT broker, retained,
// so dashboards and recorders can follow the fleet without speaking the
// websocket feed. Disabled when no broker is configured.
type Mirror struct {
	client mqtt.Client
}

// NewMirror connects to the broker, or returns a disabled mirror when
// broker is empty.
func NewMirror(broker, clientID string) (*Mirror, error) {
	if broker == "" {
		return &Mirror{}, nil
	}
	if clientID == "" {
		clientID = "shuttle-feed-mirror"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	log.Printf("feed: mirror connected to MQTT broker at %s", broker)
	return &Mirror{client: client}, nil
}

// Publish mirrors one update to shuttle/location/<route>[/<driver>].
// Retained, so late subscribers get the last known position immediately.
func (m *Mirror) Publish(routeID, driverID string, payload []byte) {
	if m.client == nil {
		return
	}
	topic := "shuttle/location/" + routeID
	if driverID != "" {
		topic += "/" + driverID
	}
	token := m.client.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("feed: mirror publish error: %v", token.Error())
	}
}

// Close disconnects from the broker.
func (m *Mirror) Close() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
}
