// Package notify publishes schedule change events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// EventKind names the mutation that produced an event.
type EventKind string

const (
	EventMileageRecorded   EventKind = "mileage_recorded"
	EventServiceCompleted  EventKind = "service_completed"
	EventSnapshotRefreshed EventKind = "snapshot_refreshed"
)

// Event summarizes a profile's schedule after a mutation.
type Event struct {
	Kind       EventKind `json:"kind"`
	TenantID   string    `json:"tenant_id"`
	ProfileID  string    `json:"profile_id"`
	VehicleID  string    `json:"vehicle_id,omitempty"`
	ServiceKey string    `json:"service_key,omitempty"`
	Mileage    *int      `json:"mileage,omitempty"`
	Due        []string  `json:"due"`
	Overdue    []string  `json:"overdue"`
	At         time.Time `json:"at"`
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// MQTTPublisher publishes events as JSON to an MQTT broker.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher connects to the broker described by cfg.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return newMQTTPublisher(client, cfg), nil
}

func newMQTTPublisher(client mqtt.Client, cfg MQTTConfig) *MQTTPublisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &MQTTPublisher{
		client:  client,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
	}
}

// Topic returns <prefix>/<tenant>/vehicles/<vehicle>, or .../profiles/<profile>
// when the profile is not linked to a vehicle.
func (p *MQTTPublisher) Topic(event Event) string {
	if event.VehicleID == "" {
		return fmt.Sprintf("%s/%s/profiles/%s", p.prefix, event.TenantID, event.ProfileID)
	}
	return fmt.Sprintf("%s/%s/vehicles/%s", p.prefix, event.TenantID, event.VehicleID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	token := p.client.Publish(p.Topic(event), p.qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish to %s timed out", p.Topic(event))
	}
	return token.Error()
}

// Close disconnects from the broker, waiting briefly for in-flight work.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
