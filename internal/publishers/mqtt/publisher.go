// Package mqtt publishes the landing controller's lifecycle events —
// cycle start, stage transitions, touchdown, abort-to-RTL — to an MQTT
// broker, so ground crew or a fleet dashboard can follow a landing
// without polling the status API.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/open-uav/precision-lander/internal/config"
	"github.com/open-uav/precision-lander/internal/landingmodel"
	"github.com/open-uav/precision-lander/internal/loop"
	"github.com/open-uav/precision-lander/internal/metrics"
	"github.com/open-uav/precision-lander/internal/vehicle"
)

// EventType identifies a kind of landing-cycle lifecycle event.
type EventType string

const (
	EventCycleStarted EventType = "cycle_started"
	EventStageChanged EventType = "stage_changed"
	EventTouchdown    EventType = "touchdown"
	EventAbortedToRTL EventType = "aborted_to_rtl"
)

// LifecycleEvent is the payload published for every lifecycle event.
type LifecycleEvent struct {
	Type      EventType `json:"type"`
	Stage     string    `json:"stage"`
	CycleID   string    `json:"cycle_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Publisher delivers landing lifecycle events and a telemetry heartbeat
// to an MQTT broker.
type Publisher struct {
	cfg    config.MQTTConfig
	client pahomqtt.Client
	mu     sync.RWMutex
	ready  bool
}

// New creates a new MQTT publisher.
func New(cfg config.MQTTConfig) *Publisher {
	return &Publisher{cfg: cfg}
}

// Name returns the publisher name.
func (p *Publisher) Name() string {
	return "mqtt"
}

// Start connects to the broker and blocks until connected, ctx is done,
// or the connection attempt times out.
func (p *Publisher) Start(ctx context.Context) error {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	if p.cfg.LWT.Enabled {
		lwtTopic := fmt.Sprintf("%s/%s", p.cfg.LWT.Topic, p.cfg.ClientID)
		opts.SetWill(lwtTopic, p.cfg.LWT.Message, byte(p.cfg.QoS), true)
	}

	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		p.mu.Lock()
		p.ready = true
		p.mu.Unlock()
		metrics.Get().MQTTConnectionStatus.Set(1)

		if p.cfg.LWT.Enabled {
			statusTopic := fmt.Sprintf("%s/%s", p.cfg.LWT.Topic, p.cfg.ClientID)
			c.Publish(statusTopic, byte(p.cfg.QoS), true, "online")
		}
	})

	opts.SetConnectionLostHandler(func(c pahomqtt.Client, err error) {
		p.mu.Lock()
		p.ready = false
		p.mu.Unlock()
		metrics.Get().MQTTConnectionStatus.Set(0)
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()

	connected := make(chan bool, 1)
	go func() {
		connected <- token.WaitTimeout(10 * time.Second)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ok := <-connected:
		if !ok {
			return fmt.Errorf("mqtt connection timeout")
		}
	}

	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connection failed: %w", token.Error())
	}

	return nil
}

// Hooks returns the loop.Hooks this publisher needs wired into the
// controller to turn stage transitions into lifecycle events.
func (p *Publisher) Hooks() loop.Hooks {
	return loop.Hooks{
		OnTransition: func(from, to landingmodel.StageName, cycleID string) {
			event := EventStageChanged
			switch {
			case from == landingmodel.StageIdle && to != landingmodel.StageIdle:
				event = EventCycleStarted
			case from == landingmodel.StageTouchdown && to == landingmodel.StageIdle:
				event = EventTouchdown
			}
			p.PublishEvent(LifecycleEvent{
				Type:      event,
				Stage:     string(to),
				CycleID:   cycleID,
				Timestamp: time.Now().UnixMilli(),
			})
		},
	}
}

// PublishEvent publishes a lifecycle event under {prefix}/events.
func (p *Publisher) PublishEvent(event LifecycleEvent) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}

	topic := fmt.Sprintf("%s/events", p.cfg.TopicPrefix)
	token := p.client.Publish(topic, byte(p.cfg.QoS), false, payload)
	go func() {
		token.WaitTimeout(5 * time.Second)
	}()
	metrics.Get().MQTTMessagesPublished.WithLabelValues(string(event.Type)).Inc()

	return nil
}

// PublishAbort publishes the one lifecycle event the controller triggers
// directly rather than through a stage transition: its circuit breaker
// tripping and commanding RTL. Call this when loop.Controller.Run returns
// its failure-budget error.
func (p *Publisher) PublishAbort() error {
	return p.PublishEvent(LifecycleEvent{
		Type:      EventAbortedToRTL,
		Stage:     string(landingmodel.StageIdle),
		Timestamp: time.Now().UnixMilli(),
	})
}

// PublishTelemetry sends a lightweight telemetry heartbeat under
// {prefix}/telemetry, adapted from the original per-device location
// publish down to the single vehicle this controller flies.
func (p *Publisher) PublishTelemetry(t vehicle.Telemetry) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	payload := struct {
		Lat       float64 `json:"lat"`
		Lon       float64 `json:"lon"`
		Alt       float64 `json:"alt"`
		Armed     bool    `json:"armed"`
		Mode      string  `json:"mode"`
		Timestamp int64   `json:"timestamp"`
	}{
		Lat:       t.Location.Lat,
		Lon:       t.Location.Lon,
		Alt:       t.Location.Alt,
		Armed:     t.Armed,
		Mode:      string(t.Mode),
		Timestamp: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}

	topic := fmt.Sprintf("%s/telemetry", p.cfg.TopicPrefix)
	token := p.client.Publish(topic, byte(p.cfg.QoS), false, data)
	go func() {
		token.WaitTimeout(5 * time.Second)
	}()
	metrics.Get().MQTTMessagesPublished.WithLabelValues("telemetry").Inc()

	return nil
}

// Stop gracefully disconnects, publishing the LWT offline message first.
func (p *Publisher) Stop() error {
	if p.client != nil && p.client.IsConnected() {
		if p.cfg.LWT.Enabled {
			statusTopic := fmt.Sprintf("%s/%s", p.cfg.LWT.Topic, p.cfg.ClientID)
			token := p.client.Publish(statusTopic, byte(p.cfg.QoS), true, "offline")
			token.WaitTimeout(2 * time.Second)
		}
		p.client.Disconnect(1000)
	}
	metrics.Get().MQTTConnectionStatus.Set(0)
	return nil
}

// IsConnected returns true if the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}
