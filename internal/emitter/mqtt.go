// Package emitter mirrors bridge events to an MQTT broker so fleet
// tooling can follow players without a bridge session.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mattjoyce/signbridge/internal/events"
)

const publishTimeout = 2 * time.Second

// Config holds broker settings.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	QoS         byte
}

// Client is the part of mqtt.Client the emitter uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Message is the JSON body of every published event.
type Message struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Stats counts publishes per topic and failures.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// MQTT publishes each bridge event to <prefix>/<event type>. It
// implements events.Publisher and never blocks the publishing caller on
// the broker.
type MQTT struct {
	client Client
	prefix string
	qos    byte
	logger *slog.Logger
	now    func() time.Time

	wg        sync.WaitGroup
	mu        sync.Mutex
	published map[string]uint64
	errors    uint64
}

var _ events.Publisher = (*MQTT)(nil)

// New wraps an already configured client.
func New(client Client, prefix string, qos byte, logger *slog.Logger) *MQTT {
	return &MQTT{
		client:    client,
		prefix:    strings.TrimSuffix(prefix, "/"),
		qos:       qos,
		logger:    logger,
		now:       time.Now,
		published: make(map[string]uint64),
	}
}

// Connect dials the broker with automatic reconnection.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	logger.Info("connecting to mqtt broker", "broker", cfg.Broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		// ConnectRetry keeps trying in the background.
		logger.Warn("mqtt broker not reachable yet, continuing", "broker", cfg.Broker)
		return New(client, cfg.TopicPrefix, cfg.QoS, logger), nil
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return New(client, cfg.TopicPrefix, cfg.QoS, logger), nil
}

// Topic returns the topic an event type is published on.
func (e *MQTT) Topic(eventType string) string {
	if e.prefix == "" {
		return eventType
	}
	return e.prefix + "/" + eventType
}

func (e *MQTT) Publish(eventType string, data any) {
	payload := json.RawMessage("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			e.logger.Warn("dropping unencodable event", "event", eventType, "error", err)
			e.countError()
			return
		}
		payload = b
	}

	body, err := json.Marshal(Message{Type: eventType, At: e.now().UTC(), Data: payload})
	if err != nil {
		e.countError()
		return
	}

	topic := e.Topic(eventType)
	token := e.client.Publish(topic, e.qos, false, body)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if !token.WaitTimeout(publishTimeout) {
			e.logger.Debug("mqtt publish timed out", "topic", topic)
			e.countError()
			return
		}
		if err := token.Error(); err != nil {
			e.logger.Debug("mqtt publish failed", "topic", topic, "error", err)
			e.countError()
			return
		}
		e.mu.Lock()
		e.published[topic]++
		e.mu.Unlock()
	}()
}

func (e *MQTT) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

func (e *MQTT) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.client.IsConnected(),
		Published: published,
		Errors:    e.errors,
	}
}

// Close waits for in-flight publishes and disconnects.
func (e *MQTT) Close() {
	e.wg.Wait()
	e.client.Disconnect(250)
}
