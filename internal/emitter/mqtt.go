// Package emitter publishes the application status to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/FlexiView/internal/config"
	"github.com/bryanchriswhite/FlexiView/internal/logger"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	// quiesce is the disconnect grace period in milliseconds.
	quiesce = 250
)

var ErrNotConnected = errors.New("mqtt not connected")

// StatusFunc returns the document to publish. It must be JSON-encodable.
type StatusFunc func() any

// Message is the published envelope.
type Message struct {
	ClientID  string    `json:"client_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    any       `json:"status"`
}

// StatusEmitter periodically publishes the status document.
type StatusEmitter struct {
	cfg    config.MQTTConfig
	status StatusFunc
	client mqtt.Client
	log    zerolog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	published uint64
	errors    uint64
	connected bool
}

func NewStatusEmitter(cfg config.MQTTConfig, status StatusFunc) *StatusEmitter {
	return &StatusEmitter{
		cfg:    cfg,
		status: status,
		log:    *logger.WithComponent("emitter"),
		now:    time.Now,
	}
}

// Connect establishes the broker connection. Reconnects are automatic after
// the first success.
func (e *StatusEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.log.Info().Str("broker", e.cfg.Broker).Str("client_id", e.cfg.ClientID).Msg("MQTT connection established")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.log.Warn().Err(err).Str("broker", e.cfg.Broker).Msg("MQTT connection lost, will auto-reconnect")
	}

	e.client = mqtt.NewClient(opts)
	e.log.Info().Str("broker", e.cfg.Broker).Msg("Connecting to MQTT broker")

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	e.setConnected(true)
	return nil
}

// Payload encodes the current status envelope.
func (e *StatusEmitter) Payload() ([]byte, error) {
	return json.Marshal(Message{
		ClientID:  e.cfg.ClientID,
		Timestamp: e.now().UTC(),
		Status:    e.status(),
	})
}

// Publish sends one status message.
func (e *StatusEmitter) Publish() error {
	if !e.isConnected() {
		e.countError()
		return ErrNotConnected
	}
	payload, err := e.Payload()
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	token := e.client.Publish(e.cfg.Topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	e.log.Trace().Str("topic", e.cfg.Topic).Int("size", len(payload)).Msg("Status published")
	return nil
}

// Run publishes every IntervalMS until ctx is done.
func (e *StatusEmitter) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.IntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Publish(); err != nil {
				e.log.Debug().Err(err).Msg("Status publish skipped")
			}
		}
	}
}

// Disconnect closes the broker connection.
func (e *StatusEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(quiesce)
		e.log.Info().Msg("MQTT disconnected")
	}
	e.setConnected(false)
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

func (e *StatusEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{Connected: e.connected, Published: e.published, Errors: e.errors}
}

func (e *StatusEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *StatusEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *StatusEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
