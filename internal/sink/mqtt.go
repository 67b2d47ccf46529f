package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/enviro_monitor/internal/reading"
)

// MQTT publishes each reading as retained JSON to a single topic, so a
// subscriber joining late still sees the latest snapshot.
type MQTT struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewMQTT(logger *zap.Logger, broker, clientID, topic string, timeout time.Duration) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	logger.Info("connected to MQTT broker", zap.String("broker", broker), zap.String("topic", topic))

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MQTT{client: client, topic: topic, timeout: timeout, logger: logger}, nil
}

func (m *MQTT) Name() string {
	return "mqtt"
}

func (m *MQTT) Store(_ context.Context, r reading.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return Fail(ClassConfigMismatch, err)
	}

	token := m.client.Publish(m.topic, 0, true, payload)
	if !token.WaitTimeout(m.timeout) {
		return Fail(ClassTimeout, fmt.Errorf("publish to %s not acknowledged within %s", m.topic, m.timeout))
	}
	if token.Error() != nil {
		return Fail(ClassTransient, fmt.Errorf("publish to %s: %w", m.topic, token.Error()))
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
