// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

// Publisher is the subset of mqtt.Client used for publishing.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes records as retained JSON messages.
type MQTTSink struct {
	client      Publisher
	topicOutput string
	topicRaw    string // "" skips raw samples
	disconnect  func()
}

// NewMQTTSink wraps an already connected publisher.
func NewMQTTSink(client Publisher, topicOutput, topicRaw string) *MQTTSink {
	return &MQTTSink{client: client, topicOutput: topicOutput, topicRaw: topicRaw}
}

// DialMQTT connects to broker and returns a sink that disconnects on Close.
func DialMQTT(broker, clientID, topicOutput, topicRaw string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "MQTT connect to %s", broker)
	}
	s := NewMQTTSink(client, topicOutput, topicRaw)
	s.disconnect = func() { client.Disconnect(250) }
	return s, nil
}

func (s *MQTTSink) publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "json marshal (%s)", topic)
	}
	if token := s.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "MQTT publish error (%s)", topic)
	}
	return nil
}

// Emit implements Sink.
func (s *MQTTSink) Emit(rec imu.OutputRecord, raw imu.RawSample) error {
	if err := s.publish(s.topicOutput, rec); err != nil {
		return err
	}
	if s.topicRaw == "" {
		return nil
	}
	return s.publish(s.topicRaw, raw)
}

// Close implements Sink.
func (s *MQTTSink) Close() error {
	if s.disconnect != nil {
		s.disconnect()
	}
	return nil
}
