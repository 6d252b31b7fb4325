// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/imu"
)

func connectMQTT(broker, clientID string, logger golog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "MQTT connect to %s", broker)
	}
	logger.Infof("connected to MQTT broker at %s", broker)
	return client, nil
}

func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler, logger golog.Logger) error {
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return errors.Wrapf(token.Error(), "subscribe to %s", topic)
	}
	logger.Infof("subscribed to MQTT topic %s", topic)
	return nil
}

// recordHandler decodes OutputRecord payloads; malformed ones are logged
// and dropped.
func recordHandler(logger golog.Logger, fn func(imu.OutputRecord)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var rec imu.OutputRecord
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			logger.Warnw("record unmarshal error", "topic", msg.Topic(), "error", err)
			return
		}
		fn(rec)
	}
}

func rawHandler(logger golog.Logger, fn func(imu.RawSample)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var s imu.RawSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			logger.Warnw("raw sample unmarshal error", "topic", msg.Topic(), "error", err)
			return
		}
		fn(s)
	}
}
