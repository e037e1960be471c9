// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package telemetry

import (
	"context"
	"strings"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client is the message transport used for telemetry.
type Client interface {
	// Publish the given payload on the given topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe invokes the callback for every message on the given topic.
	Subscribe(topic string, cb func(payload []byte)) error
	// Lost is closed when the connection has been lost.
	Lost() <-chan struct{}
	// Close the connection.
	Close()
}

// ClientConfig of an MQTT client.
type ClientConfig struct {
	// Address (host:port) of the broker
	BrokerAddress string
	// Client ID used with the broker
	ClientID string
}

const (
	mqttConnectTimeout    = time.Second * 5
	mqttSubscribeTimeout  = time.Second * 2
	mqttDisconnectQuiesce = 250
)

type mqttClient struct {
	log    zerolog.Logger
	client mqttapi.Client
	lost   chan struct{}
}

// DialMQTT connects to the MQTT broker.
func DialMQTT(config ClientConfig, log zerolog.Logger) (Client, error) {
	broker := config.BrokerAddress
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	c := &mqttClient{
		log:  log.With().Str("broker", broker).Logger(),
		lost: make(chan struct{}),
	}
	opts := mqttapi.NewClientOptions().
		AddBroker(broker).
		SetClientID(config.ClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})
	opts.SetConnectionLostHandler(func(_ mqttapi.Client, err error) {
		c.log.Warn().Err(err).Msg("MQTT connection lost")
		close(c.lost)
	})

	c.client = mqttapi.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, errors.Errorf("connect to '%s' timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect to '%s' failed", broker)
	}
	c.log.Info().Msg("Connected to MQTT broker")
	return c, nil
}

// Publish the given payload on the given topic.
func (c *mqttClient) Publish(ctx context.Context, topic string, payload []byte) error {
	token := c.client.Publish(topic, 0, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return errors.Wrapf(err, "publish to '%s' failed", topic)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe invokes the callback for every message on the given topic.
func (c *mqttClient) Subscribe(topic string, cb func(payload []byte)) error {
	token := c.client.Subscribe(topic, 0, func(_ mqttapi.Client, msg mqttapi.Message) {
		cb(msg.Payload())
	})
	if !token.WaitTimeout(mqttSubscribeTimeout) {
		return errors.Errorf("subscribe to '%s' timed out", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "subscribe to '%s' failed", topic)
	}
	return nil
}

// Lost is closed when the connection has been lost.
func (c *mqttClient) Lost() <-chan struct{} {
	return c.lost
}

// Close the connection.
func (c *mqttClient) Close() {
	c.client.Disconnect(mqttDisconnectQuiesce)
}
