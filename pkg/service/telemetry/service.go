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
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/LoadCellWorker/pkg/service/sampler"
	"github.com/binkynet/LoadCellWorker/pkg/service/util"
)

// Service publishes the latest weight and executes received commands.
type Service interface {
	// Run the service until the given context is canceled.
	Run(ctx context.Context) error
}

// Sampler is the part of the sampler used by telemetry.
type Sampler interface {
	Cell() *sampler.WeightCell
	Command(ctx context.Context, cmd sampler.Command) error
}

type Config struct {
	// Topic prefix. Queries are published on <topic>/query,
	// commands are received on <topic>/command.
	Topic string
	// Time between two query messages
	Period time.Duration
	// File with wireless statistics
	WirelessPath string
}

type Dependencies struct {
	Log zerolog.Logger
	// Dial connects to the message broker
	Dial    func() (Client, error)
	Sampler Sampler
}

type service struct {
	Config
	Dependencies

	latency int64
}

const (
	commandTimeout = time.Second * 10
)

// NewService creates a new telemetry service.
func NewService(conf Config, deps Dependencies) Service {
	deps.Log = deps.Log.With().Str("component", "telemetry").Logger()
	conf.Topic = strings.TrimSuffix(conf.Topic, "/")
	if conf.Period <= 0 {
		conf.Period = time.Millisecond * 40
	}
	if conf.WirelessPath == "" {
		conf.WirelessPath = DefaultWirelessPath
	}
	return &service{
		Config:       conf,
		Dependencies: deps,
	}
}

func (s *service) queryTopic() string   { return s.Topic + "/query" }
func (s *service) commandTopic() string { return s.Topic + "/command" }

// Run the service until the given context is canceled.
// Lost connections are re-established.
func (s *service) Run(ctx context.Context) error {
	return util.UntilCanceled(ctx, s.Log, "telemetry session", s.runSession)
}

// runSession connects to the broker and publishes until the
// connection is lost or the context is canceled.
func (s *service) runSession(ctx context.Context) error {
	client, err := s.Dial()
	if err != nil {
		return errors.Wrap(err, "dial failed")
	}
	defer client.Close()

	if err := client.Subscribe(s.commandTopic(), func(payload []byte) {
		s.onCommand(ctx, payload)
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()
	counter := 0
	logEvery := int(time.Second / s.Period)
	if logEvery < 1 {
		logEvery = 1
	}
	recentErrors := 0
	for {
		select {
		case <-ctx.Done():
			// Context canceled
			return nil
		case <-client.Lost():
			return errors.New("connection lost")
		case <-ticker.C:
			msg := s.query(time.Now())
			if err := s.publish(ctx, client, msg); err != nil {
				if recentErrors == 0 {
					s.Log.Warn().Err(err).Msg("Publish query failed")
				}
				recentErrors++
				publishErrorsTotal.Inc()
				continue
			}
			recentErrors = 0
			messagesPublishedTotal.Inc()
			counter++
			if counter%logEvery == 0 {
				s.Log.Debug().
					Int("counter", counter).
					Int("wireless-quality", msg.WirelessQuality).
					Int64("latency", msg.Latency).
					Msg("Telemetry status")
			}
		}
	}
}

// query builds the query message for the given time.
func (s *service) query(now time.Time) QueryMessage {
	weight, ok := s.Sampler.Cell().Get()
	if !ok {
		weight = noWeight
	}
	quality := ReadWirelessQuality(s.WirelessPath)
	wirelessQualityGauge.Set(float64(quality))
	return QueryMessage{
		Type:            messageTypeQuery,
		Timestamp:       timestampMillis(now),
		WirelessQuality: quality,
		Latency:         atomic.LoadInt64(&s.latency),
		Weight:          weight,
	}
}

func (s *service) publish(ctx context.Context, client Client, msg QueryMessage) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode query failed")
	}
	pctx, cancel := context.WithTimeout(ctx, s.Period)
	defer cancel()
	return client.Publish(pctx, s.queryTopic(), encoded)
}

// onCommand handles a message received on the command topic.
func (s *service) onCommand(ctx context.Context, payload []byte) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.Log.Warn().Err(err).Msg("Invalid command message")
		return
	}
	latency := timestampMillis(time.Now()) - msg.Timestamp
	if latency < 0 {
		latency = 0
	}
	atomic.StoreInt64(&s.latency, latency)
	latencyGauge.Set(float64(latency))

	if msg.Command == "" {
		return
	}
	cmd, err := sampler.ParseCommand(msg.Command)
	if err != nil {
		s.Log.Warn().Err(err).Msg("Unsupported command")
		return
	}
	commandsReceivedTotal.WithLabelValues(string(cmd)).Inc()
	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := s.Sampler.Command(cctx, cmd); err != nil {
		s.Log.Warn().Err(err).Str("command", string(cmd)).Msg("Command failed")
	}
}
