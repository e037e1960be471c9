//    Copyright 2017 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/LoadCellWorker/pkg/environment"
	"github.com/binkynet/LoadCellWorker/pkg/hx711"
	"github.com/binkynet/LoadCellWorker/pkg/logging"
	"github.com/binkynet/LoadCellWorker/pkg/server"
	"github.com/binkynet/LoadCellWorker/pkg/service/bridge"
	"github.com/binkynet/LoadCellWorker/pkg/service/sampler"
	"github.com/binkynet/LoadCellWorker/pkg/service/telemetry"
	"github.com/binkynet/LoadCellWorker/pkg/ui"
)

const (
	projectName      = "BinkyNet Load Cell Worker"
	defaultHTTPPort  = 7129
	defaultSSHPort   = 7122
	defaultOffset    = 8661777
	defaultScale     = 960.33
	defaultDataPin   = 5
	defaultClockPin  = 6
	defaultMQTTTopic = "loadcell"
	defaultPeriod    = time.Millisecond * 20
	defaultTelemetry = time.Millisecond * 40
	logTopicSuffix   = "/log"
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

func main() {
	var levelFlag string
	var bridgeType string
	var serverHost string
	var httpPort, sshPort int
	var dataPin, clockPin int
	var greenLEDPin, redLEDPin int
	var gainFlag string
	var offset int32
	var scale float64
	var period, telemetryPeriod time.Duration
	var mqttBroker, mqttTopic string
	var logMQTT bool

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVarP(&bridgeType, "bridge", "b", environment.BridgeTypeAuto, "Type of bridge to use (auto|rpi|virtual)")
	pflag.StringVar(&serverHost, "host", "0.0.0.0", "Host address the HTTP & SSH servers will listen on")
	pflag.IntVar(&httpPort, "http-port", defaultHTTPPort, "Port the HTTP server will listen on")
	pflag.IntVar(&sshPort, "ssh-port", defaultSSHPort, "Port the SSH server will listen on (0 disables)")
	pflag.IntVar(&dataPin, "data-pin", defaultDataPin, "GPIO pin connected to DOUT")
	pflag.IntVar(&clockPin, "clock-pin", defaultClockPin, "GPIO pin connected to PD_SCK")
	pflag.IntVar(&greenLEDPin, "green-led", bridge.DefaultGreenLEDPin, "GPIO pin of the green status led (-1 disables)")
	pflag.IntVar(&redLEDPin, "red-led", bridge.DefaultRedLEDPin, "GPIO pin of the red status led (-1 disables)")
	pflag.StringVar(&gainFlag, "gain", hx711.GainA128.String(), "Channel & gain (a128|b32|a64)")
	pflag.Int32Var(&offset, "offset", defaultOffset, "Raw value of an unloaded cell")
	pflag.Float64Var(&scale, "scale", defaultScale, "Raw units per unit of weight")
	pflag.DurationVar(&period, "period", defaultPeriod, "Time between samples")
	pflag.StringVar(&mqttBroker, "mqtt-broker", "", "Address (host:port) of the MQTT broker (empty disables telemetry)")
	pflag.StringVar(&mqttTopic, "mqtt-topic", defaultMQTTTopic, "Topic prefix for telemetry")
	pflag.DurationVar(&telemetryPeriod, "telemetry-period", defaultTelemetry, "Time between telemetry messages")
	pflag.BoolVar(&logMQTT, "log-mqtt", false, "Forward log lines to MQTT")
	pflag.Parse()

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var logOutput io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	var mqttLogWriter logging.MQTTWriter
	if logMQTT && mqttBroker != "" {
		mqttLogWriter = logging.NewMQTTWriter(ctx)
		mqttLogWriter.Enable(true)
		logOutput = logging.NewMultiWriter(logOutput, logging.NewLevelFilter(mqttLogWriter, zerolog.InfoLevel))
	}
	logger := zerolog.New(logOutput).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)

	gain, err := hx711.ParseGain(gainFlag)
	if err != nil {
		Exitf("Invalid gain: %v\n", err)
	}
	if scale == 0 {
		Exitf("Scale must not be zero\n")
	}

	hostID, err := environment.HostID()
	if err != nil {
		Exitf("Failed to create host ID: %v\n", err)
	}
	logger = logger.With().Str("host-id", hostID).Logger()

	if bridgeType == environment.BridgeTypeAuto {
		bridgeType = environment.AutoDetectBridgeType(logger)
	}
	var br bridge.API
	switch bridgeType {
	case environment.BridgeTypeRaspberryPi:
		br, err = bridge.NewRaspberryPiBridge(bridge.RaspberryPiConfig{
			GreenLEDPin: greenLEDPin,
			RedLEDPin:   redLEDPin,
		}, logger)
		if err != nil {
			Exitf("Failed to initialize Raspberry Pi Bridge: %v\n", err)
		}
	case environment.BridgeTypeVirtual:
		br, err = bridge.NewVirtualBridge(bridge.VirtualConfig{
			DataPin:  dataPin,
			ClockPin: clockPin,
		})
		if err != nil {
			Exitf("Failed to initialize virtual Bridge: %v\n", err)
		}
	default:
		Exitf("Unknown bridge type '%s' (auto|rpi|virtual)\n", bridgeType)
	}
	defer br.Close()

	smp := sampler.NewService(sampler.Config{
		Period: period,
		Offset: offset,
		Scale:  scale,
	}, sampler.Dependencies{
		Log: logger,
		NewDriver: func(log zerolog.Logger) (*hx711.Driver, error) {
			d, err := hx711.New(hx711.Config{
				DataPin:  dataPin,
				ClockPin: clockPin,
				Gain:     gain,
			}, br, log.With().Str("component", "hx711").Logger())
			if err != nil {
				return nil, errors.Wrap(err, "hx711.New failed")
			}
			return d, nil
		},
		Status: br,
	})

	httpServer, err := server.New(server.Config{
		Host:     serverHost,
		HTTPPort: httpPort,
		SSHPort:  sshPort,
	}, logger, hostID, smp, ui.NewHandler(smp, hostID))
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return smp.Run(ctx) })
	g.Go(func() error { return httpServer.Run(ctx) })
	if mqttBroker != "" {
		tel := telemetry.NewService(telemetry.Config{
			Topic:  mqttTopic,
			Period: telemetryPeriod,
		}, telemetry.Dependencies{
			Log: logger,
			Dial: func() (telemetry.Client, error) {
				client, err := telemetry.DialMQTT(telemetry.ClientConfig{
					BrokerAddress: mqttBroker,
					ClientID:      "loadcell-" + hostID,
				}, logger)
				if err != nil {
					return nil, err
				}
				if mqttLogWriter != nil {
					mqttLogWriter.SetDestination(mqttTopic+logTopicSuffix, client)
				}
				return client, nil
			},
			Sampler: smp,
		})
		g.Go(func() error { return tel.Run(ctx) })
	}
	if err := g.Wait(); err != nil {
		Exitf("Service run failed: %v\n", err)
	}
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
