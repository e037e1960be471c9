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

package bridge

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// VirtualConfig configures the simulated load cell amplifier
// of a virtual bridge.
type VirtualConfig struct {
	// Pin numbers the simulated chip is wired to.
	DataPin  int
	ClockPin int
	// Time between the end of a transfer and the next conversion
	// being ready. Defaults to 12.5ms (80 samples per second).
	ConversionTime time.Duration
	// Minimum time the clock must be high to power the chip down.
	// Defaults to 60us.
	PowerDownThreshold time.Duration
	// Source of the 24-bit conversion results.
	// Defaults to DefaultSampleSource.
	Source SampleSource
	// Clock used for conversion and power down timing.
	Clock clock.Clock
}

type virtualBridge struct {
	config VirtualConfig
	chip   *simulatedChip
}

// NewVirtualBridge implements the bridge for a worker without hardware.
// The configured data & clock pins are connected to a simulated HX711.
func NewVirtualBridge(config VirtualConfig) (API, error) {
	if config.DataPin == config.ClockPin {
		return nil, fmt.Errorf("data pin and clock pin must differ, got %d", config.DataPin)
	}
	if config.ConversionTime <= 0 {
		config.ConversionTime = time.Microsecond * 12500
	}
	if config.PowerDownThreshold <= 0 {
		config.PowerDownThreshold = time.Microsecond * 60
	}
	if config.Source == nil {
		config.Source = DefaultSampleSource
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	return &virtualBridge{
		config: config,
		chip:   newSimulatedChip(config),
	}, nil
}

// Input initializes a GPIO input pin with the given pin number.
func (p *virtualBridge) Input(pinNumber int, activeLow bool) (InputPin, error) {
	if pinNumber != p.config.DataPin {
		return nil, fmt.Errorf("Invalid pin %d", pinNumber)
	}
	pinsConfiguredTotal.WithLabelValues("input").Inc()
	return simulatedDataPin{chip: p.chip, activeLow: activeLow}, nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *virtualBridge) Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error) {
	if pinNumber != p.config.ClockPin {
		return nil, fmt.Errorf("Invalid pin %d", pinNumber)
	}
	pinsConfiguredTotal.WithLabelValues("output").Inc()
	pin := simulatedClockPin{chip: p.chip, activeLow: activeLow}
	if err := pin.Write(initialValue); err != nil {
		return nil, err
	}
	return pin, nil
}

// Turn Green status led on/off
func (p *virtualBridge) SetGreenLED(on bool) error {
	return nil
}

// Turn Red status led on/off
func (p *virtualBridge) SetRedLED(on bool) error {
	return nil
}

// Blink Green status led with given duration between on/off
func (p *virtualBridge) BlinkGreenLED(delay time.Duration) error {
	return nil
}

// Blink Red status led with given duration between on/off
func (p *virtualBridge) BlinkRedLED(delay time.Duration) error {
	return nil
}

func (p *virtualBridge) Close() error {
	return nil
}
