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
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ecc1/gpio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RaspberryPiConfig selects the pins used for status leds.
// Use a negative pin number to disable a led.
type RaspberryPiConfig struct {
	GreenLEDPin int
	RedLEDPin   int
}

const (
	DefaultGreenLEDPin = 23
	DefaultRedLEDPin   = 24
)

type statusLed struct {
	sync.Mutex
	pin         gpio.OutputPin
	cancelBlink func()
}

// Turn led on/off, cancel blink
func (l *statusLed) Set(on bool) error {
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	l.stopBlink()
	if l.pin == nil {
		return nil
	}
	if err := l.pin.Write(on); err != nil {
		return errors.Wrap(err, "Write failed")
	}
	return nil
}

// Blink led on/off
func (l *statusLed) Blink(delay time.Duration) error {
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	l.stopBlink()
	if l.pin == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancelBlink = cancel
	go func() {
		value := true
		for {
			l.Mutex.Lock()
			if ctx.Err() == nil {
				l.pin.Write(value)
				value = !value
			}
			l.Mutex.Unlock()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// stopBlink cancels a running blink. Mutex must be held.
func (l *statusLed) stopBlink() {
	if cancel := l.cancelBlink; cancel != nil {
		l.cancelBlink = nil
		cancel()
	}
}

type piBridge struct {
	greenLed statusLed
	redLed   statusLed
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's.
// Status leds that cannot be opened are disabled.
func NewRaspberryPiBridge(config RaspberryPiConfig, log zerolog.Logger) (API, error) {
	greenLed, err := openStatusLed(config.GreenLEDPin)
	if err != nil {
		log.Warn().Err(err).Int("pin", config.GreenLEDPin).Msg("Green led disabled")
	}
	redLed, err := openStatusLed(config.RedLEDPin)
	if err != nil {
		log.Warn().Err(err).Int("pin", config.RedLEDPin).Msg("Red led disabled")
	}
	log.Debug().
		Int("green-led", config.GreenLEDPin).
		Int("red-led", config.RedLEDPin).
		Msg("Raspberry Pi bridge ready")
	return &piBridge{
		greenLed: statusLed{pin: greenLed},
		redLed:   statusLed{pin: redLed},
	}, nil
}

// openStatusLed prepares an active low output for a status led.
// Returns nil when the led is disabled.
func openStatusLed(pinNumber int) (gpio.OutputPin, error) {
	if pinNumber < 0 {
		return nil, nil
	}
	activeLow := true
	initialValue := false
	pin, err := gpio.Output(pinNumber, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrapf(err, "Output[%d] failed", pinNumber)
	}
	return pin, nil
}

// Input initializes a GPIO input pin with the given pin number.
func (p *piBridge) Input(pinNumber int, activeLow bool) (InputPin, error) {
	pin, err := gpio.Input(pinNumber, activeLow)
	if err != nil {
		return nil, errors.Wrapf(err, "Input[%d] failed", pinNumber)
	}
	pinsConfiguredTotal.WithLabelValues("input").Inc()
	return &meteredInput{pin: pin, label: strconv.Itoa(pinNumber)}, nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *piBridge) Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error) {
	pin, err := gpio.Output(pinNumber, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrapf(err, "Output[%d] failed", pinNumber)
	}
	pinsConfiguredTotal.WithLabelValues("output").Inc()
	return &meteredOutput{pin: pin, label: strconv.Itoa(pinNumber)}, nil
}

// Turn Green status led on/off
func (p *piBridge) SetGreenLED(on bool) error {
	if err := p.greenLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[greenLed] failed")
	}
	return nil
}

// Turn Red status led on/off
func (p *piBridge) SetRedLED(on bool) error {
	if err := p.redLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[redLed] failed")
	}
	return nil
}

// Blink Green status led with given duration between on/off
func (p *piBridge) BlinkGreenLED(delay time.Duration) error {
	if err := p.greenLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[greenLed] failed")
	}
	return nil
}

// Blink Red status led with given duration between on/off
func (p *piBridge) BlinkRedLED(delay time.Duration) error {
	if err := p.redLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[redLed] failed")
	}
	return nil
}

// Close turns off the status leds.
func (p *piBridge) Close() error {
	p.greenLed.Set(false)
	p.redLed.Set(false)
	return nil
}

// meteredInput counts read failures of a GPIO input.
type meteredInput struct {
	pin   gpio.InputPin
	label string
}

func (m *meteredInput) Read() (bool, error) {
	value, err := m.pin.Read()
	if err != nil {
		pinReadErrorsTotal.WithLabelValues(m.label).Inc()
		return false, err
	}
	return value, nil
}

// meteredOutput counts write failures of a GPIO output.
type meteredOutput struct {
	pin   gpio.OutputPin
	label string
}

func (m *meteredOutput) Write(value bool) error {
	if err := m.pin.Write(value); err != nil {
		pinWriteErrorsTotal.WithLabelValues(m.label).Inc()
		return err
	}
	return nil
}
