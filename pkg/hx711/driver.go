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

// Package hx711 drives an HX711 24-bit load cell amplifier through
// two bit-banged GPIO lines: PD_SCK (clock, driven by the host) and
// DOUT (data, driven by the chip).
package hx711

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/LoadCellWorker/pkg/service/bridge"
	"github.com/binkynet/LoadCellWorker/pkg/service/util"
)

const (
	dataBits      = 24
	signBit       = 0x800000
	primingPulses = 10

	DefaultPulseWidth   = time.Microsecond * 5
	DefaultPollInterval = time.Microsecond
	DefaultPollLimit    = 1000000
	DefaultSettleDelay  = time.Microsecond * 100
	DefaultPowerDelay   = time.Microsecond * 100
)

// Lines gives access to the GPIO lines the chip is connected to.
// bridge.API implements it.
type Lines interface {
	// Input configures the pin with given number as input.
	Input(pinNumber int, activeLow bool) (bridge.InputPin, error)
	// Output configures the pin with given number as output.
	Output(pinNumber int, activeLow bool, initialValue bool) (bridge.OutputPin, error)
}

// Config of a Driver.
type Config struct {
	// GPIO pin connected to DOUT
	DataPin int
	// GPIO pin connected to PD_SCK
	ClockPin int
	// Initial gain, defaults to GainA128
	Gain Gain
	// Minimum time between clock edges
	PulseWidth time.Duration
	// Sleep between two readiness polls
	PollInterval time.Duration
	// Number of polls after which a read times out
	PollLimit int
	// Delay after configuring the lines
	SettleDelay time.Duration
	// Delay used in power sequencing. Must exceed 60us.
	PowerDelay time.Duration
	// Clock used for all waits. Defaults to the system clock.
	Clock clock.Clock
}

func (c *Config) setDefaults() {
	if c.Gain == 0 {
		c.Gain = GainA128
	}
	if c.PulseWidth <= 0 {
		c.PulseWidth = DefaultPulseWidth
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollLimit <= 0 {
		c.PollLimit = DefaultPollLimit
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.PowerDelay <= 0 {
		c.PowerDelay = DefaultPowerDelay
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// Driver of a single HX711.
//
// A Driver must be owned by a single goroutine. Every operation runs a
// timed sequence of clock edges that cannot be interleaved with another
// one, so concurrent use panics instead of corrupting a transfer.
// Hand the driver to another goroutine only after the current owner
// is done with it.
type Driver struct {
	log    zerolog.Logger
	config Config
	clock  clock.Clock
	dout   bridge.InputPin
	sck    bridge.OutputPin
	gain   Gain
	cal    Calibration
	owner  util.SpinLock
}

// New configures the lines, power cycles the chip and primes it.
// An error means the lines could not be configured; the driver
// cannot be used.
func New(config Config, lines Lines, log zerolog.Logger) (*Driver, error) {
	config.setDefaults()
	if !config.Gain.IsValid() {
		return nil, errors.Wrapf(InvalidGainError, "gain %d", int(config.Gain))
	}
	if config.DataPin == config.ClockPin {
		return nil, errors.Errorf("data pin and clock pin must differ, got %d", config.DataPin)
	}
	sck, err := lines.Output(config.ClockPin, false, false)
	if err != nil {
		return nil, errors.Wrapf(err, "configure clock pin %d failed", config.ClockPin)
	}
	dout, err := lines.Input(config.DataPin, false)
	if err != nil {
		return nil, errors.Wrapf(err, "configure data pin %d failed", config.DataPin)
	}
	d := &Driver{
		log: log.With().
			Int("data-pin", config.DataPin).
			Int("clock-pin", config.ClockPin).
			Logger(),
		config: config,
		clock:  config.Clock,
		dout:   dout,
		sck:    sck,
		gain:   config.Gain,
		cal:    defaultCalibration(),
	}

	d.clock.Sleep(config.SettleDelay)
	if err := d.reset(); err != nil {
		return nil, errors.Wrap(err, "reset failed")
	}
	t := transfer{d: d}
	for i := 0; i < primingPulses; i++ {
		t.pulse()
	}
	if t.err != nil {
		return nil, errors.Wrap(t.err, "priming failed")
	}
	return d, nil
}

// acquire claims ownership for the duration of an operation.
func (d *Driver) acquire() {
	if !d.owner.TryLock() {
		panic("hx711: concurrent use of Driver")
	}
}

func (d *Driver) release() {
	d.owner.Unlock()
}

// IsReady returns true when DOUT is low, i.e. a conversion is ready
// to be shifted out.
func (d *Driver) IsReady() (bool, error) {
	d.acquire()
	defer d.release()

	return d.isReady()
}

func (d *Driver) isReady() (bool, error) {
	level, err := d.dout.Read()
	if err != nil {
		return false, errors.Wrap(err, "read data pin failed")
	}
	return !level, nil
}

// ReadRaw performs a single conversion read.
// Returns TimeoutError when the chip does not become ready within
// PollLimit polls.
func (d *Driver) ReadRaw() (int32, error) {
	d.acquire()
	defer d.release()

	return d.readRaw()
}

// readRaw waits for a ready conversion, shifts in 24 bits MSB first
// and sends the trailing pulses of the current gain.
// Once shifting has begun, all edges are sent, even after an I/O error.
func (d *Driver) readRaw() (int32, error) {
	if err := d.waitReady(); err != nil {
		return 0, err
	}
	t := transfer{d: d}
	var count uint32
	for i := 0; i < dataBits; i++ {
		t.setClock(true)
		d.spinWait()
		// Sampled while the clock is high. Drivers that sample after the
		// falling edge may read a different raw value for the same load;
		// recheck the default offset (8661777) on real hardware.
		bit := t.sample()
		t.setClock(false)
		d.spinWait()
		count = count<<1 + bit
	}
	// Select gain of the next conversion
	for i := 0; i < d.gain.Pulses(); i++ {
		t.pulse()
	}
	if t.err != nil {
		return 0, t.err
	}
	return FlipSignBit(count), nil
}

// waitReady polls DOUT until the chip is ready, sleeping between polls.
func (d *Driver) waitReady() error {
	for polls := 0; ; polls++ {
		ready, err := d.isReady()
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if polls >= d.config.PollLimit {
			return maskAny(TimeoutError)
		}
		d.clock.Sleep(d.config.PollInterval)
	}
}

func (d *Driver) spinWait() {
	util.SpinWait(d.clock, d.config.PulseWidth)
}

// FlipSignBit converts the 24-bit register content into a signed value
// by flipping bit 23, i.e. offsetting it by 2^23.
// This is not a sign extension; calibration constants depend on it.
func FlipSignBit(count uint32) int32 {
	return int32(count ^ signBit)
}

// GetValue performs a single read.
// Returns false when the read timed out or failed.
func (d *Driver) GetValue() (int32, bool) {
	d.acquire()
	defer d.release()

	return d.value()
}

func (d *Driver) value() (int32, bool) {
	v, err := d.readRaw()
	if err != nil {
		d.log.Debug().Err(err).Msg("Read failed")
		return 0, false
	}
	return v, true
}

// GetValueAverage performs up to times reads and returns the truncated
// mean of the successful ones.
// Returns false when none succeeded.
func (d *Driver) GetValueAverage(times int) (int32, bool) {
	d.acquire()
	defer d.release()

	return d.valueAverage(times)
}

func (d *Driver) valueAverage(times int) (int32, bool) {
	var sum int64
	count := int64(0)
	for i := 0; i < times; i++ {
		if v, ok := d.value(); ok {
			sum += int64(v)
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return int32(sum / count), true
}

// GetWeight returns the calibrated weight of channel A, averaged over
// the given number of reads.
func (d *Driver) GetWeight(times int) (float64, bool) {
	d.acquire()
	defer d.release()

	value, ok := d.valueAverage(times)
	if !ok {
		return 0, false
	}
	return computeWeight(value, d.cal.OffsetA, d.cal.ReferenceUnitA), true
}

// GetWeightB switches to channel B and returns its calibrated weight,
// averaged over the given number of reads.
func (d *Driver) GetWeightB(times int) (float64, bool) {
	d.acquire()
	defer d.release()

	d.setGain(GainB32)
	value, ok := d.valueAverage(times)
	if !ok {
		return 0, false
	}
	return computeWeight(value, d.cal.OffsetB, d.cal.ReferenceUnitB), true
}

// Tare sets the offset of channel A to the current average value.
// Returns false, leaving the offset unchanged, when no read succeeded.
func (d *Driver) Tare(times int) bool {
	d.acquire()
	defer d.release()

	value, ok := d.valueAverage(times)
	if !ok {
		return false
	}
	d.cal.OffsetA = value
	return true
}

// TareB switches to channel B and sets its offset to the current
// average value.
func (d *Driver) TareB(times int) bool {
	d.acquire()
	defer d.release()

	d.setGain(GainB32)
	value, ok := d.valueAverage(times)
	if !ok {
		return false
	}
	d.cal.OffsetB = value
	return true
}

// SetGain stores the new gain and performs one read to send it to
// the chip. The result of that read is discarded.
func (d *Driver) SetGain(gain Gain) error {
	if !gain.IsValid() {
		return errors.Wrapf(InvalidGainError, "gain %d", int(gain))
	}
	d.acquire()
	defer d.release()

	d.setGain(gain)
	return nil
}

func (d *Driver) setGain(gain Gain) {
	if gain != d.gain {
		d.log.Debug().Str("gain", gain.String()).Msg("Changing gain")
	}
	d.gain = gain
	if _, err := d.readRaw(); err != nil {
		d.log.Debug().Err(err).Msg("Read after gain change failed")
	}
}

// Gain returns the configured gain.
func (d *Driver) Gain() Gain {
	d.acquire()
	defer d.release()

	return d.gain
}

// PowerDown puts the chip in low power mode by holding the clock high.
func (d *Driver) PowerDown() error {
	d.acquire()
	defer d.release()

	return d.powerDown()
}

func (d *Driver) powerDown() error {
	d.log.Debug().Msg("Power down")
	if err := d.sck.Write(false); err != nil {
		return errors.Wrap(err, "write clock failed")
	}
	d.clock.Sleep(d.config.PowerDelay)
	// High for more than 60us powers the chip down
	if err := d.sck.Write(true); err != nil {
		return errors.Wrap(err, "write clock failed")
	}
	d.clock.Sleep(d.config.PowerDelay)
	return nil
}

// PowerUp wakes the chip up.
// The chip always resumes on channel A, gain 128. The configured gain
// is not sent again, so the first conversion after power up uses
// A/128 even when another gain is configured.
func (d *Driver) PowerUp() error {
	d.acquire()
	defer d.release()

	return d.powerUp()
}

func (d *Driver) powerUp() error {
	d.log.Debug().Msg("Power up")
	if err := d.sck.Write(false); err != nil {
		return errors.Wrap(err, "write clock failed")
	}
	d.clock.Sleep(d.config.PowerDelay)
	return nil
}

// Reset power cycles the chip.
func (d *Driver) Reset() error {
	d.acquire()
	defer d.release()

	return d.reset()
}

func (d *Driver) reset() error {
	if err := d.powerDown(); err != nil {
		return err
	}
	return d.powerUp()
}

// transfer drives the lines during a read.
// It remembers the first I/O error but keeps going, so a started
// sequence of edges is always completed.
type transfer struct {
	d   *Driver
	err error
}

func (t *transfer) setClock(level bool) {
	if err := t.d.sck.Write(level); err != nil && t.err == nil {
		t.err = errors.Wrap(err, "write clock failed")
	}
}

// sample reads DOUT as a bit.
func (t *transfer) sample() uint32 {
	level, err := t.d.dout.Read()
	if err != nil {
		if t.err == nil {
			t.err = errors.Wrap(err, "read data pin failed")
		}
		return 0
	}
	if level {
		return 1
	}
	return 0
}

// pulse sends a single clock pulse.
func (t *transfer) pulse() {
	t.setClock(true)
	t.d.spinWait()
	t.setClock(false)
	t.d.spinWait()
}
