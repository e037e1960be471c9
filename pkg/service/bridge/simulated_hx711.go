//    Copyright 2025 Ewout Prangsma
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
	"math/rand"
	"sync"
	"time"
)

// SampleSource produces the 24-bit register content of the next
// conversion. gainPulses is the number of trailing pulses (1..3)
// that selected the channel & gain of this conversion.
type SampleSource func(gainPulses int) uint32

const (
	dataBits = 24
	// Register content for an unloaded cell, chosen so the driver
	// (after flipping the sign bit) reports 8661777.
	defaultRegister = 8661777 ^ 0x800000
)

// DefaultSampleSource returns an unloaded cell with a few counts of noise.
func DefaultSampleSource(gainPulses int) uint32 {
	return uint32(defaultRegister + rand.Intn(17) - 8)
}

// simulatedChip mimics the serial interface of an HX711.
// DOUT is low when a conversion is ready. Every rising edge of PD_SCK
// shifts out the next bit, MSB first. 1..3 pulses after the 24th bit
// select channel & gain of the next conversion. Holding PD_SCK high
// longer than the power down threshold resets the chip, which then
// resumes on channel A, gain 128.
type simulatedChip struct {
	mutex        sync.Mutex
	config       VirtualConfig
	sck          bool
	sckHighSince time.Time
	readyAt      time.Time
	gainPulses   int
	edges        int
	register     uint32
	loaded       bool
}

func newSimulatedChip(config VirtualConfig) *simulatedChip {
	return &simulatedChip{
		config:     config,
		gainPulses: 1,
		readyAt:    config.Clock.Now().Add(config.ConversionTime),
	}
}

// writeClock sets the level of PD_SCK.
func (c *simulatedChip) writeClock(level bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if level == c.sck {
		return
	}
	now := c.config.Clock.Now()
	c.sck = level
	if level {
		c.sckHighSince = now
		if c.edges == 0 && now.Before(c.readyAt) {
			// Conversion in progress, pulse is ignored
			return
		}
		c.edges++
		return
	}
	if now.Sub(c.sckHighSince) > c.config.PowerDownThreshold {
		c.powerCycle(now)
	}
}

// readData returns the level of DOUT.
func (c *simulatedChip) readData() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.config.Clock.Now()
	if c.sck {
		if now.Sub(c.sckHighSince) > c.config.PowerDownThreshold {
			// Powered down
			return true
		}
		return c.currentBit()
	}
	if c.edges > dataBits {
		// Transfer complete, trailing pulses select the next gain
		c.gainPulses = c.edges - dataBits
		if c.gainPulses > 3 {
			c.gainPulses = 3
		}
		c.edges = 0
		c.loaded = false
		c.readyAt = now.Add(c.config.ConversionTime)
	}
	if c.edges == 0 {
		return now.Before(c.readyAt)
	}
	return c.currentBit()
}

// currentBit returns the bit selected by the last rising edge.
func (c *simulatedChip) currentBit() bool {
	if c.edges == 0 || c.edges > dataBits {
		return true
	}
	if !c.loaded {
		c.register = c.config.Source(c.gainPulses) & 0xFFFFFF
		c.loaded = true
	}
	shift := uint(dataBits - c.edges)
	return (c.register>>shift)&1 == 1
}

// powerCycle resets the chip to channel A, gain 128.
func (c *simulatedChip) powerCycle(now time.Time) {
	c.gainPulses = 1
	c.edges = 0
	c.loaded = false
	c.readyAt = now.Add(c.config.ConversionTime)
}

type simulatedDataPin struct {
	chip      *simulatedChip
	activeLow bool
}

func (p simulatedDataPin) Read() (bool, error) {
	return p.chip.readData() != p.activeLow, nil
}

type simulatedClockPin struct {
	chip      *simulatedChip
	activeLow bool
}

func (p simulatedClockPin) Write(value bool) error {
	p.chip.writeClock(value != p.activeLow)
	return nil
}
