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

package hx711

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/binkynet/LoadCellWorker/pkg/service/bridge"
)

const (
	testDataPin  = 5
	testClockPin = 6
)

// conversion queued in the fake chip.
// A timeout conversion never becomes ready.
type conversion struct {
	register uint32
	timeout  bool
}

// fakeChip emulates the HX711 at the level of single line accesses and
// records every access in a trace:
// H/L for clock writes, S for a data sample with the clock high and
// P for a readiness poll with the clock low.
type fakeChip struct {
	mutex     sync.Mutex
	pollLimit int

	inputErr  error
	outputErr error
	readErr   error
	writeErr  error

	trace    strings.Builder
	edges    []time.Time
	sck      bool
	queue    []conversion
	polls    int
	active   bool
	highs    int
	trailing []int

	// When set, the next data read signals entered and then waits
	// for release.
	entered chan struct{}
	release chan struct{}
}

func newFakeChip(pollLimit int, conversions ...conversion) *fakeChip {
	return &fakeChip{pollLimit: pollLimit, queue: conversions}
}

// raw returns a conversion producing the given raw value.
func raw(value int32) conversion {
	return conversion{register: (uint32(value) ^ signBit) & 0xFFFFFF}
}

func timeout() conversion {
	return conversion{timeout: true}
}

func (f *fakeChip) Input(pinNumber int, activeLow bool) (bridge.InputPin, error) {
	if f.inputErr != nil {
		return nil, f.inputErr
	}
	if pinNumber != testDataPin {
		return nil, errors.Errorf("unexpected input pin %d", pinNumber)
	}
	return fakeData{f}, nil
}

func (f *fakeChip) Output(pinNumber int, activeLow bool, initialValue bool) (bridge.OutputPin, error) {
	if f.outputErr != nil {
		return nil, f.outputErr
	}
	if pinNumber != testClockPin {
		return nil, errors.Errorf("unexpected output pin %d", pinNumber)
	}
	f.sck = initialValue
	return fakeClock{f}, nil
}

// Trace returns the recorded line accesses.
func (f *fakeChip) Trace() string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.trace.String()
}

// Edges returns the times of all clock transitions.
func (f *fakeChip) Edges() []time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]time.Time(nil), f.edges...)
}

// ResetTrace clears the recorded line accesses.
func (f *fakeChip) ResetTrace() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.trace.Reset()
}

// Trailing returns the number of clock pulses that followed the 24 data
// bits of every completed transfer.
func (f *fakeChip) Trailing() []int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.finishTransfer()
	return append([]int(nil), f.trailing...)
}

func (f *fakeChip) finishTransfer() {
	if !f.active {
		return
	}
	f.trailing = append(f.trailing, f.highs-dataBits)
	f.queue = f.queue[1:]
	f.active = false
	f.highs = 0
}

func (f *fakeChip) writeClock(level bool) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if level != f.sck {
		f.edges = append(f.edges, time.Now())
	}
	if level {
		f.trace.WriteString("H")
		if f.active {
			f.highs++
		}
	} else {
		f.trace.WriteString("L")
	}
	f.sck = level
	return f.writeErr
}

func (f *fakeChip) readData() (bool, error) {
	f.mutex.Lock()
	entered, release := f.entered, f.release
	f.entered, f.release = nil, nil
	f.mutex.Unlock()
	if entered != nil {
		close(entered)
		<-release
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.readErr != nil {
		return false, f.readErr
	}
	if f.sck {
		f.trace.WriteString("S")
		idx := f.highs - 1
		if !f.active || idx >= dataBits {
			return true, nil
		}
		return (f.queue[0].register>>uint(dataBits-1-idx))&1 == 1, nil
	}
	f.trace.WriteString("P")
	f.finishTransfer()
	if len(f.queue) == 0 {
		return true, nil
	}
	if f.queue[0].timeout {
		f.polls++
		if f.polls > f.pollLimit {
			// Driver gave up on this one
			f.polls = 0
			f.queue = f.queue[1:]
		}
		return true, nil
	}
	f.active = true
	return false, nil
}

type fakeData struct{ f *fakeChip }

func (p fakeData) Read() (bool, error) { return p.f.readData() }

type fakeClock struct{ f *fakeChip }

func (p fakeClock) Write(level bool) error { return p.f.writeClock(level) }

// newTestDriver creates a driver on the given fake chip.
// It uses the system clock with the shortest practical delays.
func newTestDriver(t *testing.T, f *fakeChip) *Driver {
	d, err := New(testConfig(f.pollLimit), f, zerolog.Nop())
	require.NoError(t, err)
	f.ResetTrace()
	return d
}

func testConfig(pollLimit int) Config {
	return Config{
		DataPin:      testDataPin,
		ClockPin:     testClockPin,
		PulseWidth:   time.Nanosecond,
		PollInterval: time.Nanosecond,
		PollLimit:    pollLimit,
		SettleDelay:  time.Microsecond,
		PowerDelay:   time.Microsecond * 70,
		Clock:        clock.New(),
	}
}
