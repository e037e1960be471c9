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

func TestFlipSignBitIsSelfInverse(t *testing.T) {
	for x := uint32(0); x < 1<<24; x++ {
		y := uint32(FlipSignBit(x))
		if y > 0xFFFFFF {
			t.Fatalf("FlipSignBit(%#x) = %#x, out of 24-bit range", x, y)
		}
		if back := uint32(FlipSignBit(y)); back != x {
			t.Fatalf("FlipSignBit(FlipSignBit(%#x)) = %#x", x, back)
		}
	}
}

func TestFlipSignBitValues(t *testing.T) {
	require.Equal(t, int32(0x800000), FlipSignBit(0))
	require.Equal(t, int32(0), FlipSignBit(0x800000))
	require.Equal(t, int32(0x7FFFFF), FlipSignBit(0xFFFFFF))
	require.Equal(t, int32(0xFFFFFF), FlipSignBit(0x7FFFFF))
}

func TestNewSequence(t *testing.T) {
	f := newFakeChip(10)
	d, err := New(testConfig(10), f, zerolog.Nop())
	require.NoError(t, err)
	// Power down, power up, 10 priming pulses
	require.Equal(t, "LHL"+strings.Repeat("HL", primingPulses), f.Trace())
	require.Equal(t, GainA128, d.Gain())
	require.Equal(t, defaultCalibration(), d.Calibration())
}

func TestNewFailures(t *testing.T) {
	f := newFakeChip(10)
	f.outputErr = errors.New("busy")
	_, err := New(testConfig(10), f, zerolog.Nop())
	require.Error(t, err)
	require.Empty(t, f.Trace())

	f = newFakeChip(10)
	f.inputErr = errors.New("busy")
	_, err = New(testConfig(10), f, zerolog.Nop())
	require.Error(t, err)
	require.Empty(t, f.Trace())

	config := testConfig(10)
	config.Gain = Gain(7)
	_, err = New(config, newFakeChip(10), zerolog.Nop())
	require.True(t, IsInvalidGain(err))

	config = testConfig(10)
	config.ClockPin = config.DataPin
	_, err = New(config, newFakeChip(10), zerolog.Nop())
	require.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.setDefaults()
	require.Equal(t, GainA128, c.Gain)
	require.Equal(t, DefaultPulseWidth, c.PulseWidth)
	require.Equal(t, DefaultPollInterval, c.PollInterval)
	require.Equal(t, DefaultPollLimit, c.PollLimit)
	require.Equal(t, DefaultSettleDelay, c.SettleDelay)
	require.Equal(t, DefaultPowerDelay, c.PowerDelay)
	require.NotNil(t, c.Clock)
}

func TestReadRaw(t *testing.T) {
	f := newFakeChip(10, raw(8661777), raw(0xFFFFFF), raw(0))
	d := newTestDriver(t, f)

	v, err := d.ReadRaw()
	require.NoError(t, err)
	require.Equal(t, int32(8661777), v)
	// Ready poll, then 24 x (high, sample, low), then 1 trailing pulse
	require.Equal(t, "P"+strings.Repeat("HSL", dataBits)+"HL", f.Trace())

	// All ones after the flip
	v, err = d.ReadRaw()
	require.NoError(t, err)
	require.Equal(t, int32(0xFFFFFF), v)

	v, err = d.ReadRaw()
	require.NoError(t, err)
	require.Equal(t, int32(0), v)
}

func TestClockEdgesRespectPulseWidth(t *testing.T) {
	const pulseWidth = time.Microsecond * 100
	f := newFakeChip(10, raw(8661777), raw(1))
	config := testConfig(f.pollLimit)
	config.PulseWidth = pulseWidth
	config.PowerDelay = pulseWidth * 2
	d, err := New(config, f, zerolog.Nop())
	require.NoError(t, err)

	_, err = d.ReadRaw()
	require.NoError(t, err)
	// Reads the next conversion with 3 trailing pulses
	require.NoError(t, d.SetGain(GainA64))

	edges := f.Edges()
	// Reset, priming, 2 transfers
	require.Len(t, edges, 2+2*primingPulses+2*(dataBits+1)+2*(dataBits+3))
	for i := 1; i < len(edges); i++ {
		gap := edges[i].Sub(edges[i-1])
		require.Truef(t, gap >= pulseWidth, "edge %d follows previous edge after %s", i, gap)
	}
}

func TestReadRawTimeout(t *testing.T) {
	const pollLimit = 25
	f := newFakeChip(pollLimit, timeout(), raw(42))
	d := newTestDriver(t, f)

	_, err := d.ReadRaw()
	require.Error(t, err)
	require.True(t, IsTimeout(err))
	require.Equal(t, strings.Repeat("P", pollLimit+1), f.Trace(), "polls")

	// Chip recovers
	v, err := d.ReadRaw()
	require.NoError(t, err)
	require.Equal(t, int32(42), v)
}

func TestReadRawCompletesTransferOnError(t *testing.T) {
	f := newFakeChip(10, raw(1))
	d := newTestDriver(t, f)

	f.writeErr = errors.New("line lost")
	_, err := d.ReadRaw()
	require.Error(t, err)
	require.False(t, IsTimeout(err))
	require.Equal(t, "P"+strings.Repeat("HSL", dataBits)+"HL", f.Trace())
}

func TestTrailingPulsesFollowGain(t *testing.T) {
	for _, gain := range []Gain{GainA128, GainB32, GainA64} {
		t.Run(gain.String(), func(t *testing.T) {
			f := newFakeChip(10, raw(5), raw(5))
			config := testConfig(10)
			config.Gain = gain
			d, err := New(config, f, zerolog.Nop())
			require.NoError(t, err)
			f.ResetTrace()

			_, err = d.ReadRaw()
			require.NoError(t, err)
			_, err = d.ReadRaw()
			require.NoError(t, err)

			trace := f.Trace()
			require.Equal(t, 2*(dataBits+gain.Pulses()), strings.Count(trace, "H"))
			require.Equal(t, 2*dataBits, strings.Count(trace, "S"))
			require.Equal(t, []int{gain.Pulses(), gain.Pulses()}, f.Trailing())
		})
	}
}

func TestSetGain(t *testing.T) {
	f := newFakeChip(10, raw(5), raw(6))
	d := newTestDriver(t, f)

	require.True(t, IsInvalidGain(d.SetGain(Gain(0))))
	require.Empty(t, f.Trace(), "invalid gain must not touch the chip")

	require.NoError(t, d.SetGain(GainA64))
	require.Equal(t, GainA64, d.Gain())
	// One read is performed to send the new gain
	require.Equal(t, []int{3}, f.Trailing())
}

func TestGetValue(t *testing.T) {
	f := newFakeChip(5, raw(5), timeout())
	d := newTestDriver(t, f)

	v, ok := d.GetValue()
	require.True(t, ok)
	require.Equal(t, int32(5), v)

	_, ok = d.GetValue()
	require.False(t, ok)
}

func TestGetValueAverage(t *testing.T) {
	f := newFakeChip(5, raw(10), timeout(), raw(20), raw(25))
	d := newTestDriver(t, f)

	// Timed out reads are skipped, mean is truncated
	v, ok := d.GetValueAverage(4)
	require.True(t, ok)
	require.Equal(t, int32(18), v)

	f = newFakeChip(5, timeout(), timeout())
	d = newTestDriver(t, f)
	_, ok = d.GetValueAverage(2)
	require.False(t, ok)

	_, ok = d.GetValueAverage(0)
	require.False(t, ok)
}

func TestGetWeightAveragesToZero(t *testing.T) {
	f := newFakeChip(10, raw(8388608), raw(8388610), raw(8388606))
	d := newTestDriver(t, f)
	d.SetOffsetA(8388608)
	d.SetReferenceUnitA(432.0)

	w, ok := d.GetWeight(3)
	require.True(t, ok)
	require.Equal(t, 0.0, w)
}

func TestGetWeightSingleReading(t *testing.T) {
	f := newFakeChip(10, raw(8669777))
	d := newTestDriver(t, f)
	d.SetOffsetA(8661777)
	d.SetReferenceUnitA(960.33)

	w, ok := d.GetWeight(1)
	require.True(t, ok)
	require.InDelta(t, 8.33, w, 0.01)
}

func TestGetWeightTimeout(t *testing.T) {
	f := newFakeChip(5, timeout())
	d := newTestDriver(t, f)
	_, ok := d.GetWeight(1)
	require.False(t, ok)
}

func TestTare(t *testing.T) {
	f := newFakeChip(10, raw(1000), raw(1002), raw(1001), raw(1001))
	d := newTestDriver(t, f)
	d.SetReferenceUnitA(2)

	require.True(t, d.Tare(2))
	require.Equal(t, int32(1001), d.OffsetA())

	w, ok := d.GetWeight(2)
	require.True(t, ok)
	require.InDelta(t, 0.0, w, 1e-9)
}

func TestTareFailureKeepsOffset(t *testing.T) {
	f := newFakeChip(5, timeout())
	d := newTestDriver(t, f)
	d.SetOffsetA(77)

	require.False(t, d.Tare(1))
	require.Equal(t, int32(77), d.OffsetA())
}

func TestChannelB(t *testing.T) {
	// First read sends the B gain, its value is discarded
	f := newFakeChip(10, raw(9999), raw(500), raw(500), raw(9999), raw(520))
	d := newTestDriver(t, f)
	d.SetReferenceUnitB(4)

	require.True(t, d.TareB(2))
	require.Equal(t, int32(500), d.OffsetB())
	require.Equal(t, GainB32, d.Gain())
	require.Equal(t, int32(1), d.OffsetA(), "channel A untouched")

	w, ok := d.GetWeightB(1)
	require.True(t, ok)
	require.InDelta(t, 5.0, w, 1e-9)
	require.Equal(t, []int{2, 2, 2, 2, 2}, f.Trailing())
}

func TestCalibrationAccessors(t *testing.T) {
	f := newFakeChip(10)
	d := newTestDriver(t, f)

	d.SetOffsetA(-3)
	d.SetOffsetB(4)
	d.SetReferenceUnitA(1.5)
	d.SetReferenceUnitB(-2.5)
	require.Equal(t, int32(-3), d.OffsetA())
	require.Equal(t, int32(4), d.OffsetB())
	require.Equal(t, 1.5, d.ReferenceUnitA())
	require.Equal(t, -2.5, d.ReferenceUnitB())

	cal := Calibration{OffsetA: 10, OffsetB: 20, ReferenceUnitA: 2, ReferenceUnitB: 4}
	d.SetCalibration(cal)
	require.Equal(t, cal, d.Calibration())
	require.Equal(t, 5.0, cal.Weight(20))
	require.Equal(t, -5.0, cal.WeightB(0))
	require.Empty(t, f.Trace(), "calibration must not touch the chip")
}

func TestPowerSequencing(t *testing.T) {
	f := newFakeChip(10)
	d := newTestDriver(t, f)

	require.NoError(t, d.PowerDown())
	require.Equal(t, "LH", f.Trace())
	f.ResetTrace()
	require.NoError(t, d.PowerUp())
	require.Equal(t, "L", f.Trace())
	f.ResetTrace()
	require.NoError(t, d.Reset())
	require.Equal(t, "LHL", f.Trace())

	f.writeErr = errors.New("line lost")
	require.Error(t, d.PowerDown())
	require.Error(t, d.Reset())
}

func TestConcurrentUsePanics(t *testing.T) {
	f := newFakeChip(10, raw(1))
	d := newTestDriver(t, f)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.mutex.Lock()
	f.entered, f.release = entered, release
	f.mutex.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.GetValue()
	}()
	<-entered
	require.PanicsWithValue(t, "hx711: concurrent use of Driver", func() {
		d.Gain()
	})
	close(release)
	wg.Wait()

	// Ownership is released afterwards
	require.Equal(t, GainA128, d.Gain())
}

// Timing of the simulated chip. The power down threshold is far above
// the pulse width so scheduler pauses during a transfer do not power
// the chip down. Conversions take longer than a power cycle, so the
// priming pulses after a reset are ignored.
const (
	simConversionTime     = time.Millisecond * 80
	simPowerDownThreshold = time.Millisecond * 50
	simPowerDelay         = time.Millisecond * 60
)

// The chip resumes on A/128 after a power cycle while the driver keeps
// its configured gain, so the first conversion after a reset is taken
// at A/128. Subsequent conversions use the configured gain again.
func TestFirstReadAfterResetUsesPowerOnGain(t *testing.T) {
	var mutex sync.Mutex
	var gains []int
	api, err := bridge.NewVirtualBridge(bridge.VirtualConfig{
		DataPin:            testDataPin,
		ClockPin:           testClockPin,
		ConversionTime:     simConversionTime,
		PowerDownThreshold: simPowerDownThreshold,
		Clock:              clock.New(),
		Source: func(gainPulses int) uint32 {
			mutex.Lock()
			defer mutex.Unlock()
			gains = append(gains, gainPulses)
			return 0x800000 + uint32(gainPulses)
		},
	})
	require.NoError(t, err)
	defer api.Close()

	config := testConfig(DefaultPollLimit)
	config.PulseWidth = time.Microsecond
	config.PollInterval = time.Microsecond * 50
	config.PowerDelay = simPowerDelay
	d, err := New(config, api, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.SetGain(GainB32))
	v, err := d.ReadRaw()
	require.NoError(t, err)
	require.Equal(t, int32(2), v)

	require.NoError(t, d.Reset())
	require.Equal(t, GainB32, d.Gain())
	v, err = d.ReadRaw()
	require.NoError(t, err)
	require.Equal(t, int32(1), v, "first conversion after reset")
	v, err = d.ReadRaw()
	require.NoError(t, err)
	require.Equal(t, int32(2), v)

	mutex.Lock()
	defer mutex.Unlock()
	require.Equal(t, []int{1, 2, 1, 2}, gains)
}
