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

package sampler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/mattn/go-pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/LoadCellWorker/pkg/hx711"
)

// Service samples the load cell periodically.
// It is the only owner of the driver; all other goroutines reach the
// driver through Do or Command.
type Service interface {
	// Run the sampler until the given context is canceled.
	// Returns an error when the driver cannot be created.
	Run(ctx context.Context) error
	// Cell holding the latest reading
	Cell() *WeightCell
	// Do executes the given function with the driver, in between
	// two samples. It returns the error of the function.
	Do(ctx context.Context, fn func(*hx711.Driver) error) error
	// Command executes the given command with the driver.
	Command(ctx context.Context, cmd Command) error
	// Subscribe registers a callback that is invoked for every new reading.
	Subscribe(cb func(Reading)) context.CancelFunc
}

// Config of the sampler.
type Config struct {
	// Time between samples
	Period time.Duration
	// Initial offset of both channels
	Offset int32
	// Initial reference unit of both channels
	Scale float64
}

// StatusLEDs are used to show the health of the sampler.
type StatusLEDs interface {
	SetGreenLED(on bool) error
	SetRedLED(on bool) error
	BlinkGreenLED(delay time.Duration) error
}

type Dependencies struct {
	Log zerolog.Logger
	// NewDriver creates the driver. It is called by Run on the
	// thread that owns the driver.
	NewDriver func(log zerolog.Logger) (*hx711.Driver, error)
	Status    StatusLEDs
}

type service struct {
	Config
	Dependencies

	cell     WeightCell
	updates  *pubsub.PubSub
	requests chan request
	done     chan struct{}
	stopOnce sync.Once
	paused   bool

	subsMutex   sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	cb func(Reading)
}

type request struct {
	name   string
	fn     func(*hx711.Driver) error
	result chan error
}

// NewService creates a new sampler.
func NewService(conf Config, deps Dependencies) Service {
	deps.Log = deps.Log.With().Str("component", "sampler").Logger()
	if conf.Period <= 0 {
		conf.Period = time.Millisecond * 20
	}
	if conf.Scale == 0 {
		conf.Scale = 1
	}
	s := &service{
		Config:       conf,
		Dependencies: deps,
		updates:      pubsub.New(),
		requests:     make(chan request),
		done:         make(chan struct{}),
		subscribers:  make(map[*subscriber]struct{}),
	}
	// Leave matches callbacks by code pointer, so all subscribers share
	// a single callback.
	s.updates.Sub(s.dispatch)
	return s
}

// Cell holding the latest reading
func (s *service) Cell() *WeightCell {
	return &s.cell
}

// Run the sampler until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	// Edge timing must not be interrupted by goroutine migration
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer s.stopOnce.Do(func() { close(s.done) })

	log := s.Log
	driver, err := s.NewDriver(log)
	if err != nil {
		s.Status.SetRedLED(true)
		log.Error().Err(err).Msg("Failed to create driver")
		return errors.Wrap(err, "create driver failed")
	}
	// The constants apply to whichever channel is selected
	driver.SetOffsetA(s.Offset)
	driver.SetReferenceUnitA(s.Scale)
	driver.SetOffsetB(s.Offset)
	driver.SetReferenceUnitB(s.Scale)
	log.Info().
		Int32("offset", s.Offset).
		Float64("scale", s.Scale).
		Dur("period", s.Period).
		Msg("Sampler started")
	s.Status.BlinkGreenLED(time.Millisecond * 250)

	defer func() {
		if err := driver.PowerDown(); err != nil {
			log.Warn().Err(err).Msg("Power down on shutdown failed")
		}
	}()

	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()
	recentErrors := 0
	for {
		select {
		case <-ctx.Done():
			// Context canceled
			return nil
		case req := <-s.requests:
			requestsTotal.WithLabelValues(req.name).Inc()
			req.result <- req.fn(driver)
		case <-ticker.C:
			if !s.paused {
				recentErrors = s.sample(driver, recentErrors)
			}
		}
	}
}

// sample takes a single sample and publishes it.
// Returns the updated number of subsequent failed samples.
func (s *service) sample(driver *hx711.Driver, recentErrors int) int {
	start := time.Now()
	value, err := driver.ReadRaw()
	readDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if hx711.IsTimeout(err) {
			sampleTimeoutsTotal.Inc()
			samplesTotal.WithLabelValues("timeout").Inc()
		} else {
			samplesTotal.WithLabelValues("error").Inc()
		}
		if recentErrors == 0 {
			s.Log.Warn().Err(err).Msg("Sample failed")
			s.Status.SetRedLED(true)
		}
		s.updates.Pub(s.cell.Clear())
		return recentErrors + 1
	}
	if recentErrors > 0 {
		s.Log.Info().Int("failed", recentErrors).Msg("Sampling recovered")
		s.Status.SetRedLED(false)
	}
	cal := driver.Calibration()
	var weight float64
	if driver.Gain() == hx711.GainB32 {
		weight = cal.WeightB(value)
	} else {
		weight = cal.Weight(value)
	}
	samplesTotal.WithLabelValues("ok").Inc()
	weightGauge.Set(weight)
	rawValueGauge.Set(float64(value))
	s.updates.Pub(s.cell.Set(weight, value))
	return 0
}

// Do executes the given function with the driver.
func (s *service) Do(ctx context.Context, fn func(*hx711.Driver) error) error {
	return s.do(ctx, "do", fn)
}

func (s *service) do(ctx context.Context, name string, fn func(*hx711.Driver) error) error {
	req := request{
		name:   name,
		fn:     fn,
		result: make(chan error, 1),
	}
	select {
	case s.requests <- req:
		// Accepted
	case <-s.done:
		return errors.WithStack(NotRunningError)
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once accepted, the request always completes
	return <-req.result
}

// Command executes the given command with the driver.
// While the chip is powered down, sampling is paused.
func (s *service) Command(ctx context.Context, cmd Command) error {
	fn, err := cmd.request()
	if err != nil {
		return err
	}
	log := s.Log.With().Str("command", string(cmd)).Logger()
	log.Info().Msg("Executing command")
	return s.do(ctx, string(cmd), func(d *hx711.Driver) error {
		if err := fn(d); err != nil {
			log.Warn().Err(err).Msg("Command failed")
			return err
		}
		switch cmd {
		case CommandPowerDown:
			s.paused = true
		case CommandPowerUp, CommandReset:
			s.paused = false
		}
		return nil
	})
}

// Subscribe registers a callback that is invoked for every new reading.
// Callbacks run on their own goroutine and may be invoked concurrently,
// so readings can arrive out of order; use Reading.UpdatedAt to order them.
func (s *service) Subscribe(cb func(Reading)) context.CancelFunc {
	sub := &subscriber{cb: cb}
	s.subsMutex.Lock()
	s.subscribers[sub] = struct{}{}
	s.subsMutex.Unlock()
	return func() {
		s.subsMutex.Lock()
		delete(s.subscribers, sub)
		s.subsMutex.Unlock()
	}
}

// dispatch passes a published reading to all subscribers.
func (s *service) dispatch(r Reading) {
	s.subsMutex.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subsMutex.Unlock()
	for _, sub := range subs {
		sub.cb(r)
	}
}
