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
	"sync"
	"time"
)

// Reading is a single published measurement.
type Reading struct {
	// Calibrated weight. Only meaningful when Valid is set.
	Weight float64
	// Raw value the weight was computed from
	Raw int32
	// Set when the last sample succeeded
	Valid bool
	// Time of the last sample attempt
	UpdatedAt time.Time
}

// WeightCell holds the latest reading.
// It is written by the sampler and read by everyone else.
type WeightCell struct {
	mutex   sync.RWMutex
	reading Reading
}

// Set stores a successful reading.
func (c *WeightCell) Set(weight float64, raw int32) Reading {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reading = Reading{
		Weight:    weight,
		Raw:       raw,
		Valid:     true,
		UpdatedAt: time.Now(),
	}
	return c.reading
}

// Clear marks the cell empty after a failed sample.
func (c *WeightCell) Clear() Reading {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reading = Reading{UpdatedAt: time.Now()}
	return c.reading
}

// Get returns the latest weight, if any.
func (c *WeightCell) Get() (float64, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.reading.Weight, c.reading.Valid
}

// Snapshot returns the latest reading.
func (c *WeightCell) Snapshot() Reading {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.reading
}
