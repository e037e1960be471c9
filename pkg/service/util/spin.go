// Copyright 2024 Ewout Prangsma
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

package util

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// SpinWait blocks the calling goroutine until at least d has elapsed
// on the given clock.
// It keeps re-sampling the clock and never sleeps or yields, so the
// calling OS thread is fully occupied for the duration.
// Use it only for edge timing that OS sleeps cannot guarantee.
func SpinWait(c clock.Clock, d time.Duration) {
	if d <= 0 {
		return
	}
	start := c.Now()
	for c.Since(start) < d {
		// Spin
	}
}

// SpinLock is a non-blocking ownership flag.
// It is never waited on; a failed TryLock means someone else holds it.
type SpinLock struct {
	flags uint32
}

// Try to lock the spinlock.
// Returns true when locked, false otherwise.
func (l *SpinLock) TryLock() bool {
	return atomic.CompareAndSwapUint32(&l.flags, 0, 1)
}

// Unlock the spinlock.
func (l *SpinLock) Unlock() {
	atomic.StoreUint32(&l.flags, 0)
}
