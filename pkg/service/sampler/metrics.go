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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/binkynet/LoadCellWorker/pkg/metrics"
)

const (
	subSystem = "sampler"
)

var (
	// Total number of samples taken, per result
	samplesTotal = metrics.MustRegisterCounterVec(subSystem,
		"samples_total",
		"Total number of samples taken, per result",
		"result")
	// Total number of samples that timed out
	sampleTimeoutsTotal = metrics.MustRegisterCounter(subSystem,
		"sample_timeouts_total",
		"Total number of samples that timed out waiting for the chip")
	// Last calibrated weight
	weightGauge = metrics.MustRegisterGauge(subSystem,
		"weight",
		"Last calibrated weight")
	// Last raw value
	rawValueGauge = metrics.MustRegisterGauge(subSystem,
		"raw_value",
		"Last raw value read from the chip")
	// Total number of hand-off requests per command
	requestsTotal = metrics.MustRegisterCounterVec(subSystem,
		"requests_total",
		"Total number of requests executed by the sampler, per command",
		"command")
	// Time spent in a single read, including the wait for a conversion
	readDuration = metrics.MustRegisterHistogram(subSystem,
		"read_duration_seconds",
		"Time spent reading a sample, including the wait for a ready conversion",
		prometheus.ExponentialBuckets(0.0005, 2, 12))
)
