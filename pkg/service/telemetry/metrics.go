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

package telemetry

import (
	"github.com/binkynet/LoadCellWorker/pkg/metrics"
)

const (
	subSystem = "telemetry"
)

var (
	// Total number of query messages published
	messagesPublishedTotal = metrics.MustRegisterCounter(subSystem,
		"messages_published_total",
		"Total number of query messages published")
	// Total number of failed publications
	publishErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"publish_errors_total",
		"Total number of query messages that failed to publish")
	// Total number of commands received, per command
	commandsReceivedTotal = metrics.MustRegisterCounterVec(subSystem,
		"commands_received_total",
		"Total number of commands received, per command",
		"command")
	// Last reported wireless link quality
	wirelessQualityGauge = metrics.MustRegisterGauge(subSystem,
		"wireless_quality",
		"Last reported wireless link quality")
	// Last measured command latency
	latencyGauge = metrics.MustRegisterGauge(subSystem,
		"latency_ms",
		"Latency of the last received command in milliseconds")
)
