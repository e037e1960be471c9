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

import "time"

// QueryMessage is published periodically with the latest weight.
type QueryMessage struct {
	Type string `json:"type"`
	// Unix time in milliseconds
	Timestamp int64 `json:"timestamp"`
	// Link quality of the wireless interface, -1 if unknown
	WirelessQuality int `json:"wireless_quality"`
	// Latency of the last received command in milliseconds
	Latency int64 `json:"latency"`
	// Latest weight, -1 when no valid reading is available
	Weight float64 `json:"weight"`
}

// CommandMessage is received on the command topic.
type CommandMessage struct {
	Type string `json:"type"`
	// Unix time in milliseconds at which the command was sent
	Timestamp int64 `json:"timestamp"`
	// Command to execute, optional
	Command string `json:"command,omitempty"`
}

const (
	messageTypeQuery = "query"
	noWeight         = -1
)

func timestampMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
