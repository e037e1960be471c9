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
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultWirelessPath is the kernel file with wireless link statistics.
	DefaultWirelessPath = "/proc/net/wireless"
)

// ReadWirelessQuality returns the link quality of the first wireless
// interface listed in the file at given path.
// Returns -1 when the quality cannot be determined.
func ReadWirelessQuality(path string) int {
	content, err := os.ReadFile(path)
	if err != nil {
		return -1
	}
	quality, err := parseWirelessQuality(string(content))
	if err != nil {
		return -1
	}
	return quality
}

// parseWirelessQuality extracts the link quality from the content of
// /proc/net/wireless. The first two lines are headers, the quality is
// the third field of the next line, e.g. "wlan0: 0000   70.  -40.  -256 ..."
func parseWirelessQuality(content string) (int, error) {
	lines := strings.Split(content, "\n")
	if len(lines) < 3 {
		return -1, nil
	}
	fields := strings.Fields(lines[2])
	if len(fields) <= 2 {
		return -1, nil
	}
	quality, err := strconv.ParseInt(strings.TrimRight(fields[2], "."), 10, 16)
	if err != nil {
		return -1, errors.Wrapf(err, "invalid link quality '%s'", fields[2])
	}
	return int(quality), nil
}
