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
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Gain selects both the input channel and the amplifier gain.
// Its value is the number of clock pulses sent after the 24 data bits.
// A new gain is used by the conversion after the one in which the
// pulses were sent.
type Gain int

const (
	// GainA128 selects channel A with gain 128 (power-on default)
	GainA128 Gain = 1
	// GainB32 selects channel B with gain 32
	GainB32 Gain = 2
	// GainA64 selects channel A with gain 64
	GainA64 Gain = 3
)

// Pulses returns the number of trailing clock pulses for this gain.
func (g Gain) Pulses() int {
	return int(g)
}

// IsValid returns true when g is one of the defined gains.
func (g Gain) IsValid() bool {
	switch g {
	case GainA128, GainB32, GainA64:
		return true
	}
	return false
}

// Channel returns the input channel ("A" or "B") selected by g.
func (g Gain) Channel() string {
	if g == GainB32 {
		return "B"
	}
	return "A"
}

func (g Gain) String() string {
	switch g {
	case GainA128:
		return "a128"
	case GainB32:
		return "b32"
	case GainA64:
		return "a64"
	}
	return fmt.Sprintf("Gain(%d)", int(g))
}

// ParseGain parses a gain name as returned by Gain.String.
func ParseGain(s string) (Gain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a128", "a":
		return GainA128, nil
	case "b32", "b":
		return GainB32, nil
	case "a64":
		return GainA64, nil
	}
	return 0, errors.Wrapf(InvalidGainError, "'%s' (a128|b32|a64)", s)
}
