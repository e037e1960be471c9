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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGain(t *testing.T) {
	require.Equal(t, 1, GainA128.Pulses())
	require.Equal(t, 2, GainB32.Pulses())
	require.Equal(t, 3, GainA64.Pulses())
	require.Equal(t, "A", GainA128.Channel())
	require.Equal(t, "B", GainB32.Channel())
	require.Equal(t, "A", GainA64.Channel())
	require.False(t, Gain(0).IsValid())
	require.False(t, Gain(4).IsValid())
	require.Equal(t, "Gain(4)", Gain(4).String())
}

func TestParseGain(t *testing.T) {
	for _, g := range []Gain{GainA128, GainB32, GainA64} {
		parsed, err := ParseGain(g.String())
		require.NoError(t, err)
		require.Equal(t, g, parsed)
	}
	g, err := ParseGain(" B ")
	require.NoError(t, err)
	require.Equal(t, GainB32, g)

	_, err = ParseGain("a32")
	require.True(t, IsInvalidGain(err))
}
