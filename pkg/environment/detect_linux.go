//    Copyright 2018 Ewout Prangsma
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

package environment

import (
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// AutoDetectBridgeType detects the default bridge type based on the environment.
// ARM boards are assumed to be a Raspberry Pi, anything else gets a
// virtual bridge.
func AutoDetectBridgeType(log zerolog.Logger) string {
	var name unix.Utsname
	if err := unix.Uname(&name); err != nil {
		log.Warn().Err(err).Msg("Uname failed, assuming virtual bridge")
		return BridgeTypeVirtual
	}
	machine := utsString(name.Machine[:])
	release := utsString(name.Release[:])
	bridgeType := bridgeTypeForMachine(machine)
	log.Debug().
		Str("machine", machine).
		Str("release", release).
		Str("bridge", bridgeType).
		Msg("Detected bridge type")
	return bridgeType
}

// utsString converts a NUL terminated utsname field.
func utsString(field []byte) string {
	if i := strings.IndexByte(string(field), 0); i >= 0 {
		field = field[:i]
	}
	return strings.TrimSpace(string(field))
}
