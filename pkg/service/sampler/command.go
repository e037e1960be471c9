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
	"strings"

	"github.com/pkg/errors"

	"github.com/binkynet/LoadCellWorker/pkg/hx711"
)

// Command is a named request that can be sent from outside the
// process (MQTT, HTTP, dashboard).
type Command string

const (
	CommandTare      Command = "tare"
	CommandTareB     Command = "tare_b"
	CommandPowerDown Command = "power_down"
	CommandPowerUp   Command = "power_up"
	CommandReset     Command = "reset"

	// Number of reads averaged for a tare command
	DefaultTareTimes = 15
)

var (
	// UnknownCommandError is returned for a command that is not supported.
	UnknownCommandError = errors.New("unknown command")
	IsUnknownCommand    = isErrorFunc(UnknownCommandError)
	// TareFailedError is returned when none of the tare reads succeeded.
	TareFailedError = errors.New("tare failed")
	IsTareFailed    = isErrorFunc(TareFailedError)
	// NotRunningError is returned for requests when the sampler is not running.
	NotRunningError = errors.New("sampler not running")
	IsNotRunning    = isErrorFunc(NotRunningError)
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}

// ParseCommand parses the name of a command.
func ParseCommand(s string) (Command, error) {
	cmd := Command(strings.ToLower(strings.TrimSpace(s)))
	switch cmd {
	case CommandTare, CommandTareB, CommandPowerDown, CommandPowerUp, CommandReset:
		return cmd, nil
	}
	return "", errors.Wrapf(UnknownCommandError, "'%s'", s)
}

// TareRequest returns a request that tares the given channel with
// the average of the given number of reads.
func TareRequest(channelB bool, times int) func(*hx711.Driver) error {
	if times <= 0 {
		times = DefaultTareTimes
	}
	return func(d *hx711.Driver) error {
		var ok bool
		if channelB {
			ok = d.TareB(times)
		} else {
			ok = d.Tare(times)
		}
		if !ok {
			return errors.WithStack(TareFailedError)
		}
		return nil
	}
}

// request returns the driver request that implements the command.
func (cmd Command) request() (func(*hx711.Driver) error, error) {
	switch cmd {
	case CommandTare:
		return TareRequest(false, DefaultTareTimes), nil
	case CommandTareB:
		return TareRequest(true, DefaultTareTimes), nil
	case CommandPowerDown:
		return (*hx711.Driver).PowerDown, nil
	case CommandPowerUp:
		return (*hx711.Driver).PowerUp, nil
	case CommandReset:
		return (*hx711.Driver).Reset, nil
	}
	return nil, errors.Wrapf(UnknownCommandError, "'%s'", string(cmd))
}
