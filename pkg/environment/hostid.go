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
	"crypto/sha1"
	"fmt"
	"net"
	"runtime"
	"sort"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/pkg/errors"
)

const (
	hostIDApp    = "loadcell-worker"
	hostIDLength = 10
)

// HostID returns a stable identifier of this host.
// It is derived from the machine ID, falling back to the hardware
// addresses of the network interfaces.
func HostID() (string, error) {
	if id, err := machineid.ProtectedID(hostIDApp); err == nil {
		return id[:hostIDLength], nil
	}

	ifs, err := net.Interfaces()
	if err != nil {
		return "", errors.Wrap(err, "list network interfaces failed")
	}
	list := make([]string, 0, len(ifs))
	for _, v := range ifs {
		f := v.Flags
		if f&net.FlagUp != 0 && f&net.FlagLoopback == 0 {
			h := v.HardwareAddr.String()
			if len(h) > 0 {
				list = append(list, h)
			}
		}
	}
	sort.Strings(list) // sort host IDs
	list = append(list, runtime.GOOS, runtime.GOARCH)
	data := []byte(strings.Join(list, ","))
	id := fmt.Sprintf("%x", sha1.Sum(data))
	return id[:hostIDLength], nil
}
