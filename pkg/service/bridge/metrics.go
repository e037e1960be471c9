//    Copyright 2023 Ewout Prangsma
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

package bridge

import (
	"github.com/binkynet/LoadCellWorker/pkg/metrics"
)

const (
	subSystem = "bridge"
)

var (
	// Total number of pins configured
	pinsConfiguredTotal = metrics.MustRegisterCounterVec(subSystem,
		"pins_configured_total",
		"Total number of GPIO pins configured",
		"direction")
	// Total number of failed GPIO reads
	pinReadErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"pin_read_errors_total",
		"Total number of failed GPIO reads",
		"pin")
	// Total number of failed GPIO writes
	pinWriteErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"pin_write_errors_total",
		"Total number of failed GPIO writes",
		"pin")
)
