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

// Calibration of both channels.
// A weight is (value - Offset) / ReferenceUnit.
type Calibration struct {
	OffsetA        int32
	OffsetB        int32
	ReferenceUnitA float64
	ReferenceUnitB float64
}

// defaultCalibration returns the calibration of a new driver.
// It yields raw values, not physical units.
func defaultCalibration() Calibration {
	return Calibration{
		OffsetA:        1,
		OffsetB:        1,
		ReferenceUnitA: 1,
		ReferenceUnitB: 1,
	}
}

// Weight converts an (averaged) value into a weight using the
// calibration of channel A.
func (c Calibration) Weight(value int32) float64 {
	return computeWeight(value, c.OffsetA, c.ReferenceUnitA)
}

// WeightB converts an (averaged) value into a weight using the
// calibration of channel B.
func (c Calibration) WeightB(value int32) float64 {
	return computeWeight(value, c.OffsetB, c.ReferenceUnitB)
}

// computeWeight does not guard against a zero reference unit.
func computeWeight(value, offset int32, referenceUnit float64) float64 {
	return float64(int64(value)-int64(offset)) / referenceUnit
}

// Calibration returns a copy of the current calibration.
func (d *Driver) Calibration() Calibration {
	d.acquire()
	defer d.release()

	return d.cal
}

// SetCalibration replaces the calibration of both channels.
func (d *Driver) SetCalibration(cal Calibration) {
	d.acquire()
	defer d.release()

	d.cal = cal
}

// SetOffsetA sets the zero point of channel A.
func (d *Driver) SetOffsetA(offset int32) {
	d.acquire()
	defer d.release()

	d.cal.OffsetA = offset
}

// SetOffsetB sets the zero point of channel B.
func (d *Driver) SetOffsetB(offset int32) {
	d.acquire()
	defer d.release()

	d.cal.OffsetB = offset
}

// OffsetA returns the zero point of channel A.
func (d *Driver) OffsetA() int32 {
	d.acquire()
	defer d.release()

	return d.cal.OffsetA
}

// OffsetB returns the zero point of channel B.
func (d *Driver) OffsetB() int32 {
	d.acquire()
	defer d.release()

	return d.cal.OffsetB
}

// SetReferenceUnitA sets the raw units per physical unit of channel A.
// It must be non-zero before weights are requested.
func (d *Driver) SetReferenceUnitA(referenceUnit float64) {
	d.acquire()
	defer d.release()

	d.cal.ReferenceUnitA = referenceUnit
}

// SetReferenceUnitB sets the raw units per physical unit of channel B.
// It must be non-zero before weights are requested.
func (d *Driver) SetReferenceUnitB(referenceUnit float64) {
	d.acquire()
	defer d.release()

	d.cal.ReferenceUnitB = referenceUnit
}

// ReferenceUnitA returns the raw units per physical unit of channel A.
func (d *Driver) ReferenceUnitA() float64 {
	d.acquire()
	defer d.release()

	return d.cal.ReferenceUnitA
}

// ReferenceUnitB returns the raw units per physical unit of channel B.
func (d *Driver) ReferenceUnitB() float64 {
	d.acquire()
	defer d.release()

	return d.cal.ReferenceUnitB
}
