// Copyright 2023 Ewout Prangsma
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

package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"github.com/binkynet/LoadCellWorker/pkg/hx711"
	"github.com/binkynet/LoadCellWorker/pkg/service/sampler"
)

type weightResponse struct {
	Valid   bool    `json:"valid"`
	Weight  float64 `json:"weight"`
	Raw     int32   `json:"raw"`
	Updated string  `json:"updated,omitempty"`
}

type calibration struct {
	OffsetA        *int32   `json:"offset_a,omitempty"`
	OffsetB        *int32   `json:"offset_b,omitempty"`
	ReferenceUnitA *float64 `json:"reference_unit_a,omitempty"`
	ReferenceUnitB *float64 `json:"reference_unit_b,omitempty"`
}

type statusResponse struct {
	HostID        string      `json:"host_id"`
	Gain          string      `json:"gain"`
	Channel       string      `json:"channel"`
	Calibration   calibration `json:"calibration"`
	Uptime        string      `json:"uptime"`
	UptimeSeconds int64       `json:"uptime_seconds"`
}

type gainRequest struct {
	Gain string `json:"gain"`
}

func newCalibration(c hx711.Calibration) calibration {
	return calibration{
		OffsetA:        &c.OffsetA,
		OffsetB:        &c.OffsetB,
		ReferenceUnitA: &c.ReferenceUnitA,
		ReferenceUnitB: &c.ReferenceUnitB,
	}
}

// GET /weight
func (s *Server) handleGetWeight(c echo.Context) error {
	r := s.sampler.Cell().Snapshot()
	resp := weightResponse{
		Valid: r.Valid,
	}
	if r.Valid {
		resp.Weight = r.Weight
		resp.Raw = r.Raw
	}
	if !r.UpdatedAt.IsZero() {
		resp.Updated = humanize.Time(r.UpdatedAt)
	}
	return c.JSON(http.StatusOK, resp)
}

// GET /status
func (s *Server) handleGetStatus(c echo.Context) error {
	var gain hx711.Gain
	var cal hx711.Calibration
	if err := s.sampler.Do(c.Request().Context(), func(d *hx711.Driver) error {
		gain = d.Gain()
		cal = d.Calibration()
		return nil
	}); err != nil {
		return toHTTPError(err)
	}
	uptime := time.Since(s.startedAt)
	return c.JSON(http.StatusOK, statusResponse{
		HostID:        s.hostID,
		Gain:          gain.String(),
		Channel:       gain.Channel(),
		Calibration:   newCalibration(cal),
		Uptime:        strings.TrimSpace(humanize.RelTime(s.startedAt, time.Now(), "", "")),
		UptimeSeconds: int64(uptime.Seconds()),
	})
}

// POST /tare?times=N&channel=a|b
func (s *Server) handleTare(c echo.Context) error {
	times := sampler.DefaultTareTimes
	if v := c.QueryParam("times"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "times must be a positive number")
		}
		times = n
	}
	var channelB bool
	switch strings.ToLower(c.QueryParam("channel")) {
	case "", "a":
		channelB = false
	case "b":
		channelB = true
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "channel must be 'a' or 'b'")
	}
	var cal hx711.Calibration
	tare := sampler.TareRequest(channelB, times)
	if err := s.sampler.Do(c.Request().Context(), func(d *hx711.Driver) error {
		if err := tare(d); err != nil {
			return err
		}
		cal = d.Calibration()
		return nil
	}); err != nil {
		return toHTTPError(err)
	}
	s.log.Info().Bool("channel-b", channelB).Int("times", times).Msg("Tared")
	return c.JSON(http.StatusOK, newCalibration(cal))
}

// PUT /calibration
// Only the given fields are changed.
func (s *Server) handlePutCalibration(c echo.Context) error {
	var req calibration
	if err := c.Bind(&req); err != nil {
		return err
	}
	if (req.ReferenceUnitA != nil && *req.ReferenceUnitA == 0) ||
		(req.ReferenceUnitB != nil && *req.ReferenceUnitB == 0) {
		return echo.NewHTTPError(http.StatusBadRequest, "reference unit must not be zero")
	}
	var cal hx711.Calibration
	if err := s.sampler.Do(c.Request().Context(), func(d *hx711.Driver) error {
		cal = d.Calibration()
		if req.OffsetA != nil {
			cal.OffsetA = *req.OffsetA
		}
		if req.OffsetB != nil {
			cal.OffsetB = *req.OffsetB
		}
		if req.ReferenceUnitA != nil {
			cal.ReferenceUnitA = *req.ReferenceUnitA
		}
		if req.ReferenceUnitB != nil {
			cal.ReferenceUnitB = *req.ReferenceUnitB
		}
		d.SetCalibration(cal)
		return nil
	}); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, newCalibration(cal))
}

// PUT /gain
func (s *Server) handlePutGain(c echo.Context) error {
	var req gainRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	gain, err := hx711.ParseGain(req.Gain)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.sampler.Do(c.Request().Context(), func(d *hx711.Driver) error {
		return d.SetGain(gain)
	}); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, gainRequest{Gain: gain.String()})
}

// commandHandler returns a handler that executes the given command.
func (s *Server) commandHandler(cmd sampler.Command) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.sampler.Command(c.Request().Context(), cmd); err != nil {
			return toHTTPError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// toHTTPError converts a sampler error into an HTTP error.
func toHTTPError(err error) error {
	switch {
	case sampler.IsNotRunning(err), sampler.IsTareFailed(err), hx711.IsTimeout(err):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case hx711.IsInvalidGain(err), sampler.IsUnknownCommand(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
