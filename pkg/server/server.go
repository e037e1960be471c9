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
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/LoadCellWorker/pkg/hx711"
	"github.com/binkynet/LoadCellWorker/pkg/service/sampler"
)

// Config for the HTTP server.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	HTTPPort int
	// Port to listen on for SSH requests, 0 disables SSH
	SSHPort int
	// Path of the SSH host key, created when it does not exist
	HostKeyPath string
}

// Sampler gives access to the load cell.
type Sampler interface {
	Cell() *sampler.WeightCell
	Do(ctx context.Context, fn func(*hx711.Driver) error) error
	Command(ctx context.Context, cmd sampler.Command) error
}

// Server runs the HTTP & SSH servers for the service.
type Server struct {
	Config
	log       zerolog.Logger
	hostID    string
	sampler   Sampler
	ui        bubbletea.Handler
	startedAt time.Time
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, hostID string, sampler Sampler, ui bubbletea.Handler) (*Server, error) {
	if cfg.HostKeyPath == "" {
		cfg.HostKeyPath = ".ssh/id_ed25519"
	}
	return &Server{
		Config:    cfg,
		log:       log.With().Str("component", "server").Logger(),
		hostID:    hostID,
		sampler:   sampler,
		ui:        ui,
		startedAt: time.Now(),
	}, nil
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	// Prepare HTTP listener
	log := s.log
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.HTTPPort))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on address %s", httpAddr)
	}

	// Prepare HTTP server
	httpSrv := http.Server{
		Handler: s.newRouter(),
	}

	// Prepare SSH server
	var sshServer *ssh.Server
	sshAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.SSHPort))
	if s.SSHPort > 0 && s.ui != nil {
		sshServer, err = wish.NewServer(
			// The address the server will listen to.
			wish.WithAddress(sshAddr),

			// The SSH server need its own keys, this will create a keypair in the
			// given path if it doesn't exist yet.
			wish.WithHostKeyPath(s.HostKeyPath),

			// The last item in the chain is the first to be called.
			wish.WithMiddleware(
				bubbletea.Middleware(s.ui),
				activeterm.Middleware(),
				logging.Middleware(),
			),
		)
		if err != nil {
			httpLis.Close()
			return errors.Wrap(err, "could not create SSH server")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
		if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "failed to serve HTTP server")
		}
		log.Debug().Str("address", httpAddr).Msg("Done Serving HTTP")
		return nil
	})
	if sshServer != nil {
		g.Go(func() error {
			log.Debug().Str("address", sshAddr).Msg("Serving SSH")
			if err := sshServer.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
				return errors.Wrap(err, "failed to serve SSH server")
			}
			log.Debug().Str("address", sshAddr).Msg("Done Serving SSH")
			return nil
		})
	}
	g.Go(func() error {
		// Wait until context closed
		<-gctx.Done()

		log.Info().Msg("Closing servers")
		httpSrv.Shutdown(context.Background())
		if sshServer != nil {
			sshServer.Shutdown(context.Background())
		}
		return nil
	})
	return g.Wait()
}

// newRouter creates the HTTP routes.
func (s *Server) newRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/debug/pprof/*", echo.WrapHandler(http.HandlerFunc(pprof.Index)))

	e.GET("/weight", s.handleGetWeight)
	e.GET("/status", s.handleGetStatus)
	e.POST("/tare", s.handleTare)
	e.PUT("/calibration", s.handlePutCalibration)
	e.PUT("/gain", s.handlePutGain)
	e.POST("/power/down", s.commandHandler(sampler.CommandPowerDown))
	e.POST("/power/up", s.commandHandler(sampler.CommandPowerUp))
	e.POST("/reset", s.commandHandler(sampler.CommandReset))
	return e
}
