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

package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/binkynet/LoadCellWorker/pkg/service/sampler"
)

// Source of the data shown in the dashboard.
type Source interface {
	Cell() *sampler.WeightCell
	Command(ctx context.Context, cmd sampler.Command) error
	Subscribe(cb func(sampler.Reading)) context.CancelFunc
}

const (
	refreshInterval = time.Millisecond * 100
	loadAvgInterval = time.Second * 2
	commandTimeout  = time.Second * 10
)

type Root struct {
	source   Source
	readings *readings
	hostID   string
	term     string
	width    int
	height   int
	loadAvg  string
	reading  sampler.Reading
	status   string
	help     help.Model
	styles   styles

	showFile struct {
		active   bool
		viewPort viewport.Model
	}
}

var _ tea.Model = Root{}

// New creates the dashboard model.
func New(source Source, hostID, term string, width, height int, renderer *lipgloss.Renderer) Root {
	if renderer == nil {
		renderer = lipgloss.DefaultRenderer()
	}
	return Root{
		source:   source,
		readings: subscribe(source),
		reading:  source.Cell().Snapshot(),
		hostID:   hostID,
		term:     term,
		width:    width,
		height:   height,
		help:     help.New(),
		styles:   newStyles(renderer),
	}
}

// Close stops the delivery of readings.
func (r Root) Close() {
	r.readings.cancel()
}

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return tea.Batch(r.readings.next(), doReloadCPULoadAvg())
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case readingMsg:
		r.reading = sampler.Reading(msg)
		return r, doAwaitReading()
	case awaitReadingMsg:
		return r, r.readings.next()
	case loadAvgMsg:
		r.loadAvg = string(msg)
		return r, doReloadCPULoadAvg()
	case commandDoneMsg:
		if msg.err != nil {
			r.status = fmt.Sprintf("%s failed: %s", msg.cmd, msg.err)
		} else {
			r.status = fmt.Sprintf("%s done", msg.cmd)
		}
	case tea.WindowSizeMsg:
		r.height = msg.Height
		r.width = msg.Width
		r.help.Width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return r, tea.Quit
		case key.Matches(msg, keys.Tare):
			return r.runCommand(sampler.CommandTare)
		case key.Matches(msg, keys.TareB):
			return r.runCommand(sampler.CommandTareB)
		case key.Matches(msg, keys.PowerDown):
			return r.runCommand(sampler.CommandPowerDown)
		case key.Matches(msg, keys.PowerUp):
			return r.runCommand(sampler.CommandPowerUp)
		case key.Matches(msg, keys.Reset):
			return r.runCommand(sampler.CommandReset)
		case key.Matches(msg, keys.MemInfo):
			r = r.openFile("/proc/meminfo")
		case key.Matches(msg, keys.Back):
			r.showFile.active = false
		case key.Matches(msg, keys.Help):
			r.help.ShowAll = !r.help.ShowAll
		}
	}

	// Handle keyboard and mouse events in the viewport
	if r.showFile.active {
		var cmd tea.Cmd
		r.showFile.viewPort, cmd = r.showFile.viewPort.Update(msg)
		cmds = append(cmds, cmd)
	}

	return r, tea.Batch(cmds...)
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (r Root) View() string {
	s := r.headerView()
	if r.showFile.active {
		return s + r.showFile.viewPort.View()
	}
	return s + r.weightView() + "\n" + r.help.View(keys) + "\n"
}

func (r Root) headerView() string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		r.styles.title.Render("Load cell worker "+r.hostID),
		" ",
		strings.TrimSpace(r.loadAvg),
	) + "\n"
}

func (r Root) weightView() string {
	var lines []string
	if r.reading.Valid {
		lines = append(lines,
			r.styles.weight.Render(fmt.Sprintf("%10.2f", r.reading.Weight)),
			fmt.Sprintf("raw %d", r.reading.Raw),
		)
	} else {
		lines = append(lines, r.styles.invalid.Render("no reading"))
	}
	if !r.reading.UpdatedAt.IsZero() {
		lines = append(lines, "updated "+humanize.Time(r.reading.UpdatedAt))
	}
	if r.status != "" {
		lines = append(lines, r.styles.status.Render(r.status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

// runCommand sends the given command to the sampler in the background.
func (r Root) runCommand(cmd sampler.Command) (tea.Model, tea.Cmd) {
	r.status = fmt.Sprintf("%s ...", cmd)
	source := r.source
	return r, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return commandDoneMsg{cmd: cmd, err: source.Command(ctx, cmd)}
	}
}

func (r Root) openFile(path string) Root {
	headerHeight := lipgloss.Height(r.headerView())

	content, err := os.ReadFile(path)
	if err != nil {
		content = []byte(err.Error())
	}
	r.showFile.viewPort = viewport.New(r.width, r.height-headerHeight)
	r.showFile.viewPort.YPosition = headerHeight
	r.showFile.viewPort.SetContent(string(content))
	r.showFile.active = true

	return r
}

type readingMsg sampler.Reading

type awaitReadingMsg struct{}

type loadAvgMsg string

type commandDoneMsg struct {
	cmd sampler.Command
	err error
}

// doAwaitReading limits the redraw rate to one per refresh interval.
func doAwaitReading() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return awaitReadingMsg{}
	})
}

// readings keeps the most recent reading published by the source.
type readings struct {
	mutex   sync.Mutex
	latest  sampler.Reading
	notify  chan struct{}
	done    chan struct{}
	stop    context.CancelFunc
	stopped sync.Once
}

func subscribe(source Source) *readings {
	r := &readings{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	r.stop = source.Subscribe(r.publish)
	return r
}

func (r *readings) publish(reading sampler.Reading) {
	r.mutex.Lock()
	if reading.UpdatedAt.Before(r.latest.UpdatedAt) {
		r.mutex.Unlock()
		return
	}
	r.latest = reading
	r.mutex.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
		// Already notified
	}
}

// next waits for a reading newer than the last one delivered.
// Returns a nil message once canceled.
func (r *readings) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-r.notify:
			r.mutex.Lock()
			defer r.mutex.Unlock()
			return readingMsg(r.latest)
		case <-r.done:
			return nil
		}
	}
}

func (r *readings) cancel() {
	r.stopped.Do(func() {
		r.stop()
		close(r.done)
	})
}

func doReloadCPULoadAvg() tea.Cmd {
	return tea.Tick(loadAvgInterval, func(t time.Time) tea.Msg {
		content, err := os.ReadFile("/proc/loadavg")
		if err != nil {
			return loadAvgMsg(err.Error())
		}
		return loadAvgMsg(string(content))
	})
}
