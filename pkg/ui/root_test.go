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
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/binkynet/LoadCellWorker/pkg/service/sampler"
)

type fakeSource struct {
	cell        sampler.WeightCell
	commands    []sampler.Command
	err         error
	subscriber  func(sampler.Reading)
	unsubscribe int
}

func (s *fakeSource) Cell() *sampler.WeightCell { return &s.cell }

func (s *fakeSource) Subscribe(cb func(sampler.Reading)) context.CancelFunc {
	s.subscriber = cb
	return func() {
		s.unsubscribe++
	}
}

func (s *fakeSource) Command(ctx context.Context, cmd sampler.Command) error {
	s.commands = append(s.commands, cmd)
	return s.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRootShowsReading(t *testing.T) {
	src := &fakeSource{}
	r := New(src, "abc123", "xterm", 80, 24, nil)
	require.Contains(t, r.View(), "abc123")
	require.Contains(t, r.View(), "no reading")

	m, _ := r.Update(readingMsg(sampler.Reading{Weight: 12.34, Raw: 8662777, Valid: true, UpdatedAt: time.Now()}))
	view := m.View()
	require.Contains(t, view, "12.34")
	require.Contains(t, view, "raw 8662777")
	require.Contains(t, view, "now")
}

func TestRootTare(t *testing.T) {
	src := &fakeSource{}
	r := New(src, "abc123", "xterm", 80, 24, nil)

	m, cmd := r.Update(runes("t"))
	require.NotNil(t, cmd)
	require.Contains(t, m.View(), "tare ...")

	msg := cmd()
	require.Equal(t, []sampler.Command{sampler.CommandTare}, src.commands)
	m, _ = m.Update(msg)
	require.Contains(t, m.View(), "tare done")

	src.err = errors.New("no reads")
	_, cmd = m.Update(runes("r"))
	m, _ = m.Update(cmd())
	require.Contains(t, m.View(), "reset failed: no reads")
}

func TestRootQuit(t *testing.T) {
	r := New(&fakeSource{}, "abc123", "xterm", 80, 24, nil)
	_, cmd := r.Update(runes("q"))
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
}

func TestRootHelpToggle(t *testing.T) {
	r := New(&fakeSource{}, "abc123", "xterm", 80, 24, nil)
	require.NotContains(t, r.View(), "power down")
	m, _ := r.Update(runes("?"))
	require.Contains(t, m.View(), "power down")
}

func TestRootFollowsPublishedReadings(t *testing.T) {
	src := &fakeSource{}
	src.cell.Set(1, 100)
	r := New(src, "abc123", "xterm", 80, 24, nil)
	require.NotNil(t, src.subscriber)
	require.Contains(t, r.View(), "raw 100")

	now := time.Now()
	src.subscriber(sampler.Reading{Weight: 5, Raw: 500, Valid: true, UpdatedAt: now})
	// Older readings are ignored
	src.subscriber(sampler.Reading{Weight: 4, Raw: 400, Valid: true, UpdatedAt: now.Add(-time.Second)})

	msg := r.readings.next()()
	require.Equal(t, readingMsg(sampler.Reading{Weight: 5, Raw: 500, Valid: true, UpdatedAt: now}), msg)
	m, cmd := r.Update(msg)
	require.Contains(t, m.View(), "raw 500")
	require.NotNil(t, cmd)

	// Waiting for the next reading ends when the dashboard is closed
	_, cmd = m.Update(awaitReadingMsg{})
	require.NotNil(t, cmd)
	done := make(chan tea.Msg, 1)
	go func() {
		done <- cmd()
	}()
	r.Close()
	r.Close()
	select {
	case msg := <-done:
		require.Nil(t, msg)
	case <-time.After(time.Second * 5):
		t.Fatal("next reading did not return after close")
	}
	require.Equal(t, 1, src.unsubscribe)
}
