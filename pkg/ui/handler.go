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
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish/bubbletea"
)

// NewHandler returns a handler that creates a dashboard for every
// SSH session.
func NewHandler(source Source, hostID string) bubbletea.Handler {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		pty, _, _ := s.Pty()
		renderer := bubbletea.MakeRenderer(s)
		m := New(source, hostID, pty.Term, pty.Window.Width, pty.Window.Height, renderer)
		go func() {
			<-s.Context().Done()
			m.Close()
		}()
		return m, []tea.ProgramOption{tea.WithAltScreen()}
	}
}
