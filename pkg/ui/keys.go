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

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Tare      key.Binding
	TareB     key.Binding
	PowerDown key.Binding
	PowerUp   key.Binding
	Reset     key.Binding
	MemInfo   key.Binding
	Back      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Tare: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "tare"),
	),
	TareB: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "tare channel B"),
	),
	PowerDown: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "power down"),
	),
	PowerUp: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "power up"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset chip"),
	),
	MemInfo: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "view /proc/meminfo"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more keys"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "disconnect"),
	),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tare, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tare, k.TareB},
		{k.PowerDown, k.PowerUp, k.Reset},
		{k.MemInfo, k.Back, k.Help, k.Quit},
	}
}
