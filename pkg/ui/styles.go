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

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	weight  lipgloss.Style
	invalid lipgloss.Style
	status  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		weight:  r.NewStyle().Bold(true).Padding(1, 2),
		invalid: r.NewStyle().Foreground(lipgloss.Color("196")).Padding(1, 2),
		status:  r.NewStyle().Faint(true),
	}
}
