// Copyright 2018 Ewout Prangsma
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

package logging

import (
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// MultiWriter writes log lines to all of its outputs.
type MultiWriter interface {
	zerolog.LevelWriter
	// Add an output
	Add(w io.Writer)
}

type multiWriter struct {
	mutex   sync.RWMutex
	writers []io.Writer
}

// NewMultiWriter creates a new output for logs and can add outputs
// on the fly.
func NewMultiWriter(writers ...io.Writer) MultiWriter {
	l := &multiWriter{
		writers: writers,
	}
	return l
}

func (l *multiWriter) Add(w io.Writer) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.writers = append(l.writers, w)
}

func (l *multiWriter) Write(p []byte) (n int, err error) {
	return l.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel writes to all outputs; the first error is returned.
func (l *multiWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for _, w := range l.writers {
		var werr error
		if lw, ok := w.(zerolog.LevelWriter); ok {
			_, werr = lw.WriteLevel(level, p)
		} else {
			_, werr = w.Write(p)
		}
		if werr != nil && err == nil {
			err = werr
		}
	}
	return len(p), err
}

type levelFilter struct {
	w   io.Writer
	min zerolog.Level
}

// NewLevelFilter wraps the given writer such that only lines of at least
// the given level are passed on.
func NewLevelFilter(w io.Writer, min zerolog.Level) zerolog.LevelWriter {
	return levelFilter{w: w, min: min}
}

func (f levelFilter) Write(p []byte) (n int, err error) {
	return f.w.Write(p)
}

func (f levelFilter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level < f.min && level != zerolog.NoLevel {
		return len(p), nil
	}
	return f.w.Write(p)
}
