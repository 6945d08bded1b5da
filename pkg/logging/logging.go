/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog so components can carry a pre-scoped structured
// logger without re-deriving fields on every call site.
type Logger struct {
	zerolog.Logger
}

type Options struct {
	// Debug lowers the level filter to debug.
	Debug bool
	// Console switches from JSON to human-readable console output.
	Console bool
	// Writer overrides the output destination (stderr when nil).
	Writer io.Writer
}

// New constructs the root logger for the process.
func New(opts Options) *Logger {
	var w io.Writer = os.Stderr
	if opts.Writer != nil {
		w = opts.Writer
	}
	if opts.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{Logger: l}
}

// Named returns a child logger scoped to a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.With().Str("component", component).Logger()}
}

// NewTest returns a silenced logger for use in tests.
func NewTest() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}
