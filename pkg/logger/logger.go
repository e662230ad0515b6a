// Copyright 2025 Kadir Pekel
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

// Package logger configures the process-wide slog logger.
//
// Records emitted by third-party libraries are dropped unless the level is
// DEBUG. Terminal output is coloured; "simple" prints level, message and
// attributes, "verbose" adds a timestamp, and any other format falls back to
// the standard slog text layout.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	modulePrefix = "github.com/wongivan852/legal-ai-vault"

	EnvLevel  = "LOG_LEVEL"
	EnvFile   = "LOG_FILE"
	EnvFormat = "LOG_FORMAT"

	DefaultFormat = "simple"
)

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// ParseLevel converts debug, info, warn or error to a slog.Level.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", levelStr)
	}
}

// Options selects level, format and destination. Empty fields fall back to
// the LOG_LEVEL, LOG_FORMAT and LOG_FILE environment variables, then to
// info / simple / stderr.
type Options struct {
	Level  string
	Format string
	File   string
}

func (o Options) resolve() Options {
	if o.Level == "" {
		o.Level = os.Getenv(EnvLevel)
	}
	if o.Format == "" {
		o.Format = os.Getenv(EnvFormat)
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.File == "" {
		o.File = os.Getenv(EnvFile)
	}
	return o
}

// Setup resolves opts, installs the logger as slog's default and returns a
// cleanup func that closes the log file, if one was opened.
func Setup(opts Options) (func(), error) {
	opts = opts.resolve()

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	output := os.Stderr
	cleanup := func() {}
	if opts.File != "" {
		file, closeFn, err := OpenLogFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFn
	}

	Init(level, output, opts.Format)
	return cleanup, nil
}

// Init installs a logger writing to output at the given level and format.
func Init(level slog.Level, output *os.File, format string) {
	color := term.IsTerminal(int(output.Fd()))
	InitWriter(level, output, format, color)
}

// InitWriter is Init for an arbitrary writer. It is used by tests.
func InitWriter(level slog.Level, w io.Writer, format string, color bool) {
	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})

	var handler slog.Handler = base
	switch format {
	case "simple", "":
		handler = &lineHandler{base: base, w: w, color: color, timestamp: false}
	case "verbose":
		handler = &lineHandler{base: base, w: w, color: color, timestamp: true}
	}

	l := slog.New(&filteringHandler{handler: handler, minLevel: level})

	mu.Lock()
	defaultLogger = l
	mu.Unlock()

	slog.SetDefault(l)
}

// OpenLogFile opens path for appending and returns a close func.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

// GetLogger returns the installed logger, initialising an info/simple
// stderr logger on first use.
func GetLogger() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		Init(slog.LevelInfo, os.Stderr, DefaultFormat)
		mu.Lock()
		l = defaultLogger
		mu.Unlock()
	}
	return l
}

// filteringHandler drops records from outside this module unless the
// configured level is DEBUG.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.minLevel {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || fromModule(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

// fromModule reports whether pc belongs to this module. Records without a
// PC are kept.
func fromModule(pc uintptr) bool {
	if pc == 0 {
		return true
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	if strings.HasPrefix(fn.Name(), modulePrefix) {
		return true
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(file, "legal-ai-vault")
}

// lineHandler renders one line per record: optional time, level, message,
// then key=value attributes (including those bound via With).
type lineHandler struct {
	base      slog.Handler
	w         io.Writer
	color     bool
	timestamp bool
	attrs     []slog.Attr
}

func (h *lineHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder

	if h.timestamp && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}

	level := strings.ToUpper(record.Level.String())
	if level == "WARNING" {
		level = "WARN"
	}
	if h.color {
		buf.WriteString(levelColor(record.Level))
		buf.WriteString(level)
		buf.WriteString("\033[0m")
	} else {
		buf.WriteString(level)
	}
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	write := func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	record.Attrs(write)
	buf.WriteString("\n")

	writeMu.Lock()
	defer writeMu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

var writeMu sync.Mutex

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	clone.base = h.base.WithAttrs(attrs)
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.base = h.base.WithGroup(name)
	return &clone
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}
