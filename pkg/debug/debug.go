// Package debug provides category-based debug logging for the zaguan client.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): ZAGUAN_DEBUG env or config
//   - Levels (HOW MUCH detail): ZAGUAN_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log(debug.Transport, "send", "method", "POST", "path", path)
//	if debug.Enabled(debug.Streaming) { /* expensive formatting */ }
//
// Categories: transport, retry, streaming, observability, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// Debug categories.
const (
	Transport     = "transport"
	Retry         = "retry"
	Streaming     = "streaming"
	Observability = "observability"
	Config        = "config"
	All           = "all"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
// At TRACE, full request and response bodies are logged.
const LevelTrace = slog.LevelDebug - 4

// bodyPreview bounds bodies logged at DEBUG.
const bodyPreview = 512

var categories atomic.Pointer[map[string]bool]

func init() {
	setCategories(os.Getenv("ZAGUAN_DEBUG"))
}

func setCategories(s string) {
	m := parseCategories(s)
	categories.Store(&m)
}

// Options configures Init.
type Options struct {
	// Categories is a comma-separated category list. ZAGUAN_DEBUG wins.
	Categories string

	// Level is a level name. ZAGUAN_LOG_LEVEL wins. Defaults to INFO.
	Level string

	// Format is "text" (default) or "json".
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Init configures categories and installs a default slog logger. Values
// from the environment override opts. The installed logger is returned.
func Init(opts Options) *slog.Logger {
	cats := os.Getenv("ZAGUAN_DEBUG")
	if cats == "" {
		cats = opts.Categories
	}
	setCategories(cats)

	level := os.Getenv("ZAGUAN_LOG_LEVEL")
	if level == "" {
		level = opts.Level
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	m := *categories.Load()
	return m[All] || m[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
// Only visible when ZAGUAN_LOG_LEVEL=TRACE.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(context.Background(), LevelTrace)
}

// Body logs a payload: in full at TRACE, truncated at DEBUG.
func Body(category, msg string, body []byte, args ...any) {
	if !Enabled(category) {
		return
	}
	if TraceIsEnabled(category) {
		Trace(category, msg, append(args, "body", string(body))...)
		return
	}
	Log(category, msg, append(args, "body", Truncate(string(body), bodyPreview))...)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories, sorted.
func Categories() []string {
	m := *categories.Load()
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	slices.Sort(result)
	return result
}

// Truncate returns s cut to at most maxLen bytes on a rune boundary, with
// "..." appended if it was cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
