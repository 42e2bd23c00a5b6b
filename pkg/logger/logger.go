package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Printf adapts a slog.Logger to printf-style logger interfaces such as the
// one golang-migrate expects.
type Printf struct {
	log     *slog.Logger
	verbose bool
}

// New returns a printf adapter tagged with the component name.
func New(base *slog.Logger, component string, verbose bool) *Printf {
	if base == nil {
		base = slog.Default()
	}
	return &Printf{log: base.With("component", component), verbose: verbose}
}

// Printf logs the formatted message at info level.
func (p *Printf) Printf(format string, v ...interface{}) {
	p.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Verbose reports whether verbose output was requested.
func (p *Printf) Verbose() bool {
	return p.verbose
}
