// Package monitoring holds the diagnostic log hooks shared by the analysis,
// store and acquisition packages. The encoder itself never logs.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// can be redirected or muted with SetLogger.
var Logf func(format string, v ...any) = log.Printf

var debug atomic.Bool

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

// SetDebug turns Debugf output on or off.
func SetDebug(on bool) { debug.Store(on) }

// DebugEnabled reports whether Debugf currently writes anything.
func DebugEnabled() bool { return debug.Load() }

// Debugf logs through Logf only when debug output is enabled. Per-sample
// traces from sweeps and the serial monitor go here.
func Debugf(format string, v ...any) {
	if !debug.Load() {
		return
	}
	Logf("[debug] "+format, v...)
}
