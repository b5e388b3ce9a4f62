// Package monitoring routes chordcut's per-vertebra progress notices and
// skip conditions to a configurable destination.
package monitoring

import "log"

// Logf emits a diagnostic notice. The engine calls it for per-vertebra
// conditions and ranges when verbosity is raised; it defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger redirects diagnostic notices, e.g. into a test buffer or a
// caller's own logger. Passing nil mutes them entirely.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
