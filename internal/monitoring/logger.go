// Package monitoring holds the shared diagnostic logger used across the
// ingestion and API packages.
package monitoring

import "log"

// Logf is the diagnostic logger used by all packages. It defaults to
// log.Printf; swap it with SetLogger to redirect or silence output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger, which is handy for quiet tests.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
