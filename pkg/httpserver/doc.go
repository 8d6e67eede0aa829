// Package httpserver runs an http.Server with graceful shutdown on context
// cancellation or OS signals, plus a probe handler that composes the
// Healthcheck closures exported by the storage packages.
package httpserver
