// Package server manages the HTTP listener lifecycle: non-blocking
// start, serve-failure reporting, and signal-driven graceful shutdown.
package server
