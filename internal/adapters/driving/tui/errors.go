// Package tui renders the live progress of a research run in the terminal.
package tui

import "errors"

// ErrCancelled is returned when the user quits before the run finishes.
var ErrCancelled = errors.New("tui: research cancelled")

// ErrStreamClosed is returned when the event stream ends without a terminal event.
var ErrStreamClosed = errors.New("tui: event stream closed before the run finished")
