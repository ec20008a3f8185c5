// Package messages defines Bubbletea message types for the progress view.
package messages

import (
	"github.com/custodia-labs/deepone/internal/core/domain"
)

// EventReceived carries one pipeline event into the model.
type EventReceived struct {
	Event domain.Event
}

// StreamClosed is sent when the event channel is closed.
type StreamClosed struct{}
