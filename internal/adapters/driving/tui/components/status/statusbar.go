// Package status provides the status bar shown under the progress view.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/deepone/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/deepone/internal/adapters/driving/tui/styles"
)

// State represents the run state for display.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Bar displays run status, elapsed time and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	elapsed time.Duration
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateRunning,
		width:  80,
	}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Render(left + strings.Repeat(" ", padding) + right)
}

func (s *Bar) renderLeft() string {
	elapsed := s.elapsed.Round(time.Second).String()
	switch s.state {
	case StateCompleted:
		return s.styles.Success.Render(fmt.Sprintf("Completed in %s", elapsed))
	case StateFailed:
		if s.message != "" {
			return s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		}
		return s.styles.Error.Render("Error")
	case StateCancelled:
		return s.styles.Warning.Render("Cancelled")
	}
	if s.message != "" {
		return s.styles.Normal.Render(fmt.Sprintf("%s (%s)", s.message, elapsed))
	}
	return s.styles.Muted.Render(fmt.Sprintf("Running (%s)", elapsed))
}

func (s *Bar) renderRight() string {
	var bindings []key.Binding
	if s.state == StateRunning {
		bindings = s.keymap.ShortHelp()
	} else {
		bindings = []key.Binding{s.keymap.Details}
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets the status message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetElapsed sets the elapsed run time.
func (s *Bar) SetElapsed(d time.Duration) {
	s.elapsed = d
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}
