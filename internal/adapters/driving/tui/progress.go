package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/deepone/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/deepone/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/deepone/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/deepone/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/deepone/internal/core/domain"
)

// maxListedSources bounds the source list shown in details mode.
const maxListedSources = 10

type phaseState int

const (
	phasePending phaseState = iota
	phaseActive
	phaseDone
)

var phaseOrder = []domain.Phase{domain.PhasePlanning, domain.PhaseRetrieving, domain.PhaseWriting}

func phaseLabel(p domain.Phase) string {
	switch p {
	case domain.PhasePlanning:
		return "Planning"
	case domain.PhaseRetrieving:
		return "Retrieving"
	case domain.PhaseWriting:
		return "Writing"
	default:
		return string(p)
	}
}

// Model is the Bubbletea model for a single research run.
// It consumes pipeline events until a terminal event arrives.
type Model struct {
	task   string
	events <-chan domain.Event
	cancel context.CancelFunc

	styles   *styles.Styles
	keymap   *keymap.KeyMap
	spinner  spinner.Model
	progress progress.Model
	status   *status.Bar

	phases       map[domain.Phase]phaseState
	completed    int
	total        int
	subQuestions []string
	sources      []domain.AggregatedSource
	details      bool

	result    *domain.ResearchResult
	err       error
	cancelled bool
	done      bool

	started time.Time
	now     func() time.Time
}

// Ensure Model implements tea.Model.
var _ tea.Model = (*Model)(nil)

// NewModel creates a progress model reading from events. cancel is called
// when the user quits before the run ends; it may be nil.
func NewModel(task string, events <-chan domain.Event, cancel context.CancelFunc) *Model {
	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &Model{
		task:     task,
		events:   events,
		cancel:   cancel,
		styles:   s,
		keymap:   km,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(s.PhaseActive)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
		status:   status.NewBar(s, km),
		phases:   make(map[domain.Phase]phaseState, len(phaseOrder)),
		started:  time.Now(),
		now:      time.Now,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan domain.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return messages.StreamClosed{}
		}
		return messages.EventReceived{Event: e}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.status.SetWidth(msg.Width)
		m.progress.Width = min(max(msg.Width-24, 10), 60)
		return m, nil

	case tea.KeyMsg:
		switch {
		case keymap.Matches(msg.String(), m.keymap.Quit):
			if !m.done {
				m.cancelled = true
				m.status.SetState(status.StateCancelled)
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, tea.Quit
		case keymap.Matches(msg.String(), m.keymap.Details):
			m.details = !m.details
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.status.SetElapsed(m.now().Sub(m.started))
		return m, cmd

	case messages.EventReceived:
		m.apply(msg.Event)
		if msg.Event.IsTerminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case messages.StreamClosed:
		if !m.done && !m.cancelled {
			m.err = ErrStreamClosed
			m.status.SetState(status.StateFailed)
			m.status.SetMessage(ErrStreamClosed.Error())
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// apply folds one pipeline event into the model.
func (m *Model) apply(e domain.Event) {
	m.status.SetElapsed(m.now().Sub(m.started))
	switch e.Type {
	case domain.EventStatus:
		m.phases[e.Phase] = phaseActive
		m.status.SetMessage(e.Message)
	case domain.EventPhase:
		m.phases[e.Phase] = phaseDone
		if e.Payload != nil {
			if len(e.Payload.SubQuestions) > 0 {
				m.subQuestions = e.Payload.SubQuestions
			}
			if e.Phase == domain.PhaseRetrieving {
				m.sources = e.Payload.Sources
			}
		}
	case domain.EventProgress:
		m.completed, m.total = e.Completed, e.Total
	case domain.EventCompleted:
		for _, p := range phaseOrder {
			m.phases[p] = phaseDone
		}
		m.result = e.Result
		m.status.SetState(status.StateCompleted)
		m.status.SetMessage(e.Message)
	case domain.EventError:
		m.err = errors.New(e.Message)
		m.status.SetState(status.StateFailed)
		m.status.SetMessage(e.Message)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Researching: " + m.task))
	b.WriteString("\n\n")

	for _, p := range phaseOrder {
		b.WriteString(m.phaseLine(p))
		b.WriteString("\n")
	}

	if m.details {
		b.WriteString(m.detailsView())
	}

	if m.result != nil {
		b.WriteString("\n")
		b.WriteString(m.summaryView())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.status.View())
	b.WriteString("\n")
	return b.String()
}

func (m *Model) phaseLine(p domain.Phase) string {
	label := fmt.Sprintf("%-10s", phaseLabel(p))
	switch m.phases[p] {
	case phaseDone:
		line := m.styles.PhaseDone.Render("✓ " + label)
		switch p {
		case domain.PhasePlanning:
			line += m.styles.Muted.Render(fmt.Sprintf(" %d sub-questions", len(m.subQuestions)))
		case domain.PhaseRetrieving:
			line += m.styles.Muted.Render(fmt.Sprintf(" %d sources", len(m.sources)))
		}
		return line
	case phaseActive:
		line := m.spinner.View() + " " + m.styles.PhaseActive.Render(label)
		if p == domain.PhaseRetrieving && m.total > 0 {
			line += " " + m.progress.ViewAs(float64(m.completed)/float64(m.total))
			line += m.styles.Muted.Render(fmt.Sprintf(" %d/%d", m.completed, m.total))
		}
		return line
	default:
		return m.styles.PhasePending.Render("· " + label)
	}
}

func (m *Model) detailsView() string {
	var b strings.Builder
	if len(m.subQuestions) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Subtitle.Render("Sub-questions"))
		b.WriteString("\n")
		for i, q := range m.subQuestions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, q)
		}
	}
	if len(m.sources) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Subtitle.Render("Sources"))
		b.WriteString("\n")
		for i, s := range m.sources {
			if i == maxListedSources {
				b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  ... and %d more", len(m.sources)-i)))
				b.WriteString("\n")
				break
			}
			fmt.Fprintf(&b, "  [%d] %s %s\n", i+1, s.Title, m.styles.Muted.Render(s.URL))
		}
	}
	return b.String()
}

func (m *Model) summaryView() string {
	r := m.result
	lines := []string{
		m.styles.Success.Render("Report saved"),
		"Path:     " + r.Path,
		fmt.Sprintf("Sources:  %d web, %d local", r.SourcesUsed, r.LocalUsed),
		fmt.Sprintf("Model:    %s %s", r.Provider, r.Model),
	}
	for format, path := range r.Outputs {
		if format == string(domain.FormatMarkdown) {
			continue
		}
		lines = append(lines, fmt.Sprintf("Export:   %s %s", format, path))
	}
	for format, msg := range r.ExportErrors {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("Export %s failed: %s", format, msg)))
	}
	return m.styles.Summary.Render(strings.Join(lines, "\n"))
}

// Outcome returns the run result, or the reason there is none.
func (m *Model) Outcome() (*domain.ResearchResult, error) {
	switch {
	case m.result != nil:
		return m.result, nil
	case m.err != nil:
		return nil, m.err
	case m.cancelled:
		return nil, ErrCancelled
	default:
		return nil, ErrStreamClosed
	}
}

// Run displays progress for the stream started by start and returns its
// outcome. Quitting cancels the context passed to start.
func Run(
	ctx context.Context,
	task string,
	start func(ctx context.Context) <-chan domain.Event,
	opts ...tea.ProgramOption,
) (*domain.ResearchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(task, start(ctx), cancel)
	final, err := tea.NewProgram(model, opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	m, ok := final.(*Model)
	if !ok {
		return nil, fmt.Errorf("progress view: unexpected model %T", final)
	}
	return m.Outcome()
}
