package domain

import "encoding/json"

// Phase names a stage of the research pipeline as reported in events.
type Phase string

// Pipeline phases in execution order.
const (
	PhasePlanning Phase = "planning"

	// PhaseRetrieving is reported on the wire as "executing".
	PhaseRetrieving Phase = "executing"

	PhaseWriting Phase = "writing"
)

// EventType tags the variant carried by an Event.
type EventType string

// Event variants.
const (
	EventStatus    EventType = "status"
	EventPhase     EventType = "phase"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// PreviewLength is the number of report characters carried by a completed event.
const PreviewLength = 500

// PhasePayload is attached to a phase-done event.
type PhasePayload struct {
	SubQuestions []string           `json:"subQuestions,omitempty"`
	Sources      []AggregatedSource `json:"sources,omitempty"`
}

// Event is a tagged notification emitted by the research pipeline.
// Only the fields relevant to Type are set.
type Event struct {
	Type    EventType `json:"type"`
	Phase   Phase     `json:"phase,omitempty"`
	Message string    `json:"message,omitempty"`

	// Done is set on phase events.
	Done    bool          `json:"done,omitempty"`
	Payload *PhasePayload `json:"payload,omitempty"`

	// Completed and Total are set on progress events.
	Completed int `json:"completed,omitempty"`
	Total     int `json:"total,omitempty"`

	// Set on the completed event.
	WordsTarget int             `json:"wordsTarget,omitempty"`
	Sources     int             `json:"sources,omitempty"`
	Preview     string          `json:"preview,omitempty"`
	Result      *ResearchResult `json:"result,omitempty"`
}

// MarshalJSON writes the fixed field set of each variant, so zero counts
// such as "sources":0 are kept on the wire.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventStatus:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Phase   Phase     `json:"phase"`
			Message string    `json:"message"`
		}{e.Type, e.Phase, e.Message})
	case EventPhase:
		return json.Marshal(struct {
			Type    EventType     `json:"type"`
			Phase   Phase         `json:"phase"`
			Done    bool          `json:"done"`
			Payload *PhasePayload `json:"payload,omitempty"`
		}{e.Type, e.Phase, e.Done, e.Payload})
	case EventProgress:
		return json.Marshal(struct {
			Type      EventType `json:"type"`
			Phase     Phase     `json:"phase"`
			Completed int       `json:"completed"`
			Total     int       `json:"total"`
		}{e.Type, e.Phase, e.Completed, e.Total})
	case EventCompleted:
		return json.Marshal(struct {
			Type        EventType       `json:"type"`
			Message     string          `json:"message"`
			WordsTarget int             `json:"wordsTarget"`
			Sources     int             `json:"sources"`
			Preview     string          `json:"preview"`
			Result      *ResearchResult `json:"result,omitempty"`
		}{e.Type, e.Message, e.WordsTarget, e.Sources, e.Preview, e.Result})
	case EventError:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	}
	type plain Event
	return json.Marshal(plain(e))
}

// IsTerminal returns true for completed and error events.
func (e Event) IsTerminal() bool {
	return e.Type == EventCompleted || e.Type == EventError
}

// StatusEvent announces entry into a phase.
func StatusEvent(phase Phase, message string) Event {
	return Event{Type: EventStatus, Phase: phase, Message: message}
}

// PhaseDoneEvent announces that a phase finished, with its output.
func PhaseDoneEvent(phase Phase, payload PhasePayload) Event {
	return Event{Type: EventPhase, Phase: phase, Done: true, Payload: &payload}
}

// ProgressEvent reports how many units of a phase have finished.
func ProgressEvent(phase Phase, completed, total int) Event {
	return Event{Type: EventProgress, Phase: phase, Completed: completed, Total: total}
}

// CompletedEvent is the final event of a successful run.
// Sources counts web evidence only.
func CompletedEvent(result *ResearchResult, preview string) Event {
	return Event{
		Type:        EventCompleted,
		Message:     "Report composed",
		WordsTarget: result.WordsTarget,
		Sources:     result.SourcesUsed,
		Preview:     preview,
		Result:      result,
	}
}

// ErrorEvent is the final event of a failed run.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// Preview returns at most PreviewLength runes of text.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= PreviewLength {
		return text
	}
	return string(r[:PreviewLength])
}
