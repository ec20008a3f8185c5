package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/deepone/internal/core/domain"
	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/logger"
)

const (
	// maxPlannedQuestions caps sub-questions taken from a JSON plan.
	maxPlannedQuestions = 6

	// maxFallbackQuestions caps sub-questions recovered by line splitting.
	maxFallbackQuestions = 5
)

var (
	lineSplit    = regexp.MustCompile(`\n+`)
	bulletPrefix = regexp.MustCompile(`^[-*\d.\s]+`)
	codeFence    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Plan is the planner output.
type Plan struct {
	SubQuestions []string `json:"subQuestions"`
	Notes        string   `json:"notes,omitempty"`
}

// Planner breaks a research task into sub-questions.
type Planner struct {
	gen     driven.TextGenerator
	prompts driven.PromptStore
}

// NewPlanner creates a planner backed by gen.
func NewPlanner(gen driven.TextGenerator) *Planner {
	return &Planner{gen: gen}
}

// SetPromptStore lets the planning prompt be customised.
func (p *Planner) SetPromptStore(store driven.PromptStore) {
	p.prompts = store
}

// DefaultPlanTemplate is the built-in planning prompt.
const DefaultPlanTemplate = "You are the Planner Agent. Break the task into 3-5 concrete sub-questions " +
	"optimal for web+document research. Reply ONLY in compact JSON with keys " +
	`{"subQuestions": string[], "notes": string}.` + "\nTask: %s"

// PlanPrompt builds the planning prompt for task.
func PlanPrompt(task string) string {
	return fmt.Sprintf(DefaultPlanTemplate, task)
}

// Plan asks the generator for sub-questions. Parsing never fails: when the
// reply yields nothing usable the task itself becomes the only sub-question.
// Only a generator failure is returned, wrapped in domain.ErrGeneration.
func (p *Planner) Plan(ctx context.Context, task string) (*Plan, error) {
	prompt := renderPrompt(p.prompts, driven.PromptPlan, PlanPrompt(task), task)
	text, err := p.gen.Generate(ctx, prompt, driven.GenerateOptions{Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("%w: planning: %w", domain.ErrGeneration, err)
	}
	plan := ParsePlan(text)
	if len(plan.SubQuestions) == 0 {
		logger.Debug("Planner returned nothing usable, using task as sole sub-question")
		plan.SubQuestions = []string{task}
	}
	return plan, nil
}

// ParsePlan extracts sub-questions from a planner reply.
//
// A JSON object with a subQuestions array yields at most six entries. Any
// other text is split into lines, stripped of list markers and trimmed,
// yielding at most five entries.
func ParsePlan(text string) *Plan {
	body := strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(body); m != nil {
		body = m[1]
	}

	var raw struct {
		SubQuestions []any `json:"subQuestions"`
		Notes        any   `json:"notes"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err == nil {
		plan := &Plan{}
		for _, q := range raw.SubQuestions {
			s := strings.TrimSpace(fmt.Sprint(q))
			if q == nil || s == "" {
				continue
			}
			plan.SubQuestions = append(plan.SubQuestions, s)
			if len(plan.SubQuestions) == maxPlannedQuestions {
				break
			}
		}
		if notes, ok := raw.Notes.(string); ok {
			plan.Notes = notes
		}
		return plan
	}

	plan := &Plan{}
	for _, line := range lineSplit.Split(text, -1) {
		s := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if s == "" {
			continue
		}
		plan.SubQuestions = append(plan.SubQuestions, s)
		if len(plan.SubQuestions) == maxFallbackQuestions {
			break
		}
	}
	return plan
}

// renderPrompt formats the named template from store. It returns fallback
// when there is no store or the template cannot be loaded.
func renderPrompt(store driven.PromptStore, name, fallback string, args ...any) string {
	if store == nil {
		return fallback
	}
	tmpl, err := store.Load(name)
	if err != nil || strings.TrimSpace(tmpl) == "" {
		logger.Debug("Prompt %s unavailable, using built-in: %v", name, err)
		return fallback
	}
	return fmt.Sprintf(tmpl, args...)
}

// DefaultPrompts returns the built-in templates keyed by prompt name.
func DefaultPrompts() map[string]string {
	return map[string]string{
		driven.PromptPlan:  DefaultPlanTemplate,
		driven.PromptWrite: DefaultWriteTemplate,
	}
}
