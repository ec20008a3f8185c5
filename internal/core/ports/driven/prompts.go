package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used by the research pipeline.
const (
	// PromptPlan breaks a task into sub-questions.
	// The template expects a single %s placeholder for the task.
	PromptPlan = "plan"

	// PromptWrite composes the report from numbered sources.
	// The template expects, in order: %s report type, %s language,
	// %d word target, %s task and %s numbered source list.
	PromptWrite = "write"
)
