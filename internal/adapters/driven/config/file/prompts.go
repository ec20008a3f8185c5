package file

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/deepone/internal/core/ports/driven"
	"github.com/custodia-labs/deepone/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// verb matches the fmt verbs a template may use. "%%" is a literal percent.
var verb = regexp.MustCompile(`%%|%[sd]`)

// PromptStore loads prompt templates from user-editable files, one
// "<name>.txt" per prompt. Missing or unusable files fall back to the
// built-in defaults.
//
// Initialisation is lazy: the directory and default files are only
// written on the first Load.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	defaults  map[string]string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// NewPromptStore creates a prompt store rooted at promptDir.
// defaults holds the built-in template for every known prompt name.
func NewPromptStore(promptDir string, defaults map[string]string) *PromptStore {
	return &PromptStore{
		promptDir: promptDir,
		defaults:  defaults,
		cache:     make(map[string]string),
	}
}

// Load returns the template for name.
// A file whose placeholders differ from the default's is ignored with a
// warning, so a bad edit cannot produce a malformed prompt.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	def, known := s.defaults[name]
	prompt, err := s.loadFromFile(name)
	switch {
	case err != nil && !known:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	case err != nil:
		prompt = def
	case known && !slices.Equal(verbs(prompt), verbs(def)):
		logger.Warn("prompt %s: placeholders %v do not match %v, using built-in", name, verbs(prompt), verbs(def))
		prompt = def
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory, default files and README.
// Failure only means edits are impossible; defaults still serve.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		logger.Debug("prompts: %v", s.initErr)
		return
	}

	for name, content := range s.defaults {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				logger.Debug("prompts: %v", s.initErr)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s.txt is empty", name)
	}
	return prompt, nil
}

func verbs(template string) []string {
	var out []string
	for _, v := range verb.FindAllString(template, -1) {
		if v != "%%" {
			out = append(out, v)
		}
	}
	return out
}

func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	content := `# DeepOne Prompts

Templates used by the research pipeline. Edit a file to change how
DeepOne plans and writes; changes apply to the next run.

## Files

- ` + "`plan.txt`" + ` - breaks the task into sub-questions. One ` + "`%s`" + `: the task.
- ` + "`write.txt`" + ` - composes the report. In order: ` + "`%s`" + ` report type,
  ` + "`%s`" + ` language, ` + "`%d`" + ` word target, ` + "`%s`" + ` task, ` + "`%s`" + ` numbered sources.

Keep the placeholders in the same order. A file with different
placeholders is ignored and the built-in prompt is used. Write ` + "`%%`" + `
for a literal percent sign. Delete a file to restore its default.
`
	return os.WriteFile(path, []byte(content), 0600)
}
