// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML settings in ~/.deepone/config.toml
//   - PromptStore: user-editable planning and writing prompts
package file
