// Package file stores recall's user-editable files under ~/.recall:
// config.toml (ConfigStore) and the prompt template overrides in
// prompts/ (PromptStore).
package file
