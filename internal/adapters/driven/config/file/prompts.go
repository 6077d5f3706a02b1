package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/prompts"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves prompt templates from ~/.recall/prompts/<name>.txt.
// The directory is seeded with the built-in templates on first Load; a
// file the user deleted is re-seeded on the next run.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore creates a store over dir, or ~/.recall/prompts when dir
// is empty. Nothing is read or written until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".recall", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the template for name. A file that drops one of the
// built-in template's placeholders is rejected with ErrInvalidInput, since
// rendering it would lose the retrieved context. Names without a file or a
// built-in default fail with ErrNotFound.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	s.mu.RLock()
	text, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return text, nil
	}

	text, err := s.read(name)
	switch {
	case errors.Is(err, fs.ErrNotExist) || s.seedErr != nil && err != nil:
		def, ok := prompts.Default(name)
		if !ok {
			return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
		}
		text = def
	case err != nil:
		return "", fmt.Errorf("read prompt %q: %w", name, err)
	}

	if missing := prompts.Missing(name, text); len(missing) > 0 {
		return "", fmt.Errorf("prompt %q lacks {%s}: %w",
			name, strings.Join(missing, "}, {"), domain.ErrInvalidInput)
	}

	s.mu.Lock()
	s.cache[name] = text
	s.mu.Unlock()
	return text, nil
}

// Reload drops cached templates.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// seed writes missing default templates and the README. Existing files
// are never overwritten.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	names := prompts.Names()
	files := map[string]string{"README.md": readme(names)}
	for _, name := range names {
		files[name+".txt"], _ = prompts.Default(name)
	}
	for file, content := range files {
		path := filepath.Join(s.dir, file)
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.WriteFile(path, []byte(content+"\n"), 0o600); err != nil {
			s.seedErr = fmt.Errorf("write %s: %w", file, err)
			return
		}
	}
}

func readme(names []string) string {
	var b strings.Builder
	b.WriteString("# recall prompts\n\n")
	b.WriteString("Templates for chat, conversation summaries, tree summaries and relation\n")
	b.WriteString("extraction. Edits apply on the next command. Delete a file to restore\n")
	b.WriteString("its default.\n\n")
	for _, name := range names {
		def, _ := prompts.Default(name)
		b.WriteString("- `" + name + ".txt`")
		if ph := prompts.Placeholders(def); len(ph) > 0 {
			b.WriteString(": keep {" + strings.Join(ph, "}, {") + "}")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nA template missing one of its placeholders is ignored in favour of the\nbuilt-in default.")
	return b.String()
}
