// Package prompts holds the built-in LLM prompt templates.
//
// Templates use {name} placeholders. They are the defaults served by the
// file prompt store and the fallback for services that run without one.
package prompts

import (
	"embed"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

//go:embed templates/*.txt
var templates embed.FS

// Default returns the built-in template for name.
func Default(name string) (string, bool) {
	data, err := templates.ReadFile(path.Join("templates", name+".txt"))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// Resolve returns the named template from store, falling back to the
// built-in default. A nil store always yields the default.
func Resolve(store driven.PromptStore, name string) string {
	if store != nil {
		text, err := store.Load(name)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			logger.Warn("Prompt %q unavailable, using default: %v", name, err)
		}
	}
	text, _ := Default(name)
	return text
}

// Names returns the names of all built-in templates, sorted.
func Names() []string {
	entries, err := templates.ReadDir("templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(names)
	return names
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Placeholders lists the distinct {name} placeholders of template, in order
// of first use.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Missing returns the placeholders of the built-in template name that
// template does not use.
func Missing(name, template string) []string {
	def, ok := Default(name)
	if !ok {
		return nil
	}
	var missing []string
	for _, p := range Placeholders(def) {
		if !strings.Contains(template, "{"+p+"}") {
			missing = append(missing, p)
		}
	}
	return missing
}

// Render substitutes {key} placeholders. Unknown placeholders are left as is.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(vars)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
