// Package strategy plans social content: it profiles a company from its
// website, selects the platforms worth the effort, and drafts a content
// strategy per platform, all driven by YAML prompt templates.
package strategy

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var defaultPrompts embed.FS

// Templates is one named prompt set. The selector set uses SelectionPrompt,
// the per-platform sets use ContentPrompt.
type Templates struct {
	SystemPrompt    string `yaml:"system_prompt"`
	SelectionPrompt string `yaml:"selection_prompt"`
	ContentPrompt   string `yaml:"content_prompt"`
}

// Library holds prompt sets keyed by file basename (sans extension).
type Library struct {
	sets map[string]Templates
}

// LoadLibrary loads the embedded prompt sets, then overlays any *.yaml files
// found in overrideDir. An override file replaces the whole set of the same
// name, it is not merged key by key.
func LoadLibrary(overrideDir string) (*Library, error) {
	lib := &Library{sets: make(map[string]Templates)}

	entries, err := defaultPrompts.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("strategy: read embedded prompts: %w", err)
	}
	for _, entry := range entries {
		raw, err := defaultPrompts.ReadFile("prompts/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("strategy: read embedded prompt %s: %w", entry.Name(), err)
		}
		if err := lib.add(entry.Name(), raw); err != nil {
			return nil, err
		}
	}

	if overrideDir != "" {
		matches, err := filepath.Glob(filepath.Join(overrideDir, "*.yaml"))
		if err != nil {
			return nil, fmt.Errorf("strategy: scan prompt overrides in %s: %w", overrideDir, err)
		}
		for _, path := range matches {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("strategy: read prompt override %s: %w", path, err)
			}
			if err := lib.add(filepath.Base(path), raw); err != nil {
				return nil, err
			}
		}
	}
	return lib, nil
}

func (l *Library) add(fileName string, raw []byte) error {
	name := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	var tmpl Templates
	if err := yaml.Unmarshal(raw, &tmpl); err != nil {
		return fmt.Errorf("strategy: parse prompt set %s: %w", name, err)
	}
	l.sets[name] = tmpl
	return nil
}

// Set returns the named prompt set.
func (l *Library) Set(name string) (Templates, bool) {
	tmpl, ok := l.sets[name]
	return tmpl, ok
}

// Render substitutes {key} placeholders in a template. Unknown placeholders
// are left alone, which keeps literal JSON braces in prompts intact.
func Render(template string, vars map[string]string) string {
	for key, value := range vars {
		template = strings.ReplaceAll(template, "{"+key+"}", value)
	}
	return template
}
