package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is a declarative YAML bundle of prompt templates and keyword
// rules, used to bootstrap a fresh instance or sync curated content.
type SeedFile struct {
	Templates []SeedTemplate `yaml:"templates"`
	Keywords  []SeedKeyword  `yaml:"keywords"`
}

// SeedTemplate declares one prompt template.
type SeedTemplate struct {
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
	Version int    `yaml:"version"`
	Locale  string `yaml:"locale"`
}

// SeedKeyword declares one keyword rule. Template references the template by
// name within the same file, so seed files stay self-contained and free of
// database IDs.
type SeedKeyword struct {
	Keyword  string `yaml:"keyword"`
	IsRegex  bool   `yaml:"is_regex"`
	Locale   string `yaml:"locale"`
	Template string `yaml:"template"`
}

// LoadSeed reads and validates a seed file. Every keyword must reference a
// template declared in the same file.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	names := make(map[string]bool, len(seed.Templates))
	for i, tpl := range seed.Templates {
		if tpl.Name == "" {
			return nil, fmt.Errorf("template %d: name is required", i)
		}
		if tpl.Content == "" {
			return nil, fmt.Errorf("template %q: content is required", tpl.Name)
		}
		names[tpl.Name] = true
	}
	for i, kw := range seed.Keywords {
		if kw.Keyword == "" {
			return nil, fmt.Errorf("keyword %d: keyword is required", i)
		}
		if !names[kw.Template] {
			return nil, fmt.Errorf("keyword %q: unknown template %q", kw.Keyword, kw.Template)
		}
	}
	return &seed, nil
}
