package template

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed seeds/defaults.yaml
var defaultSeed []byte

type seedFile struct {
	Templates []seedTemplate `yaml:"templates"`
}

type seedTemplate struct {
	Code     string         `yaml:"code"`
	Name     string         `yaml:"name"`
	Channel  string         `yaml:"channel"`
	Language string         `yaml:"language"`
	Subject  string         `yaml:"subject"`
	Body     string         `yaml:"body"`
	Active   *bool          `yaml:"active"`
	Metadata map[string]any `yaml:"metadata"`
}

// ParseSeed decodes a YAML document with a top-level "templates" list.
// Entries are active unless "active: false" is set and default to
// DefaultLanguage when no language is given.
func ParseSeed(data []byte) ([]Template, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}

	templates := make([]Template, 0, len(f.Templates))
	for i, st := range f.Templates {
		t := Template{
			Code:     strings.TrimSpace(st.Code),
			Name:     st.Name,
			Channel:  strings.ToLower(strings.TrimSpace(st.Channel)),
			Language: strings.ToLower(strings.TrimSpace(st.Language)),
			Subject:  st.Subject,
			Body:     st.Body,
			IsActive: st.Active == nil || *st.Active,
			Metadata: st.Metadata,
		}
		if t.Language == "" {
			t.Language = DefaultLanguage
		}
		if t.Name == "" {
			t.Name = t.Code
		}
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d (%q): %w", ErrInvalidSeed, i, st.Code, err)
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// Defaults returns the built-in templates for job and status notices.
func Defaults() ([]Template, error) {
	return ParseSeed(defaultSeed)
}

// Seed saves every template into store and returns how many were written.
func Seed(ctx context.Context, store Store, templates []Template) (int, error) {
	if store == nil {
		return 0, ErrStoreRequired
	}
	for i := range templates {
		if err := store.Save(ctx, &templates[i]); err != nil {
			return i, fmt.Errorf("save template %s/%s/%s: %w",
				templates[i].Code, templates[i].Channel, templates[i].Language, err)
		}
	}
	return len(templates), nil
}

// SeedFile parses the YAML file at path and saves its templates into store.
func SeedFile(ctx context.Context, store Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read template seed: %w", err)
	}
	templates, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	return Seed(ctx, store, templates)
}
