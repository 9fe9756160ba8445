// Package prompts holds the prompt templates and fallback texts for every
// kind of generated content, loaded from an embedded YAML catalog.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"math/rand/v2"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Content kinds
const (
	KindGoldStreak    = "gold_streak"
	KindHabitStreak   = "habit_streak"
	KindDailyQuestion = "daily_question"
	KindIntention     = "intention"
	KindChat          = "chat"
	KindOnboarding    = "onboarding"
)

// Entry is one catalog item as written in YAML
type Entry struct {
	MaxWords  int      `yaml:"max_words"`
	Template  string   `yaml:"template"`
	Fallbacks []string `yaml:"fallbacks"`
}

type catalogFile struct {
	Prompts map[string]Entry `yaml:"prompts"`
}

// Data is the template input. Unused fields are left zero.
type Data struct {
	CoreBelief string
	AIVoice    string
	Goals      []string
	StreakDays int
	HabitTitle string
	Date       string

	Message     string
	ContextMode string

	Priorities  string
	LifeSummary string
	Ideology    string

	MaxWords int
}

// Catalog is the compiled set of prompts
type Catalog struct {
	entries   map[string]Entry
	templates map[string]*template.Template
}

var funcs = template.FuncMap{"join": strings.Join}

// Load parses and compiles the embedded catalog
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse builds a catalog from YAML. Unknown keys are rejected, and every
// entry needs a template and a positive word limit.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalog: %w", err)
	}

	c := &Catalog{
		entries:   make(map[string]Entry, len(file.Prompts)),
		templates: make(map[string]*template.Template, len(file.Prompts)),
	}
	for kind, entry := range file.Prompts {
		if strings.TrimSpace(entry.Template) == "" {
			return nil, fmt.Errorf("prompt %s missing required field: template", kind)
		}
		if entry.MaxWords < 1 {
			return nil, fmt.Errorf("prompt %s: max_words must be positive", kind)
		}
		tmpl, err := template.New(kind).Funcs(funcs).Option("missingkey=zero").Parse(entry.Template)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", kind, err)
		}
		c.entries[kind] = entry
		c.templates[kind] = tmpl
	}
	return c, nil
}

// Render fills the template for kind
func (c *Catalog) Render(kind string, data Data) (string, error) {
	tmpl, ok := c.templates[kind]
	if !ok {
		return "", fmt.Errorf("unknown prompt kind %q", kind)
	}
	data.MaxWords = c.entries[kind].MaxWords

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", kind, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Fallbacks returns the fixed fallback set for kind, possibly empty
func (c *Catalog) Fallbacks(kind string) []string {
	return c.entries[kind].Fallbacks
}

// Fallback picks a random fallback for kind. ok is false when kind has none.
func (c *Catalog) Fallback(kind string) (text string, ok bool) {
	set := c.entries[kind].Fallbacks
	if len(set) == 0 {
		return "", false
	}
	return set[rand.IntN(len(set))], true
}
