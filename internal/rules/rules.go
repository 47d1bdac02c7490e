// Package rules holds the table of decision categories allowed per revision
// reason, and whether a decision for that reason is announced by letter.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"vedtak/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed revision_reasons.yaml
var defaultTable []byte

// File is the YAML layout of the rules table
type File struct {
	Version  string `yaml:"rules_version"`
	Defaults Rule   `yaml:"defaults"`
	Reasons  []Rule `yaml:"reasons"`
}

// Rule applies to one revision reason
type Rule struct {
	Reason     string                    `yaml:"reason"`
	Categories []models.DecisionCategory `yaml:"categories"`
	SendLetter bool                      `yaml:"send_letter"`
}

// Table answers lookups against a loaded rules file
type Table struct {
	version  string
	defaults Rule
	byReason map[string]Rule
}

// Default returns the table compiled into the binary
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Load reads a rules file from disk; an empty path selects the built-in table
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a rules file
func Parse(data []byte) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	if err := validateCategories("defaults", f.Defaults.Categories); err != nil {
		return nil, err
	}

	t := &Table{
		version:  f.Version,
		defaults: f.Defaults,
		byReason: make(map[string]Rule, len(f.Reasons)),
	}
	for _, r := range f.Reasons {
		if r.Reason == "" {
			return nil, fmt.Errorf("rule without reason")
		}
		if _, dup := t.byReason[r.Reason]; dup {
			return nil, fmt.Errorf("duplicate rule for reason %s", r.Reason)
		}
		if err := validateCategories(r.Reason, r.Categories); err != nil {
			return nil, err
		}
		t.byReason[r.Reason] = r
	}
	return t, nil
}

func validateCategories(owner string, categories []models.DecisionCategory) error {
	if len(categories) == 0 {
		return fmt.Errorf("rule %s lists no categories", owner)
	}
	for _, c := range categories {
		if !c.Valid() {
			return fmt.Errorf("rule %s: unknown decision category %q", owner, c)
		}
	}
	return nil
}

func (t *Table) Version() string {
	return t.version
}

func (t *Table) lookup(reason string) Rule {
	if r, ok := t.byReason[reason]; ok {
		return r
	}
	return t.defaults
}

// Allowed reports whether a decision of the category may be attested for the reason
func (t *Table) Allowed(reason string, category models.DecisionCategory) bool {
	for _, c := range t.lookup(reason).Categories {
		if c == category {
			return true
		}
	}
	return false
}

// CheckCategory returns an IncompatibleCategoryError when Allowed is false
func (t *Table) CheckCategory(reason string, category models.DecisionCategory) error {
	if t.Allowed(reason, category) {
		return nil
	}
	return &models.IncompatibleCategoryError{Category: category, RevisionReason: reason}
}

// SendLetter reports whether attesting a decision for the reason triggers a letter
func (t *Table) SendLetter(reason string) bool {
	return t.lookup(reason).SendLetter
}
