// Package classification assigns spending categories from transaction descriptions.
package classification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/Veraticus/fintrack/internal/model"
)

// ErrInvalidRule is returned when a keyword table fails validation.
var ErrInvalidRule = fmt.Errorf("%w: invalid category rule", common.ErrValidation)

// Rule maps a set of lowercase keywords to a category.
type Rule struct {
	Category model.Category `mapstructure:"category" yaml:"category"`
	Keywords []string       `mapstructure:"keywords" yaml:"keywords"`
}

// Table is an ordered list of rules. The first rule with a matching keyword wins.
type Table []Rule

// Validate checks every rule names a known category and carries usable keywords.
func (t Table) Validate() error {
	var errs []error
	for i, rule := range t {
		if !rule.Category.Valid() {
			errs = append(errs, fmt.Errorf("%w: rule %d: unknown category %q", ErrInvalidRule, i, rule.Category))
			continue
		}
		if len(rule.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("%w: rule %d (%s): no keywords", ErrInvalidRule, i, rule.Category))
			continue
		}
		for _, kw := range rule.Keywords {
			if strings.TrimSpace(kw) == "" {
				errs = append(errs, fmt.Errorf("%w: rule %d (%s): empty keyword", ErrInvalidRule, i, rule.Category))
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Merge returns a table with extra rules checked before the rules of t.
func (t Table) Merge(extra Table) Table {
	merged := make(Table, 0, len(extra)+len(t))
	merged = append(merged, extra...)
	return append(merged, t...)
}

// Categorizer matches descriptions against a keyword table.
type Categorizer struct {
	table Table
}

// NewCategorizer validates table and returns a categorizer over a normalized copy.
func NewCategorizer(table Table) (*Categorizer, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	normalized := make(Table, len(table))
	for i, rule := range table {
		keywords := make([]string, len(rule.Keywords))
		for j, kw := range rule.Keywords {
			keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
		normalized[i] = Rule{Category: rule.Category, Keywords: keywords}
	}

	return &Categorizer{table: normalized}, nil
}

// NewDefaultCategorizer returns a categorizer over DefaultTable.
func NewDefaultCategorizer() *Categorizer {
	c, err := NewCategorizer(DefaultTable())
	if err != nil {
		panic(fmt.Sprintf("default category table is invalid: %v", err))
	}
	return c
}

// Categorize returns the category of the first rule whose keyword occurs in
// description, or model.CategoryOther.
func (c *Categorizer) Categorize(description string) model.Category {
	desc := strings.ToLower(strings.TrimSpace(description))
	if desc == "" {
		return model.CategoryOther
	}

	for _, rule := range c.table {
		for _, kw := range rule.Keywords {
			if strings.Contains(desc, kw) {
				return rule.Category
			}
		}
	}

	return model.CategoryOther
}

// Table returns a copy of the rules in evaluation order.
func (c *Categorizer) Table() Table {
	out := make(Table, len(c.table))
	for i, rule := range c.table {
		out[i] = Rule{Category: rule.Category, Keywords: append([]string(nil), rule.Keywords...)}
	}
	return out
}
