package model

import (
	"fmt"
	"strings"

	"github.com/Veraticus/fintrack/internal/common"
)

// Category is one of the fixed spending categories.
type Category string

const (
	// CategoryFood covers groceries, delivery and restaurants.
	CategoryFood Category = "food"
	// CategoryTransport covers rides and fuel.
	CategoryTransport Category = "transport"
	// CategoryHousing covers rent, utilities and maintenance.
	CategoryHousing Category = "housing"
	// CategoryShopping covers online and retail purchases.
	CategoryShopping Category = "shopping"
	// CategoryHealth covers hospitals, pharmacies and medicine.
	CategoryHealth Category = "health"
	// CategoryEntertainment covers movies, streaming and events.
	CategoryEntertainment Category = "entertainment"
	// CategoryTravel covers hotels, flights and holidays.
	CategoryTravel Category = "travel"
	// CategoryEducation covers courses, tuition and books.
	CategoryEducation Category = "education"
	// CategoryOther is used when nothing else matches.
	CategoryOther Category = "other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryHousing,
	CategoryShopping,
	CategoryHealth,
	CategoryEntertainment,
	CategoryTravel,
	CategoryEducation,
	CategoryOther,
}

// ErrUnknownCategory is returned by ParseCategory for names outside the fixed set.
var ErrUnknownCategory = fmt.Errorf("%w: unknown category", common.ErrValidation)

// ParseCategory normalizes s and checks it against the fixed set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Title returns the category name with a leading capital, for display.
func (c Category) Title() string {
	if c == "" {
		return ""
	}
	s := string(c)
	return strings.ToUpper(s[:1]) + s[1:]
}
