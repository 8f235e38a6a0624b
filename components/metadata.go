package components

import (
	"fmt"
	"strings"
)

// String returns the display name for a Category.
func (c Category) String() string {
	names := CategoryNames()
	if int(c) < len(names) {
		return names[c]
	}
	return "Unknown"
}

// CategoryNames returns the display names for all categories.
// The order matches the Category constants.
func CategoryNames() []string {
	return []string{"Player", "Friendly", "Negative"}
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	for i, name := range CategoryNames() {
		if strings.EqualFold(s, name) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// ParseMask builds a mask from category names.
func ParseMask(names []string) (CategoryMask, error) {
	var m CategoryMask
	for _, n := range names {
		c, err := ParseCategory(n)
		if err != nil {
			return 0, err
		}
		m |= c.Mask()
	}
	return m, nil
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return int(c) < len(CategoryNames())
}

// String returns the display name for a State.
func (s State) String() string {
	switch s {
	case StateIndividual:
		return "Individual"
	case StateChild:
		return "Child"
	case StateParent:
		return "Parent"
	}
	return "Unknown"
}
