package types

import "strings"

// DataModelCategory is the (source, family, category) partition key for rows.
// An empty component is a wildcard. Two categories are equal when all three
// components are equal, so the struct is usable as a map key.
type DataModelCategory struct {
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Family   string `json:"family,omitempty" yaml:"family,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// NewDataModelCategory returns the category for the given components.
func NewDataModelCategory(source, family, category string) DataModelCategory {
	return DataModelCategory{Source: source, Family: family, Category: category}
}

// IsWildcard reports whether any component is empty.
func (c DataModelCategory) IsWildcard() bool {
	return c.Source == "" || c.Family == "" || c.Category == ""
}

// IsZero reports whether every component is empty.
func (c DataModelCategory) IsZero() bool {
	return c == DataModelCategory{}
}

// Matches reports whether other satisfies c, treating empty components of c
// as wildcards.
func (c DataModelCategory) Matches(other DataModelCategory) bool {
	return (c.Source == "" || c.Source == other.Source) &&
		(c.Family == "" || c.Family == other.Family) &&
		(c.Category == "" || c.Category == other.Category)
}

// Collapse returns a copy of c with the components whose flag is false
// replaced by the wildcard.
func (c DataModelCategory) Collapse(bySource, byFamily, byCategory bool) DataModelCategory {
	out := c
	if !bySource {
		out.Source = ""
	}
	if !byFamily {
		out.Family = ""
	}
	if !byCategory {
		out.Category = ""
	}
	return out
}

func (c DataModelCategory) String() string {
	parts := []string{c.Source, c.Family, c.Category}
	for i, p := range parts {
		if p == "" {
			parts[i] = "*"
		}
	}
	return strings.Join(parts, "/")
}
