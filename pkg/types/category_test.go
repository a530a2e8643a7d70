package types

import "testing"

func TestDataModelCategory_Matches(t *testing.T) {
	tracks := NewDataModelCategory("wfs", "tracks", "vessels")
	tests := []struct {
		name    string
		pattern DataModelCategory
		want    bool
	}{
		{"exact", tracks, true},
		{"zero matches everything", DataModelCategory{}, true},
		{"source only", DataModelCategory{Source: "wfs"}, true},
		{"family and category", DataModelCategory{Family: "tracks", Category: "vessels"}, true},
		{"different category", NewDataModelCategory("wfs", "tracks", "aircraft"), false},
		{"different source with wildcards", DataModelCategory{Source: "wms"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pattern.Matches(tracks); got != tt.want {
				t.Fatalf("%s.Matches(%s) = %v, want %v", tt.pattern, tracks, got, tt.want)
			}
		})
	}
}

func TestDataModelCategory_Collapse(t *testing.T) {
	c := NewDataModelCategory("wfs", "tracks", "vessels")
	tests := []struct {
		name                string
		source, family, cat bool
		want                DataModelCategory
	}{
		{"all", true, true, true, c},
		{"source only", true, false, false, DataModelCategory{Source: "wfs"}},
		{"family and category", false, true, true, DataModelCategory{Family: "tracks", Category: "vessels"}},
		{"none", false, false, false, DataModelCategory{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Collapse(tt.source, tt.family, tt.cat); got != tt.want {
				t.Fatalf("Collapse = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDataModelCategory_String(t *testing.T) {
	if got := (DataModelCategory{Source: "wfs", Category: "vessels"}).String(); got != "wfs/*/vessels" {
		t.Fatalf("String = %q", got)
	}
	c := NewDataModelCategory("a", "b", "c")
	if c.IsWildcard() || c.IsZero() {
		t.Fatal("complete category reported as wildcard or zero")
	}
	if !(DataModelCategory{}).IsZero() || !(DataModelCategory{Source: "a"}).IsWildcard() {
		t.Fatal("partial category not reported as wildcard")
	}
}
