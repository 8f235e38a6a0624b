package components

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"Player", CategoryPlayer, false},
		{"friendly", CategoryFriendly, false},
		{"NEGATIVE", CategoryNegative, false},
		{"neutral", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseCategory(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseMask(t *testing.T) {
	m, err := ParseMask([]string{"player", "negative"})
	if err != nil {
		t.Fatalf("ParseMask: %v", err)
	}
	if !m.Has(CategoryPlayer) || !m.Has(CategoryNegative) || m.Has(CategoryFriendly) {
		t.Errorf("mask %b has wrong members", m)
	}

	if _, err := ParseMask([]string{"player", "ghost"}); err == nil {
		t.Error("expected error for unknown category")
	}

	all, _ := ParseMask(CategoryNames())
	if all != MaskAll {
		t.Errorf("mask of all names = %b, want %b", all, MaskAll)
	}
}

func TestHierarchyChildren(t *testing.T) {
	var h Hierarchy
	if h.HasChild(h.Parent) {
		t.Error("empty hierarchy should have no children")
	}
	if h.State.String() != "Individual" {
		t.Errorf("zero state = %q, want Individual", h.State)
	}
	if Category(9).Valid() || !CategoryNegative.Valid() {
		t.Error("Valid disagrees with the category list")
	}
}
