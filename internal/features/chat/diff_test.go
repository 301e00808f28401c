package chat

import (
	"reflect"
	"testing"
)

func TestDiffMembership(t *testing.T) {
	tests := []struct {
		name       string
		expected   []string
		current    []string
		wantAdd    []string
		wantRemove []string
	}{
		{
			name:     "identical sets produce empty diff",
			expected: []string{"e1", "e2"},
			current:  []string{"e2", "e1"},
		},
		{
			name:     "all new members",
			expected: []string{"e1", "e2"},
			current:  nil,
			wantAdd:  []string{"e1", "e2"},
		},
		{
			name:       "all stale members",
			expected:   nil,
			current:    []string{"e1", "e2"},
			wantRemove: []string{"e1", "e2"},
		},
		{
			name:       "mixed add and remove",
			expected:   []string{"e1", "e3"},
			current:    []string{"e1", "e2"},
			wantAdd:    []string{"e3"},
			wantRemove: []string{"e2"},
		},
		{
			name:     "duplicates in input collapse",
			expected: []string{"e1", "e1", "e2"},
			current:  []string{"e2"},
			wantAdd:  []string{"e1"},
		},
		{
			name:     "output is sorted",
			expected: []string{"z9", "a1", "m5"},
			current:  nil,
			wantAdd:  []string{"a1", "m5", "z9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := DiffMembership(tt.expected, tt.current)
			if !sameIDs(diff.ToAdd, tt.wantAdd) {
				t.Errorf("ToAdd = %v, want %v", diff.ToAdd, tt.wantAdd)
			}
			if !sameIDs(diff.ToRemove, tt.wantRemove) {
				t.Errorf("ToRemove = %v, want %v", diff.ToRemove, tt.wantRemove)
			}
			wantEmpty := len(tt.wantAdd) == 0 && len(tt.wantRemove) == 0
			if diff.Empty() != wantEmpty {
				t.Errorf("Empty() = %v, want %v", diff.Empty(), wantEmpty)
			}
		})
	}
}

func TestDiffMembershipPure(t *testing.T) {
	expected := []string{"e1", "e2"}
	current := []string{"e2", "e3"}

	first := DiffMembership(expected, current)
	second := DiffMembership(expected, current)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("same inputs produced different diffs: %v vs %v", first, second)
	}
	if expected[0] != "e1" || current[0] != "e2" {
		t.Error("inputs were mutated")
	}
}

func TestDiffAdmins(t *testing.T) {
	tests := []struct {
		name       string
		expected   []string
		current    []string
		protected  string
		wantAdd    []string
		wantRemove []string
	}{
		{
			name:       "protected user never removed",
			expected:   []string{"a1"},
			current:    []string{"a1", "fs1"},
			protected:  "fs1",
			wantAdd:    nil,
			wantRemove: nil,
		},
		{
			name:      "protected user never added",
			expected:  []string{"a1", "fs1"},
			current:   []string{"a1"},
			protected: "fs1",
		},
		{
			name:       "regular churn around protected user",
			expected:   []string{"a2"},
			current:    []string{"a1", "fs1"},
			protected:  "fs1",
			wantAdd:    []string{"a2"},
			wantRemove: []string{"a1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := DiffAdmins(tt.expected, tt.current, tt.protected)
			if !sameIDs(diff.ToAdd, tt.wantAdd) {
				t.Errorf("ToAdd = %v, want %v", diff.ToAdd, tt.wantAdd)
			}
			if !sameIDs(diff.ToRemove, tt.wantRemove) {
				t.Errorf("ToRemove = %v, want %v", diff.ToRemove, tt.wantRemove)
			}
		})
	}
}

func sameIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
