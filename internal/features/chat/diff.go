package chat

import "sort"

// ExpectedMembershipSet is the business-rule-derived target state for one
// group. It is computed fresh on every reconciliation pass and never
// persisted.
type ExpectedMembershipSet struct {
	AdminUserIDs      []string
	FieldStaffUserIDs []string
	InactiveUserIDs   []string
}

// AllIDs returns admins followed by field staff, deduplicated.
func (e ExpectedMembershipSet) AllIDs() []string {
	seen := make(map[string]bool, len(e.AdminUserIDs)+len(e.FieldStaffUserIDs))
	out := make([]string, 0, len(e.AdminUserIDs)+len(e.FieldStaffUserIDs))
	for _, id := range e.AdminUserIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range e.FieldStaffUserIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// MembershipDiff is the delta between expected and current membership.
type MembershipDiff struct {
	ToAdd     []string
	ToRemove  []string
	Unchanged []string
}

// Empty reports whether applying the diff would be a no-op.
func (d MembershipDiff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// DiffMembership computes the symmetric difference between the expected and
// current id sets. Output slices are sorted for deterministic application
// and testing.
func DiffMembership(expected, current []string) MembershipDiff {
	expectedSet := toSet(expected)
	currentSet := toSet(current)

	var diff MembershipDiff
	for id := range expectedSet {
		if currentSet[id] {
			diff.Unchanged = append(diff.Unchanged, id)
		} else {
			diff.ToAdd = append(diff.ToAdd, id)
		}
	}
	for id := range currentSet {
		if !expectedSet[id] {
			diff.ToRemove = append(diff.ToRemove, id)
		}
	}

	sort.Strings(diff.ToAdd)
	sort.Strings(diff.ToRemove)
	sort.Strings(diff.Unchanged)
	return diff
}

// DiffAdmins diffs admin membership for a direct-message group. The
// protected id (the group's intended-for member) is never treated as a
// stale admin, no matter what the expected set says.
func DiffAdmins(expectedAdmins, currentAdmins []string, protectedID string) MembershipDiff {
	diff := DiffMembership(expectedAdmins, currentAdmins)

	kept := diff.ToRemove[:0]
	for _, id := range diff.ToRemove {
		if id != protectedID {
			kept = append(kept, id)
		}
	}
	diff.ToRemove = kept

	added := diff.ToAdd[:0]
	for _, id := range diff.ToAdd {
		if id != protectedID {
			added = append(added, id)
		}
	}
	diff.ToAdd = added

	return diff
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	return set
}
