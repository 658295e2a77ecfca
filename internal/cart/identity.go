package cart

import "sort"

// AddonsEqual compares two addon lists as sets of the same size. Nil and empty
// lists are equal. Inputs are not reordered.
func AddonsEqual(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	as := sortedCopy(a)
	bs := sortedCopy(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// SelectionsEqual reports whether two selection sets describe the same
// configuration. Both nil are equal; exactly one nil is not. Container, size
// and precomputed price participate fully, so a different container is a
// different line.
func SelectionsEqual(a, b *Selections) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !groupsEqual(a.Groups, b.Groups) || !groupsEqual(a.Metadata, b.Metadata) {
		return false
	}
	if !a.Container.equal(b.Container) || !a.Size.equal(b.Size) {
		return false
	}
	if a.PrecomputedPrice == nil || b.PrecomputedPrice == nil {
		return a.PrecomputedPrice == nil && b.PrecomputedPrice == nil
	}
	return *a.PrecomputedPrice == *b.PrecomputedPrice
}

// FindLine returns the index of the first line matching the identity, or -1.
func FindLine(lines []LineItem, productID string, addons []string, selections *Selections) int {
	for i := range lines {
		if lines[i].matches(productID, addons, selections) {
			return i
		}
	}
	return -1
}

func groupsEqual(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, av := range a {
		bv, ok := b[key]
		if !ok || !AddonsEqual(av, bv) {
			return false
		}
	}
	return true
}

func sortedCopy(values []string) []string {
	out := copyStrings(values)
	sort.Strings(out)
	return out
}
