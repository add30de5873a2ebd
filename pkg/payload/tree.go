package payload

import "slices"

// Depths returns the depth of each unit within the given set. Units whose
// parent is outside the set have depth 0. Units on or below a parent cycle
// get -1.
func Depths(units []OrgUnit) map[string]int {
	parents := make(map[string]string, len(units))
	for _, u := range units {
		parents[u.UUID] = u.ParentOrgUnitUUID
	}

	const outside = -2
	depths := make(map[string]int, len(units))
	var depthOf func(id string, seen map[string]bool) int
	depthOf = func(id string, seen map[string]bool) int {
		if d, ok := depths[id]; ok {
			return d
		}
		parent, ok := parents[id]
		if !ok {
			return outside
		}
		if seen[id] {
			return -1
		}
		if parent == "" {
			return 0
		}
		seen[id] = true
		d := depthOf(parent, seen)
		switch d {
		case -1:
			return -1
		case outside:
			d = 0
		default:
			d++
		}
		depths[id] = d
		return d
	}

	for _, u := range units {
		if _, ok := depths[u.UUID]; !ok {
			depths[u.UUID] = depthOf(u.UUID, map[string]bool{})
		}
	}
	return depths
}

// SortParentFirst orders units so that every parent precedes its children.
// The sort is stable for units at equal depth.
func SortParentFirst(units []OrgUnit) []OrgUnit {
	depths := Depths(units)
	out := slices.Clone(units)
	slices.SortStableFunc(out, func(a, b OrgUnit) int {
		return depths[a.UUID] - depths[b.UUID]
	})
	return out
}

// SortDeepestFirst orders units so that children precede their parents.
func SortDeepestFirst(units []OrgUnit) []OrgUnit {
	depths := Depths(units)
	out := slices.Clone(units)
	slices.SortStableFunc(out, func(a, b OrgUnit) int {
		return depths[b.UUID] - depths[a.UUID]
	})
	return out
}
