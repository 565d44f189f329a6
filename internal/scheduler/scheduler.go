package scheduler

import "slices"

// SelectNext returns the members to start next, highest priority first.
//
// A member qualifies when it is pending, not in flight, and every dependency that
// names a member of this set is completed. Dependencies on IDs outside the set count
// as satisfied. Equal priorities keep their original order. At most
// limit-len(inFlight) members are returned; no free slot or no eligible member
// yields an empty slice.
//
// SelectNext is pure: it neither mutates its arguments nor performs I/O.
func SelectNext(members []Member, inFlight map[string]bool, limit int) []Member {
	slots := limit - len(inFlight)
	if slots <= 0 {
		return []Member{}
	}

	statuses := StatusIndex(members)

	eligible := make([]Member, 0, len(members))
	for _, m := range members {
		u := m.State()
		if u.Status != StatusPending || inFlight[u.ID] {
			continue
		}
		if !DependenciesMet(u, statuses) {
			continue
		}
		eligible = append(eligible, m)
	}

	slices.SortStableFunc(eligible, func(a, b Member) int {
		return b.State().Priority.Weight() - a.State().Priority.Weight()
	})

	if len(eligible) > slots {
		eligible = eligible[:slots]
	}
	return eligible
}

// StatusIndex maps member IDs to their current status.
func StatusIndex(members []Member) map[string]Status {
	idx := make(map[string]Status, len(members))
	for _, m := range members {
		u := m.State()
		idx[u.ID] = u.Status
	}
	return idx
}

// DependenciesMet reports whether every known dependency of u is completed.
func DependenciesMet(u *Unit, statuses map[string]Status) bool {
	for _, depID := range u.DependsOn {
		st, known := statuses[depID]
		if !known {
			continue
		}
		if st != StatusCompleted {
			return false
		}
	}
	return true
}

// Unsatisfiable reports whether some dependency of u is failed or skipped and will
// therefore never complete in this run. A dependency that is merely not done yet
// does not count.
func Unsatisfiable(u *Unit, statuses map[string]Status) bool {
	for _, depID := range u.DependsOn {
		switch statuses[depID] {
		case StatusFailed, StatusSkipped:
			return true
		}
	}
	return false
}
