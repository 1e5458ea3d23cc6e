// README: Role-scoped transition table for the pickup state machine.
package pickup

import "wastelink/internal/types"

// TransitionTable maps role -> from -> allowed targets.
type TransitionTable map[types.Role]map[Status][]Status

func (t TransitionTable) Allows(role types.Role, from, to Status) bool {
	for _, s := range t[role][from] {
		if s == to {
			return true
		}
	}
	return false
}

// Permits reports whether role may trigger any transition at all.
func (t TransitionTable) Permits(role types.Role) bool {
	return len(t[role]) > 0
}

var adminSources = []Status{
	StatusCreated, StatusMatching, StatusAssigned, StatusAccepted, StatusOnTheWay, StatusArrived,
}

var adminTargets = []Status{
	StatusMatching, StatusAssigned, StatusOnTheWay, StatusArrived, StatusCompleted, StatusCancelled,
}

// DefaultTable returns the stock table. Strict mode enforces the
// ACCEPTED -> ON_THE_WAY -> ARRIVED -> COMPLETED ordering for collectors;
// lenient mode lets the assigned collector jump between working states.
func DefaultTable(strict bool) TransitionTable {
	collector := map[Status][]Status{
		StatusCreated:  {StatusAccepted},
		StatusMatching: {StatusAccepted},
	}
	if strict {
		collector[StatusAccepted] = []Status{StatusOnTheWay, StatusCancelled}
		collector[StatusAssigned] = []Status{StatusOnTheWay, StatusCancelled}
		collector[StatusOnTheWay] = []Status{StatusArrived}
		collector[StatusArrived] = []Status{StatusCompleted}
	} else {
		working := []Status{StatusAssigned, StatusAccepted, StatusOnTheWay, StatusArrived}
		targets := []Status{StatusOnTheWay, StatusArrived, StatusCompleted, StatusCancelled}
		for _, from := range working {
			collector[from] = without(targets, from)
		}
	}

	admin := map[Status][]Status{}
	for _, from := range adminSources {
		admin[from] = without(adminTargets, from)
	}
	// Settlement figures are immutable once recorded.
	admin[StatusCompleted] = []Status{StatusCancelled}

	return TransitionTable{
		types.RoleCollector: collector,
		types.RoleAdmin:     admin,
		types.RoleRecycler: {
			StatusCompleted: {StatusSettled},
		},
	}
}

func without(list []Status, drop Status) []Status {
	out := make([]Status, 0, len(list))
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
