// Package voting holds the client voting state machine and the pure
// aggregation functions that derive views and next round scores from it.
//
// Reduce is a pure transition function; the Session container wraps it
// with the persistence and preference side effects of one client session.
package voting

import (
	"slices"

	"github.com/okian/vauva/internal/domain/heart"
)

// NameSet is a set of names.
type NameSet map[string]struct{}

// Has reports membership; a nil set is empty.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in ascending order.
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// State is the client voting state of one session.
type State struct {
	ActiveUsername string
	Hearts         []heart.Record
	// ActiveRound is 0 for the base round.
	ActiveRound int
	// SortByScore pins names already scored in ActiveRound when the round
	// was entered.
	SortByScore NameSet
}

// Initial returns the empty state a session starts from.
func Initial() State {
	return State{Hearts: []heart.Record{}, SortByScore: NameSet{}}
}

// Intent is an input to Reduce.
type Intent interface{ intent() }

type (
	// SetUsername selects the active rater.
	SetUsername struct{ Username string }
	// SetHearts replaces the working set wholesale.
	SetHearts struct{ Records []heart.Record }
	// AddHeart appends one record. The caller guarantees no record exists
	// for the same name and username.
	AddHeart struct{ Record heart.Record }
	// SetRound selects the active round, 0 being the base round.
	SetRound struct{ Round int }
	// ResetRoundSortList recomputes SortByScore for the active round.
	ResetRoundSortList struct{}
	// Clear returns to the initial state on logout.
	Clear struct{}
)

func (SetUsername) intent()        {}
func (SetHearts) intent()          {}
func (AddHeart) intent()           {}
func (SetRound) intent()           {}
func (ResetRoundSortList) intent() {}
func (Clear) intent()              {}

// Reduce maps (state, intent) to the next state. Fields are replaced, never
// mutated in place, so earlier states stay valid. Unknown or invalid
// intents return s unchanged.
func Reduce(s State, in Intent) State {
	switch in := in.(type) {
	case SetUsername:
		s.ActiveUsername = in.Username
	case SetHearts:
		if in.Records == nil {
			in.Records = []heart.Record{}
		}
		s.Hearts = in.Records
	case AddHeart:
		s.Hearts = append(slices.Clip(s.Hearts), in.Record)
	case SetRound:
		if in.Round < 0 {
			return s
		}
		s.ActiveRound = in.Round
	case ResetRoundSortList:
		s.SortByScore = SortByScoreNames(s.Hearts, s.ActiveRound)
	case Clear:
		return Initial()
	}
	return s
}
