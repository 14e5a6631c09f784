// Package heart defines the heart record data model shared by the voting
// core, the stores and the HTTP API.
package heart

import (
	"encoding/json"
	"slices"
)

// Score bounds for base and extension round ratings.
const (
	MinScore = 1
	MaxScore = 5
)

// PendingOp tags how a record diverges from the persisted store until the
// next save. The zero value means untagged.
type PendingOp string

const (
	OpNone   PendingOp = ""
	OpInsert PendingOp = "insert"
	OpUpdate PendingOp = "update"
	OpDelete PendingOp = "delete"
)

// Valid reports whether o is untagged or one of the three known tags.
func (o PendingOp) Valid() bool {
	switch o {
	case OpNone, OpInsert, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// ScoreEntry is one chooser's score within an extension round.
type ScoreEntry struct {
	Username string `json:"username" validate:"required"`
	Score    int    `json:"score" validate:"gte=1,lte=5"`
}

// RoundScore holds every chooser's score for one extension round of a name.
type RoundScore struct {
	Round  int          `json:"round" validate:"gte=1"`
	Scores []ScoreEntry `json:"scores,omitempty" validate:"omitempty,dive"`
}

// Record is one rater's score for one name. Rounds are only meaningful on
// the carrier record of a name.
type Record struct {
	ID        string       `json:"id,omitempty"`
	Name      string       `json:"name" validate:"required,max=100"`
	Score     int          `json:"score" validate:"gte=1,lte=5"`
	Username  string       `json:"username" validate:"required,max=100"`
	Account   string       `json:"account,omitempty"`
	Rounds    []RoundScore `json:"rounds,omitempty" validate:"omitempty,dive"`
	PendingOp PendingOp    `json:"onSave,omitempty" validate:"omitempty,oneof=insert update delete"`
}

// UnmarshalJSON accepts "pendingOp" as an alias for "onSave".
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		Alias PendingOp `json:"pendingOp,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	if r.PendingOp == OpNone {
		r.PendingOp = aux.Alias
	}
	return nil
}

// Persisted reports whether the store has assigned an id.
func (r Record) Persisted() bool { return r.ID != "" }

// Deleted reports whether the record is tagged for deletion.
func (r Record) Deleted() bool { return r.PendingOp == OpDelete }

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Rounds = CloneRounds(r.Rounds)
	return r
}

// CloneRounds deep copies a rounds list, keeping nil as nil.
func CloneRounds(rounds []RoundScore) []RoundScore {
	if rounds == nil {
		return nil
	}
	out := make([]RoundScore, len(rounds))
	for i, rs := range rounds {
		out[i] = RoundScore{Round: rs.Round, Scores: slices.Clone(rs.Scores)}
	}
	return out
}

// Find returns the entry for round, if any.
func Find(rounds []RoundScore, round int) (RoundScore, bool) {
	for _, rs := range rounds {
		if rs.Round == round {
			return rs, true
		}
	}
	return RoundScore{}, false
}

// ScoreOf returns the chooser's score within rs, if any.
func (rs RoundScore) ScoreOf(username string) (int, bool) {
	for _, e := range rs.Scores {
		if e.Username == username {
			return e.Score, true
		}
	}
	return 0, false
}

// Account is the session identity: the login and the raters permitted to
// vote under it.
type Account struct {
	IsLoggedIn bool     `json:"isLoggedIn"`
	Login      string   `json:"login"`
	Usernames  []string `json:"usernames"`
}

// LoggedOut is the identity of a visitor without a session.
func LoggedOut() Account {
	return Account{Usernames: []string{}}
}

// Permits reports whether username is one of the account's raters.
func (a Account) Permits(username string) bool {
	return slices.Contains(a.Usernames, username)
}
