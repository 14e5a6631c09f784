package voting

import (
	"github.com/okian/vauva/internal/domain/heart"
)

// NameRounds is the extension round data of one name. Rounds are shared by
// all raters and live on a single carrier record of the working set.
type NameRounds struct {
	Name string
	// Carrier is the index of the record holding Rounds.
	Carrier int
	Rounds  []heart.RoundScore
}

// Score returns chooser's score for round, 0 when absent.
func (nr NameRounds) Score(round int, chooser string) int {
	rs, ok := heart.Find(nr.Rounds, round)
	if !ok {
		return 0
	}
	s, _ := rs.ScoreOf(chooser)
	return s
}

// Scored reports whether round has at least one score.
func (nr NameRounds) Scored(round int) bool {
	rs, ok := heart.Find(nr.Rounds, round)
	return ok && len(rs.Scores) > 0
}

// Total sums every chooser's score for round.
func (nr NameRounds) Total(round int) int {
	rs, _ := heart.Find(nr.Rounds, round)
	total := 0
	for _, e := range rs.Scores {
		total += e.Score
	}
	return total
}

// RoundBook indexes the working set by name. A name's carrier is its first
// record in working-set order, whatever its pending op, so a soft-deleted
// carrier keeps holding the shared rounds until the delete is saved.
type RoundBook struct {
	names  []string
	byName map[string]NameRounds
}

// NewRoundBook indexes records.
func NewRoundBook(records []heart.Record) RoundBook {
	b := RoundBook{byName: make(map[string]NameRounds)}
	for i, r := range records {
		if _, seen := b.byName[r.Name]; seen {
			continue
		}
		b.names = append(b.names, r.Name)
		b.byName[r.Name] = NameRounds{Name: r.Name, Carrier: i, Rounds: r.Rounds}
	}
	return b
}

// Lookup returns the round data for name.
func (b RoundBook) Lookup(name string) (NameRounds, bool) {
	nr, ok := b.byName[name]
	return nr, ok
}

// Names lists distinct names in first-appearance order.
func (b RoundBook) Names() []string {
	return b.names
}

// CarrierIndex returns the index of name's carrier record, or -1.
func CarrierIndex(records []heart.Record, name string) int {
	nr, ok := NewRoundBook(records).Lookup(name)
	if !ok {
		return -1
	}
	return nr.Carrier
}

// SortByScoreNames returns the names whose carrier has a non-empty score
// list for round. Round 0 yields an empty set.
func SortByScoreNames(records []heart.Record, round int) NameSet {
	out := NameSet{}
	if round <= 0 {
		return out
	}
	b := NewRoundBook(records)
	for _, name := range b.names {
		if b.byName[name].Scored(round) {
			out[name] = struct{}{}
		}
	}
	return out
}

// MaxRound returns the highest extension round present on any record, 0
// when there is none.
func MaxRound(records []heart.Record) int {
	maxRound := 0
	for _, r := range records {
		for _, rs := range r.Rounds {
			maxRound = max(maxRound, rs.Round)
		}
	}
	return maxRound
}

// Rounds lists the extension rounds 1..MaxRound a rater can switch to.
func Rounds(records []heart.Record) []int {
	n := MaxRound(records)
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// NextRound is the round number a new extension round would get.
func NextRound(records []heart.Record) int {
	return MaxRound(records) + 1
}
