package voting

import (
	"cmp"
	"slices"

	"github.com/okian/vauva/internal/domain/heart"
)

// RaterGroup is one rater's base round hearts, best first.
type RaterGroup struct {
	Username string         `json:"username"`
	Hearts   []heart.Record `json:"hearts"`
}

// GroupByRater partitions live records by username. Groups follow the
// order usernames first appear in; within a group records are sorted by
// score descending, then name ascending. Records tagged delete are left out.
func GroupByRater(records []heart.Record) []RaterGroup {
	var groups []RaterGroup
	index := make(map[string]int)
	for _, r := range records {
		if r.Deleted() {
			continue
		}
		i, ok := index[r.Username]
		if !ok {
			i = len(groups)
			index[r.Username] = i
			groups = append(groups, RaterGroup{Username: r.Username})
		}
		groups[i].Hearts = append(groups[i].Hearts, r)
	}
	for _, g := range groups {
		slices.SortStableFunc(g.Hearts, func(a, b heart.Record) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			return cmp.Compare(a.Name, b.Name)
		})
	}
	return groups
}

// RecordsFor returns username's records in working-set order.
func RecordsFor(records []heart.Record, username string) []heart.Record {
	var out []heart.Record
	for _, r := range records {
		if r.Username == username {
			out = append(out, r)
		}
	}
	return out
}

// MatrixRow is one name of the extension round matrix.
type MatrixRow struct {
	Name string `json:"name"`
	// Scores holds one score per rater, in Matrix.Raters order; 0 = none.
	Scores []int `json:"scores"`
	Total  int   `json:"total"`
}

// Matrix is the rater by name view of one extension round.
type Matrix struct {
	Round  int         `json:"round"`
	Raters []string    `json:"raters"`
	Rows   []MatrixRow `json:"rows"`
}

// RoundMatrix resolves, for every distinct name in ascending order and
// every rater, the rater's score in round through the name's carrier.
func RoundMatrix(records []heart.Record, raters []string, round int) Matrix {
	b := NewRoundBook(records)
	names := slices.Clone(b.Names())
	slices.Sort(names)

	m := Matrix{Round: round, Raters: slices.Clone(raters), Rows: make([]MatrixRow, 0, len(names))}
	if m.Raters == nil {
		m.Raters = []string{}
	}
	for _, name := range names {
		nr, _ := b.Lookup(name)
		row := MatrixRow{Name: name, Scores: make([]int, len(raters)), Total: nr.Total(round)}
		for i, rater := range raters {
			row.Scores[i] = nr.Score(round, rater)
		}
		m.Rows = append(m.Rows, row)
	}
	return m
}

// Standing is one name's place in the extension round list.
type Standing struct {
	Name string `json:"name"`
	// Aggregate sums all choosers' scores for the round.
	Aggregate int  `json:"aggregate"`
	Pinned    bool `json:"pinned"`
}

// RoundStanding orders the distinct names for round. Names in pinned come
// first, ordered by aggregate descending; every tie and every unpinned
// name falls back to name ascending. Unpinned names are not reordered by
// score so that rating during a round does not move them.
func RoundStanding(records []heart.Record, round int, pinned NameSet) []Standing {
	b := NewRoundBook(records)
	out := make([]Standing, 0, len(b.Names()))
	for _, name := range b.Names() {
		nr, _ := b.Lookup(name)
		out = append(out, Standing{Name: name, Aggregate: nr.Total(round), Pinned: pinned.Has(name)})
	}
	slices.SortFunc(out, func(a, b Standing) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		if a.Pinned {
			if c := cmp.Compare(b.Aggregate, a.Aggregate); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// RatingFor describes what username has said about name.
func RatingFor(records []heart.Record, name, username string) heart.Rating {
	i := Find(records, name, username)
	if i < 0 || records[i].Deleted() {
		return heart.Unrated{}
	}
	nr, _ := NewRoundBook(records).Lookup(name)
	if len(nr.Rounds) == 0 {
		return heart.BaseRated{Score: records[i].Score}
	}
	return heart.Extended{Score: records[i].Score, Rounds: heart.CloneRounds(nr.Rounds)}
}
