package voting

import (
	"slices"

	"github.com/okian/vauva/internal/domain/heart"
)

func validScore(s int) bool { return s >= heart.MinScore && s <= heart.MaxScore }

// Find returns the index of the record for (name, username), or -1.
func Find(records []heart.Record, name, username string) int {
	return slices.IndexFunc(records, func(r heart.Record) bool {
		return r.Name == name && r.Username == username
	})
}

// NewHeart is the record created when a rater first taps a score.
func NewHeart(name, username string, score int) heart.Record {
	return heart.Record{Name: name, Score: score, Username: username, PendingOp: heart.OpInsert}
}

// ToggleBase returns the working set after username taps score on name in
// the base round:
//   - no record: a new one tagged insert is appended
//   - same score on an unsaved record: the record is removed
//   - same score on a saved record: tagged delete, or back to update when
//     it already was
//   - different score: score replaced, tagged insert or update
//
// records is never modified.
func ToggleBase(records []heart.Record, name, username string, score int) []heart.Record {
	if !validScore(score) {
		return records
	}
	i := Find(records, name, username)
	if i < 0 {
		return append(slices.Clip(records), NewHeart(name, username, score))
	}

	cur := records[i]
	if cur.Score == score {
		if !cur.Persisted() {
			return slices.Delete(slices.Clone(records), i, i+1)
		}
		if cur.Deleted() {
			cur.PendingOp = heart.OpUpdate
		} else {
			cur.PendingOp = heart.OpDelete
		}
	} else {
		cur.Score = score
		if cur.Persisted() {
			cur.PendingOp = heart.OpUpdate
		} else {
			cur.PendingOp = heart.OpInsert
		}
	}
	return replaceAt(records, i, cur)
}

// Checked reports whether the base round heart at position is filled for
// (name, username).
func Checked(records []heart.Record, name, username string, position int) bool {
	i := Find(records, name, username)
	return i >= 0 && !records[i].Deleted() && records[i].Score >= position
}

// ToggleRound returns the working set after chooser scores name in an
// extension round. The change is written onto the carrier record only; all
// other records keep their values and their rounds slices. A persisted,
// untagged carrier is tagged update so the change is saved. Names without
// records, rounds below 1 and scores outside 1..5 leave records unchanged.
func ToggleRound(records []heart.Record, name string, round int, chooser string, score int) []heart.Record {
	if round < 1 || !validScore(score) || chooser == "" {
		return records
	}
	nr, ok := NewRoundBook(records).Lookup(name)
	if !ok {
		return records
	}

	carrier := records[nr.Carrier]
	carrier.Rounds = nextRounds(nr.Rounds, round, heart.ScoreEntry{Username: chooser, Score: score})
	if carrier.Persisted() && carrier.PendingOp == heart.OpNone {
		carrier.PendingOp = heart.OpUpdate
	}
	return replaceAt(records, nr.Carrier, carrier)
}

// nextRounds applies the four-way transition for one chooser's score
// without touching the backing arrays of old.
func nextRounds(old []heart.RoundScore, round int, entry heart.ScoreEntry) []heart.RoundScore {
	if len(old) == 0 {
		return []heart.RoundScore{{Round: round, Scores: []heart.ScoreEntry{entry}}}
	}
	oldRound, ok := heart.Find(old, round)
	if !ok {
		return append(slices.Clip(old), heart.RoundScore{Round: round, Scores: []heart.ScoreEntry{entry}})
	}

	_, hasScore := oldRound.ScoreOf(entry.Username)
	out := make([]heart.RoundScore, len(old))
	for i, rs := range old {
		if rs.Round != round {
			out[i] = rs
			continue
		}
		if hasScore {
			scores := slices.Clone(rs.Scores)
			for j := range scores {
				if scores[j].Username == entry.Username {
					scores[j].Score = entry.Score
				}
			}
			out[i] = heart.RoundScore{Round: round, Scores: scores}
		} else {
			out[i] = heart.RoundScore{Round: round, Scores: append(slices.Clip(rs.Scores), entry)}
		}
	}
	return out
}

// CheckedRound reports whether the extension round heart at position is
// filled for chooser on name. Names without records render nothing.
func CheckedRound(records []heart.Record, name string, round int, chooser string, position int) bool {
	nr, ok := NewRoundBook(records).Lookup(name)
	return ok && nr.Score(round, chooser) >= position
}

// DeletionBatch returns the working set after username removes names in
// bulk: unsaved records are dropped and saved ones are tagged delete.
// Other raters' records are untouched.
func DeletionBatch(records []heart.Record, username string, names []string) []heart.Record {
	out := make([]heart.Record, 0, len(records))
	for _, r := range records {
		if r.Username != username || !slices.Contains(names, r.Name) {
			out = append(out, r)
			continue
		}
		if !r.Persisted() {
			continue
		}
		r.PendingOp = heart.OpDelete
		out = append(out, r)
	}
	return out
}

// Pending reports whether any record diverges from the store.
func Pending(records []heart.Record) bool {
	return slices.ContainsFunc(records, func(r heart.Record) bool {
		return r.PendingOp != heart.OpNone
	})
}

func replaceAt(records []heart.Record, i int, r heart.Record) []heart.Record {
	out := slices.Clone(records)
	out[i] = r
	return out
}
