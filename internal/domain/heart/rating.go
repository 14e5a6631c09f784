package heart

// Rating is what one rater has said about one name: nothing, a base score,
// or a base score plus the name's extension rounds.
type Rating interface {
	isRating()
	// Base returns the base round score, 0 when unrated.
	Base() int
}

// Unrated means no live record exists for the pair.
type Unrated struct{}

// BaseRated carries only a base round score.
type BaseRated struct {
	Score int
}

// Extended carries the base score and the name's extension rounds.
type Extended struct {
	Score  int
	Rounds []RoundScore
}

func (Unrated) isRating()   {}
func (BaseRated) isRating() {}
func (Extended) isRating()  {}

func (Unrated) Base() int     { return 0 }
func (b BaseRated) Base() int { return b.Score }
func (e Extended) Base() int  { return e.Score }

// RoundScore returns chooser's score for round, 0 when absent.
func (e Extended) RoundScore(round int, chooser string) int {
	rs, ok := Find(e.Rounds, round)
	if !ok {
		return 0
	}
	s, _ := rs.ScoreOf(chooser)
	return s
}
