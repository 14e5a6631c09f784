package voting_test

import (
	"testing"

	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/internal/voting"
	. "github.com/smartystreets/goconvey/convey"
)

type unknownIntent struct{ voting.Intent }

func TestReduce(t *testing.T) {
	Convey("Given the initial state", t, func() {
		s := voting.Initial()

		Convey("Then it is empty", func() {
			So(s.ActiveUsername, ShouldBeEmpty)
			So(s.Hearts, ShouldBeEmpty)
			So(s.ActiveRound, ShouldEqual, 0)
			So(s.SortByScore, ShouldBeEmpty)
		})

		Convey("When SetUsername is reduced", func() {
			next := voting.Reduce(s, voting.SetUsername{Username: "A"})

			Convey("Then only the username changes", func() {
				So(next.ActiveUsername, ShouldEqual, "A")
				So(next.ActiveRound, ShouldEqual, 0)
				So(next.Hearts, ShouldBeEmpty)
				So(s.ActiveUsername, ShouldBeEmpty)
			})
		})

		Convey("When SetHearts is reduced", func() {
			records := []heart.Record{{ID: "x1", Name: "Aino", Score: 4, Username: "A"}}
			next := voting.Reduce(s, voting.SetHearts{Records: records})

			Convey("Then the working set is replaced wholesale", func() {
				So(next.Hearts, ShouldResemble, records)
			})

			Convey("And nil replaces it with an empty set", func() {
				cleared := voting.Reduce(next, voting.SetHearts{})
				So(cleared.Hearts, ShouldNotBeNil)
				So(cleared.Hearts, ShouldBeEmpty)
			})
		})

		Convey("When AddHeart is reduced twice from the same state", func() {
			base := voting.Reduce(s, voting.SetHearts{Records: make([]heart.Record, 1, 4)})
			a := voting.Reduce(base, voting.AddHeart{Record: heart.Record{Name: "Aino"}})
			b := voting.Reduce(base, voting.AddHeart{Record: heart.Record{Name: "Eka"}})

			Convey("Then neither result sees the other's record", func() {
				So(a.Hearts, ShouldHaveLength, 2)
				So(b.Hearts, ShouldHaveLength, 2)
				So(a.Hearts[1].Name, ShouldEqual, "Aino")
				So(b.Hearts[1].Name, ShouldEqual, "Eka")
				So(base.Hearts, ShouldHaveLength, 1)
			})
		})

		Convey("When SetRound is reduced", func() {
			So(voting.Reduce(s, voting.SetRound{Round: 2}).ActiveRound, ShouldEqual, 2)

			Convey("Then a negative round is ignored", func() {
				So(voting.Reduce(s, voting.SetRound{Round: -1}), ShouldResemble, s)
			})
		})

		Convey("When ResetRoundSortList is reduced in round 2", func() {
			records := []heart.Record{
				{Name: "Aino", Score: 5, Username: "A", Rounds: []heart.RoundScore{
					{Round: 2, Scores: []heart.ScoreEntry{{Username: "A", Score: 3}}},
				}},
				{Name: "Eka", Score: 4, Username: "A"},
			}
			st := voting.Reduce(s, voting.SetHearts{Records: records})
			st = voting.Reduce(st, voting.SetRound{Round: 2})
			st = voting.Reduce(st, voting.ResetRoundSortList{})

			Convey("Then exactly the scored name is pinned", func() {
				So(st.SortByScore, ShouldHaveLength, 1)
				So(st.SortByScore.Has("Aino"), ShouldBeTrue)
				So(st.SortByScore.Has("Eka"), ShouldBeFalse)
			})
		})

		Convey("When Clear is reduced", func() {
			st := voting.Reduce(s, voting.SetUsername{Username: "A"})
			st = voting.Reduce(st, voting.AddHeart{Record: heart.Record{Name: "Aino"}})
			st = voting.Reduce(st, voting.Clear{})

			Convey("Then the state is initial again", func() {
				So(st, ShouldResemble, voting.Initial())
			})
		})

		Convey("When an unknown intent is reduced", func() {
			st := voting.Reduce(s, voting.SetUsername{Username: "A"})

			Convey("Then the state is returned unchanged", func() {
				So(voting.Reduce(st, unknownIntent{}), ShouldResemble, st)
				So(voting.Reduce(st, nil), ShouldResemble, st)
			})
		})
	})
}

func TestNameSet(t *testing.T) {
	Convey("Given a name set", t, func() {
		s := voting.NameSet{"Eka": {}, "Aino": {}}

		Convey("Then Sorted lists names ascending", func() {
			So(s.Sorted(), ShouldResemble, []string{"Aino", "Eka"})
		})

		Convey("Then a nil set has no members", func() {
			var empty voting.NameSet
			So(empty.Has("Aino"), ShouldBeFalse)
		})
	})
}
