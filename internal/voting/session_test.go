package voting_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/internal/voting"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	loaded   []heart.Record
	response []heart.Record
	saved    [][]heart.Record
	err      error
}

func (f *fakeStore) Load(context.Context) ([]heart.Record, error) {
	return f.loaded, f.err
}

func (f *fakeStore) Save(_ context.Context, records []heart.Record) ([]heart.Record, error) {
	f.saved = append(f.saved, records)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type fakePrefs struct {
	values map[string]string
	sets   int
	err    error
}

func (f *fakePrefs) Get(key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakePrefs) Set(key, value string) error {
	f.sets++
	if f.err != nil {
		return f.err
	}
	f.values[key] = value
	return nil
}

var family = heart.Account{IsLoggedIn: true, Login: "acc1", Usernames: []string{"A", "B"}}

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session for rater A", t, func() {
		store := &fakeStore{}
		prefs := &fakePrefs{values: map[string]string{}}
		s := voting.NewSession(
			voting.WithPersistence(store),
			voting.WithPreferences(prefs),
			voting.WithAccount(family),
		)
		So(s.SelectRater(ctx, "A"), ShouldBeNil)

		Convey("When A taps 4 on Aino and saves", func() {
			So(s.Rate(ctx, "Aino", 4), ShouldBeNil)

			Convey("Then the working set gains an insert-tagged record", func() {
				So(s.State().Hearts, ShouldResemble, []heart.Record{
					{Name: "Aino", Score: 4, Username: "A", PendingOp: heart.OpInsert},
				})
				So(s.Pending(), ShouldBeTrue)
			})

			store.response = []heart.Record{{ID: "x1", Name: "Aino", Score: 4, Username: "A", Account: "acc1"}}
			So(s.Save(ctx), ShouldBeNil)

			Convey("Then the full working set was sent", func() {
				So(store.saved, ShouldHaveLength, 1)
				So(store.saved[0][0].PendingOp, ShouldEqual, heart.OpInsert)
			})

			Convey("Then local state is exactly the server response", func() {
				So(s.State().Hearts, ShouldResemble, store.response)
				So(s.Pending(), ShouldBeFalse)
			})
		})

		Convey("When a save fails", func() {
			So(s.Rate(ctx, "Aino", 4), ShouldBeNil)
			store.err = errors.New("boom")
			err := s.Save(ctx)

			Convey("Then the error surfaces and the pending tags stay", func() {
				So(err, ShouldNotBeNil)
				So(s.State().Hearts[0].PendingOp, ShouldEqual, heart.OpInsert)
			})
		})

		Convey("When the load fails", func() {
			So(s.Rate(ctx, "Aino", 4), ShouldBeNil)
			store.err = errors.New("unauthorized")

			Convey("Then local state is kept", func() {
				So(s.Load(ctx), ShouldNotBeNil)
				So(s.State().Hearts, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given A and B both rated Aino", t, func() {
		store := &fakeStore{loaded: []heart.Record{
			{ID: "x1", Name: "Aino", Score: 5, Username: "A", Account: "acc1"},
			{ID: "x2", Name: "Aino", Score: 3, Username: "B", Account: "acc1"},
		}}
		s := voting.NewSession(voting.WithPersistence(store), voting.WithAccount(family))
		So(s.Load(ctx), ShouldBeNil)
		So(s.SelectRater(ctx, "A"), ShouldBeNil)

		Convey("When round 1 is entered and A scores Aino 5", func() {
			s.EnterRound(ctx, 1)
			So(s.RateRound(ctx, "Aino", 5), ShouldBeNil)

			Convey("Then only the carrier holds the round", func() {
				hearts := s.State().Hearts
				So(hearts[0].Rounds, ShouldResemble, []heart.RoundScore{
					{Round: 1, Scores: []heart.ScoreEntry{{Username: "A", Score: 5}}},
				})
				So(hearts[1], ShouldResemble, store.loaded[1])
			})

			Convey("Then the matrix and menu reflect it", func() {
				m := s.Matrix()
				So(m.Rows, ShouldHaveLength, 1)
				So(m.Rows[0].Scores, ShouldResemble, []int{5, 0})
				So(s.Rounds(), ShouldResemble, []int{1})
			})

			Convey("Then re-entering the round pins Aino", func() {
				s.EnterRound(ctx, 1)
				So(s.State().SortByScore.Has("Aino"), ShouldBeTrue)
				So(s.Standing()[0].Pinned, ShouldBeTrue)
			})
		})

		Convey("When scoring outside a round", func() {
			So(errors.Is(s.RateRound(ctx, "Aino", 5), voting.ErrNoRound), ShouldBeTrue)
		})

		Convey("When scoring an unrated name in a round", func() {
			s.EnterRound(ctx, 1)
			So(errors.Is(s.RateRound(ctx, "Onni", 5), voting.ErrNotRated), ShouldBeTrue)
		})

		Convey("When A deletes Aino", func() {
			store.response = store.loaded[1:]
			So(s.DeleteNames(ctx, "Aino"), ShouldBeNil)

			Convey("Then the saved batch tags it delete and B keeps theirs", func() {
				sent := store.saved[0]
				So(sent[0].PendingOp, ShouldEqual, heart.OpDelete)
				So(sent[1].PendingOp, ShouldEqual, heart.OpNone)
				So(s.State().Hearts, ShouldHaveLength, 1)
				So(s.Results()[0].Username, ShouldEqual, "B")
			})
		})
	})
}

func TestSessionRater(t *testing.T) {
	ctx := context.Background()

	Convey("Given preferences remembering B", t, func() {
		prefs := &fakePrefs{values: map[string]string{voting.UsernameKey: "B"}}
		s := voting.NewSession(voting.WithPreferences(prefs), voting.WithAccount(family))

		Convey("When the session restores", func() {
			got := s.Restore(ctx)

			Convey("Then B is active and nothing is written back", func() {
				So(got, ShouldEqual, "B")
				So(s.State().ActiveUsername, ShouldEqual, "B")
				So(prefs.sets, ShouldEqual, 0)
			})
		})

		Convey("When the remembered rater is not permitted", func() {
			prefs.values[voting.UsernameKey] = "Z"

			Convey("Then nothing is restored", func() {
				So(s.Restore(ctx), ShouldBeEmpty)
				So(s.State().ActiveUsername, ShouldBeEmpty)
			})
		})

		Convey("When A is selected", func() {
			So(s.SelectRater(ctx, "A"), ShouldBeNil)

			Convey("Then the choice is remembered once", func() {
				So(prefs.values[voting.UsernameKey], ShouldEqual, "A")
				So(prefs.sets, ShouldEqual, 1)
			})
		})

		Convey("When remembering fails", func() {
			prefs.err = errors.New("read-only")
			So(s.SelectRater(ctx, "A"), ShouldBeNil)

			Convey("Then the rater is still selected and no retry happens", func() {
				So(s.State().ActiveUsername, ShouldEqual, "A")
				So(prefs.sets, ShouldEqual, 1)
			})
		})

		Convey("When an unknown rater is selected", func() {
			So(errors.Is(s.SelectRater(ctx, "Z"), voting.ErrUnknownRater), ShouldBeTrue)
		})

		Convey("When rating without a rater", func() {
			So(errors.Is(s.Rate(ctx, "Aino", 3), voting.ErrNoRater), ShouldBeTrue)
		})

		Convey("When rating with a bad score", func() {
			s.Restore(ctx)
			So(errors.Is(s.Rate(ctx, "Aino", 7), voting.ErrInvalidScore), ShouldBeTrue)
		})

		Convey("When the session logs out", func() {
			s.Restore(ctx)
			So(s.Rate(ctx, "Aino", 3), ShouldBeNil)
			s.Logout(ctx)

			Convey("Then state and identity are cleared", func() {
				So(s.State(), ShouldResemble, voting.Initial())
				So(s.Account().IsLoggedIn, ShouldBeFalse)
				So(prefs.values[voting.UsernameKey], ShouldEqual, "B")
			})
		})

		Convey("When no persistence is configured", func() {
			So(errors.Is(s.Load(ctx), voting.ErrNoPersistence), ShouldBeTrue)
			So(errors.Is(s.Save(ctx), voting.ErrNoPersistence), ShouldBeTrue)
		})
	})
}
