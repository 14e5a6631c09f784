package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/vauva/internal/domain/heart"
	. "github.com/smartystreets/goconvey/convey"
)

var drivers = []string{DriverSQLite, DriverBadger}

func openMemory(t *testing.T, driver string) Store {
	t.Helper()
	s, err := Open(context.Background(), driver, WithInMemory(true))
	if err != nil {
		t.Fatalf("open %s: %v", driver, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func names(records []heart.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func TestResolve(t *testing.T) {
	Convey("Given records with every tag", t, func() {
		cases := []struct {
			r    heart.Record
			want op
		}{
			{heart.Record{PendingOp: heart.OpInsert}, opInsert},
			{heart.Record{PendingOp: heart.OpInsert, ID: "x"}, opInsert},
			{heart.Record{PendingOp: heart.OpUpdate, ID: "x"}, opUpdate},
			{heart.Record{PendingOp: heart.OpUpdate}, opInsert},
			{heart.Record{PendingOp: heart.OpDelete, ID: "x"}, opDelete},
			{heart.Record{PendingOp: heart.OpDelete}, opSkip},
			{heart.Record{ID: "x"}, opUpdate},
			{heart.Record{}, opInsert},
		}
		for _, c := range cases {
			So(resolve(c.r), ShouldEqual, c.want)
		}
	})
}

func TestStoreDrivers(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()

			Convey("Given an empty "+driver+" store", t, func() {
				s := openMemory(t, driver)

				Convey("When an account lists", func() {
					got, err := s.List(ctx, "acc1")

					Convey("Then it gets an empty list", func() {
						So(err, ShouldBeNil)
						So(got, ShouldBeEmpty)
						So(s.Count(ctx), ShouldEqual, 0)
					})
				})

				Convey("When the account is empty", func() {
					_, err := s.List(ctx, "")
					So(errors.Is(err, ErrInvalidAccount), ShouldBeTrue)
					_, err = s.Apply(ctx, "", nil)
					So(errors.Is(err, ErrInvalidAccount), ShouldBeTrue)
				})

				Convey("When new records are applied", func() {
					sum, err := s.Apply(ctx, "acc1", []heart.Record{
						{Name: "Aino", Score: 3, Username: "A", PendingOp: heart.OpInsert},
						{Name: "Eero", Score: 1, Username: "A", PendingOp: heart.OpInsert},
						{Name: "Aino", Score: 5, Username: "B"},
					})

					Convey("Then they get ids and come back in creation order", func() {
						So(err, ShouldBeNil)
						So(sum, ShouldResemble, Summary{Inserted: 3})

						got, err := s.List(ctx, "acc1")
						So(err, ShouldBeNil)
						So(names(got), ShouldResemble, []string{"Aino", "Eero", "Aino"})
						for _, r := range got {
							So(r.ID, ShouldNotBeEmpty)
							So(r.Account, ShouldEqual, "acc1")
							So(r.PendingOp, ShouldEqual, heart.OpNone)
						}
						So(got[2].Score, ShouldEqual, 5)
						So(s.Count(ctx), ShouldEqual, 3)
					})

					Convey("And another account sees none of them", func() {
						got, err := s.List(ctx, "acc2")
						So(err, ShouldBeNil)
						So(got, ShouldBeEmpty)
					})

					Convey("And updates keep the position while rewriting the fields", func() {
						got, _ := s.List(ctx, "acc1")
						first := got[0]
						first.Score = 4
						first.Rounds = []heart.RoundScore{{Round: 1, Scores: []heart.ScoreEntry{{Username: "A", Score: 2}}}}
						first.PendingOp = heart.OpUpdate

						sum, err := s.Apply(ctx, "acc1", []heart.Record{first})
						So(err, ShouldBeNil)
						So(sum.Updated, ShouldEqual, 1)

						again, _ := s.List(ctx, "acc1")
						So(names(again), ShouldResemble, []string{"Aino", "Eero", "Aino"})
						So(again[0].ID, ShouldEqual, first.ID)
						So(again[0].Score, ShouldEqual, 4)
						So(again[0].Rounds, ShouldResemble, first.Rounds)
					})

					Convey("And deletes remove by id", func() {
						got, _ := s.List(ctx, "acc1")
						victim := got[1]
						victim.PendingOp = heart.OpDelete

						sum, err := s.Apply(ctx, "acc1", []heart.Record{victim, {Name: "Ghost", PendingOp: heart.OpDelete}})
						So(err, ShouldBeNil)
						So(sum, ShouldResemble, Summary{Deleted: 1, Skipped: 1})

						again, _ := s.List(ctx, "acc1")
						So(names(again), ShouldResemble, []string{"Aino", "Aino"})
						So(s.Count(ctx), ShouldEqual, 2)
					})

					Convey("And another account cannot touch them", func() {
						got, _ := s.List(ctx, "acc1")
						stolen := got[0]
						stolen.Score = 1
						stolen.PendingOp = heart.OpUpdate

						_, err := s.Apply(ctx, "acc2", []heart.Record{
							{Name: "Helmi", Score: 2, Username: "C", PendingOp: heart.OpInsert},
							stolen,
						})
						So(errors.Is(err, ErrForeignRecord), ShouldBeTrue)

						Convey("Then nothing of that batch was written", func() {
							mine, _ := s.List(ctx, "acc2")
							So(mine, ShouldBeEmpty)
							theirs, _ := s.List(ctx, "acc1")
							So(theirs[0].Score, ShouldEqual, 3)
						})

						stolen.PendingOp = heart.OpDelete
						_, err = s.Apply(ctx, "acc2", []heart.Record{stolen})
						So(errors.Is(err, ErrForeignRecord), ShouldBeTrue)
					})
				})

				Convey("When an update names an unknown id", func() {
					sum, err := s.Apply(ctx, "acc1", []heart.Record{
						{ID: "fixed-id", Name: "Onni", Score: 2, Username: "A", PendingOp: heart.OpUpdate},
					})

					Convey("Then the record is created with that id", func() {
						So(err, ShouldBeNil)
						So(sum.Updated, ShouldEqual, 1)
						got, _ := s.List(ctx, "acc1")
						So(got, ShouldHaveLength, 1)
						So(got[0].ID, ShouldEqual, "fixed-id")
					})
				})

				Convey("When the store is closed", func() {
					So(s.Close(), ShouldBeNil)
					_, err := s.List(ctx, "acc1")
					So(errors.Is(err, ErrStoreClosed), ShouldBeTrue)
					_, err = s.Apply(ctx, "acc1", nil)
					So(errors.Is(err, ErrStoreClosed), ShouldBeTrue)
					So(s.Count(ctx), ShouldEqual, 0)
					So(s.Close(), ShouldBeNil)
				})
			})
		})
	}
}

func TestStoreConcurrentApply(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			Convey("Given concurrent writers on one "+driver+" store", t, func() {
				s := openMemory(t, driver)

				var wg sync.WaitGroup
				errs := make(chan error, 10)
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := s.Apply(ctx, "acc1", []heart.Record{
							{Name: "Aino", Score: 1, Username: "A", PendingOp: heart.OpInsert},
						})
						errs <- err
					}()
				}
				wg.Wait()
				close(errs)

				Convey("Then every insert lands", func() {
					for err := range errs {
						So(err, ShouldBeNil)
					}
					got, err := s.List(ctx, "acc1")
					So(err, ShouldBeNil)
					So(got, ShouldHaveLength, 10)
					So(s.Count(ctx), ShouldEqual, 10)
				})
			})
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	Convey("When an unknown driver is opened", t, func() {
		_, err := Open(context.Background(), "postgres")
		So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
	})

	Convey("When no path and no memory flag are given", t, func() {
		_, err := Open(context.Background(), DriverSQLite)
		So(err, ShouldNotBeNil)
		_, err = Open(context.Background(), DriverBadger)
		So(err, ShouldNotBeNil)
	})
}

func TestRoundsColumn(t *testing.T) {
	Convey("Given a rounds column", t, func() {
		var c roundsColumn

		Convey("Then NULL and empty text scan to nil", func() {
			So(c.Scan(nil), ShouldBeNil)
			So(c, ShouldBeNil)
			So(c.Scan(""), ShouldBeNil)
			So(c, ShouldBeNil)
		})

		Convey("Then JSON text scans back to rounds", func() {
			So(c.Scan([]byte(`[{"round":2,"scores":[{"username":"A","score":4}]}]`)), ShouldBeNil)
			So(c, ShouldHaveLength, 1)
			So(c[0].Round, ShouldEqual, 2)
			So(c[0].Scores[0].Score, ShouldEqual, 4)
		})

		Convey("Then unsupported types fail", func() {
			So(c.Scan(42), ShouldNotBeNil)
		})

		Convey("Then empty rounds are stored as NULL", func() {
			v, err := roundsColumn(nil).Value()
			So(err, ShouldBeNil)
			So(v, ShouldBeNil)
		})
	})
}
