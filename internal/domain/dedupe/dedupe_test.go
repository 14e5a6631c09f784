package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	dedupe "github.com/okian/vauva/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should be empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording batch keys", func() {
			d := dedupe.NewInMemoryDeduper()
			key := dedupe.BatchKey("acc1", "batch-1")

			Convey("And the key is new", func() {
				seen := d.SeenAndRecord(ctx, key)

				Convey("Then it should return false and record the key", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key was already seen", func() {
				d.SeenAndRecord(ctx, key)
				seen := d.SeenAndRecord(ctx, key)

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the same batch id arrives from another account", func() {
				d.SeenAndRecord(ctx, key)
				seen := d.SeenAndRecord(ctx, dedupe.BatchKey("acc2", "batch-1"))

				Convey("Then it is treated as a different batch", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 2)
				})
			})
		})

		Convey("When unrecording keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key exists", func() {
				d.SeenAndRecord(ctx, "k1")
				d.Unrecord(ctx, "k1")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
				})
			})

			Convey("And the key doesn't exist", func() {
				d.Unrecord(ctx, "nonexistent")

				Convey("Then it should not affect the size", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When using bounded mode with eviction", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, k := range []string{"k1", "k2", "k3"} {
				So(d.SeenAndRecord(ctx, k), ShouldBeFalse)
			}

			seen := d.SeenAndRecord(ctx, "k4")

			Convey("Then the oldest key is evicted", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "k4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When a key is unrecorded in bounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "k1")
			d.Unrecord(ctx, "k1")
			d.SeenAndRecord(ctx, "k2")
			d.SeenAndRecord(ctx, "k1")

			Convey("Then the stale ring slot does not evict the re-recorded key", func() {
				d.SeenAndRecord(ctx, "k3")
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k3"), ShouldBeTrue)
			})
		})

		Convey("When keys have a TTL", func() {
			now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
			d := dedupe.NewInMemoryDeduper(
				dedupe.WithTTL(time.Minute),
				dedupe.WithClock(func() time.Time { return now }),
			)
			d.SeenAndRecord(ctx, "k1")

			Convey("Then the key is remembered within the TTL", func() {
				now = now.Add(30 * time.Second)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeTrue)
			})

			Convey("Then the key is forgotten after the TTL", func() {
				now = now.Add(2 * time.Minute)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			const n = 1000
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, int64(n))
				for i := 0; i < n; i++ {
					So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeTrue)
				}
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const goroutines = 10
		const perGoroutine = 100

		Convey("When multiple goroutines record keys concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := 0; j < perGoroutine; j++ {
						d.SeenAndRecord(context.Background(), fmt.Sprintf("k-%d-%d", id, j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then all keys should be recorded", func() {
				So(d.Size(), ShouldEqual, int64(goroutines*perGoroutine))
			})
		})

		Convey("When the same key races", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(context.Background(), "same") {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one caller wins", func() {
				So(fresh, ShouldEqual, 1)
			})
		})
	})
}
