package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sub"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.heartsLoaded.Add(2)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_sub_loaded_total")
			})
		})

		Convey("When empty options are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "vauva")
				So(manager.subsystem, ShouldEqual, "hearts")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording heart traffic", func() {
			before := testutil.ToFloat64(globalManager.heartsLoaded)
			RecordHeartsLoaded(3)
			insertsBefore := testutil.ToFloat64(globalManager.heartWrites.WithLabelValues("insert"))
			RecordHeartWrites("insert", 2)
			RecordHeartWrites("insert", 0)

			Convey("Then counters move by the recorded amounts", func() {
				So(testutil.ToFloat64(globalManager.heartsLoaded), ShouldEqual, before+3)
				So(testutil.ToFloat64(globalManager.heartWrites.WithLabelValues("insert")), ShouldEqual, insertsBefore+2)
			})
		})

		Convey("When updating the record gauge", func() {
			UpdateTotalHearts(42)

			Convey("Then the gauge holds the last value", func() {
				So(testutil.ToFloat64(globalManager.totalHearts), ShouldEqual, float64(42))
			})
		})

		Convey("When recording sessions, HTTP and system metrics", func() {
			So(func() {
				RecordSaveBatch("applied")
				RecordSaveDuplicate()
				RecordStoreLatency("badger", "list", 1.5)
				RecordStoreError("sqlite", "apply")
				RecordResults("round")
				RecordLogin("ok")
				RecordLoginThrottled()
				RecordLogout()
				RecordHTTPRequest("hearts", "GET", "200")
				RecordHTTPRequestDuration("hearts", "GET", "200", 3)
				RecordErrorByEndpoint("hearts", "POST", "client_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(7)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("Then the registry is the custom one", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.logouts)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				RecordLogout()
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(testutil.ToFloat64(globalManager.logouts), ShouldEqual, before+50)
		})
	})
}
