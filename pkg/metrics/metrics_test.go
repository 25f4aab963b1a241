package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegisterer(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "healthscore")
				So(manager.buckets, ShouldResemble, defaultLatencyBuckets)
			})
		})

		Convey("When latency buckets are not increasing", func() {
			manager := NewManager(WithRegisterer(prometheus.NewRegistry()), WithLatencyBuckets(10, 1))

			Convey("Then the default millisecond buckets are kept", func() {
				So(manager.buckets, ShouldResemble, defaultLatencyBuckets)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_ns"),
				WithSubsystem("test_sub"),
				WithPrefix("pre"),
				WithLatencyBuckets(1, 10, 100),
				WithConstLabels(prometheus.Labels{"env": "test"}),
				WithRegisterer(registry),
			)
			manager.scoresComputed.Inc()

			Convey("Then metric names carry the namespace, subsystem and prefix", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_ns_test_sub_pre_scores_computed_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
					So(strings.HasPrefix(f.GetName(), "test_ns_test_sub_pre_"), ShouldBeTrue)
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording scoring metrics", func() {
			So(func() {
				RecordScoreComputed()
				RecordScoreCacheHit()
				RecordScoreCacheMiss()
				UpdateRosterSize(120)
				RecordAnalysis("trend", 12)
				RecordAnalysis("movement", 30)
			}, ShouldNotPanic)
		})

		Convey("When recording series and upstream metrics", func() {
			So(func() {
				RecordSeriesCacheHit()
				RecordSeriesCacheMiss()
				RecordUpstreamLatency(250)
				RecordUpstreamFailure("timeout")
				RecordUpstreamFailure("error")
				RecordFallbackActivation()
				RecordFallbackFailure()
				RecordStaleDiscarded()
				RecordRepositoryQueryLatency(4)
				UpdateCommitQueue(3, 64)
				RecordCommitEnqueueError("full")
				RecordCommit("ok", 120, 35)
				RecordCommit("error", 0, 2)
			}, ShouldNotPanic)
		})

		Convey("When recording HTTP and error metrics", func() {
			So(func() {
				RecordHTTPRequest("trend", "GET", "200")
				RecordHTTPRequestDuration("trend", "GET", "200", 5.0)
				RecordErrorByComponent("app", "upstream_unavailable")
				RecordErrorByType("server_error", "high")
				RecordErrorByEndpoint("series", "GET", "server_error")
				RecordErrorLatency("http", "server_error", 100)
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			So(func() {
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry exposes them", func() {
			RecordScoreComputed()
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := map[string]bool{}
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["healthscore_analytics_scores_computed_total"], ShouldBeTrue)
		})
	})
}
