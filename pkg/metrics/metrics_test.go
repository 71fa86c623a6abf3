package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "scout")
				So(manager.subsystem, ShouldEqual, "engine")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.metricPrefix, ShouldEqual, "test")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.refreshInterval, ShouldEqual, 10*time.Second)
			})

			Convey("And metric names should carry the prefix", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_test_rank_latency_milliseconds" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording ingestion metrics", func() {
			before := testutil.ToFloat64(globalManager.postingsReceived)
			RecordPostingsReceived(3)
			dupBefore := testutil.ToFloat64(globalManager.postingsDuplicate)
			RecordPostingDuplicate()

			Convey("Then counters should advance", func() {
				So(testutil.ToFloat64(globalManager.postingsReceived), ShouldEqual, before+3)
				So(testutil.ToFloat64(globalManager.postingsDuplicate), ShouldEqual, dupBefore+1)
			})
		})

		Convey("When recording a decision", func() {
			c := globalManager.decisions.WithLabelValues("approve", "false")
			before := testutil.ToFloat64(c)
			RecordDecision("approve", false)

			Convey("Then the labelled counter should advance", func() {
				So(testutil.ToFloat64(c), ShouldEqual, before+1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateModelDecisions(7)
			UpdateModelFeatures("keyword", 12)
			UpdateInboxSize(4)

			Convey("Then gauges should hold the latest value", func() {
				So(testutil.ToFloat64(globalManager.modelDecisions), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.modelFeatures.WithLabelValues("keyword")), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.inboxSize), ShouldEqual, 4)
			})
		})

		Convey("When recording the remaining helpers", func() {
			Convey("Then none of them should panic", func() {
				So(func() {
					RecordPostingFlagged()
					RecordPostingMalformed()
					RecordRank(12.5, 4)
					RecordRankRollback()
					RecordDecisionNotFound()
					RecordStorageError("sqlite", "insert_fingerprint")
					RecordStorageLatency("sqlite", "insert_fingerprint", 1.5)
					UpdateQueueSize(1)
					UpdateQueueCapacity(10)
					UpdateQueueUtilization(0.1)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					UpdateWorkerCount(2)
					UpdateWorkerActiveCount(1)
					RecordWorkerProcessingLatency(3)
					RecordWorkerError()
					RecordDiscoveryRun("file", "ok")
					RecordHTTPRequest("/stats", "GET", "200")
					RecordHTTPRequestDuration("/stats", "GET", "200", 2)
					RecordErrorByComponent("http", "client_error")
					RecordErrorByEndpoint("/decisions", "POST", "not_found")
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(8)
					RecordSystemGCPauseTime(0.2)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording is switched off", func() {
			Configure(WithMetricsEnabled(false), WithRefreshInterval(3*time.Second))
			defer Configure(WithMetricsEnabled(true), WithRefreshInterval(defaultRefreshInterval))
			before := testutil.ToFloat64(globalManager.postingsReceived)
			RecordPostingsReceived(5)

			Convey("Then helpers are no-ops and the interval is updated", func() {
				So(Enabled(), ShouldBeFalse)
				So(testutil.ToFloat64(globalManager.postingsReceived), ShouldEqual, before)
				So(RefreshInterval(), ShouldEqual, 3*time.Second)
			})
		})

		Convey("When configured with a non-positive interval", func() {
			Configure(WithRefreshInterval(0))

			Convey("Then the current interval is kept", func() {
				So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
				So(Enabled(), ShouldBeTrue)
			})
		})

		Convey("When gathering from the registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then scout metrics should be exposed", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}
