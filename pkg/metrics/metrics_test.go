package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func gatheredNames(reg *prometheus.Registry) map[string]bool {
	families, err := reg.Gather()
	So(err, ShouldBeNil)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		reg := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("derby"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(reg),
			)
			m.entriesImported.Add(2)
			m.cohortSize.WithLabelValues("2024-derby").Set(12)

			Convey("Then collectors are registered under the custom names", func() {
				names := gatheredNames(reg)
				So(names["test_derby_entries_imported_total"], ShouldBeTrue)
				So(names["test_derby_cohort_size"], ShouldBeTrue)
			})

			Convey("Then const labels are attached", func() {
				families, err := reg.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() != "test_derby_entries_imported_total" {
						continue
					}
					for _, lp := range f.GetMetric()[0].GetLabel() {
						if lp.GetName() == "env" && lp.GetValue() == "test" {
							found = true
						}
					}
					So(f.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 2)
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			m := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(reg))

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "loftrank")
				So(m.subsystem, ShouldEqual, "scoring")
				So(len(m.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Import and report recorders do not panic", func() {
			So(func() {
				RecordImportBatch("sync")
				RecordEntriesImported(2)
				RecordEntriesSkipped(1)
				RecordDataQualityNote("missing_rank")
				RecordImportLatency(12)
				RecordStorageFailure()
				RecordReportServed()
				RecordReportLatency(3)
				UpdateCohortSize("s1", 4)
				RecordEmptyCohort()
			}, ShouldNotPanic)
		})

		Convey("Queue, worker and HTTP recorders do not panic", func() {
			So(func() {
				RecordJobStatus("queued")
				RecordDuplicateRequest()
				UpdateQueueSize(3)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0.3)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(40)
				RecordWorkerError()
				RecordHTTPRequest("report", "GET", "200")
				RecordHTTPRequestDuration("report", "GET", "200", 1.5)
				RecordErrorByComponent("repository", "storage")
				RecordErrorByType("storage", "high")
				RecordErrorByEndpoint("import", "POST", "client_error")
				UpdateRepositoryEntriesTotal(10)
				RecordRepositoryUpdateLatency(1)
				RecordRepositoryQueryLatency(1)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("The custom registry exposes the recorded families", func() {
			RecordEntriesImported(1)
			names := gatheredNames(GetRegistry())
			So(names["loftrank_scoring_entries_imported_total"], ShouldBeTrue)
			So(names["loftrank_scoring_import_batches_total"], ShouldBeTrue)
		})
	})
}
