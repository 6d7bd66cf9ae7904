package metrics_test

import (
	"testing"

	"github.com/okian/tally/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording domain metrics", func() {
			// These must not panic and must be registered on the custom
			// registry; exact values are asserted via Gather below.
			metrics.RecordEventRecorded()
			metrics.RecordEventSkipped("self_action")
			metrics.RecordEventSkipped("not_competitor")
			metrics.RecordFanoutTarget("recorded")
			metrics.RecordDecayCompensations(3)
			metrics.RecordLedgerRecomputed()
			metrics.RecordSnapshotsWritten(10)
			metrics.RecordBallotRaceProcessed()
			metrics.RecordBallotAwards(3)
			metrics.RecordPublishFailure()
			metrics.RecordJobRun("decay", true)
			metrics.RecordJobRun("ballot", false)
			metrics.RecordJobSkip("decay")
			metrics.ObserveJobDuration("decay", 0.02)
			metrics.UpdateLedgerCount(7)
			metrics.SetJobInFlight("decay", true)
			metrics.SetJobInFlight("decay", false)
			metrics.RecordHTTPRequest("leaderboard", "GET", "200")
			metrics.ObserveHTTPRequestDuration("leaderboard", "GET", "200", 0.004)

			Convey("Then the custom registry gathers them", func() {
				families, err := metrics.Registry().Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["tally_ledger_events_recorded_total"], ShouldBeTrue)
				So(names["tally_ledger_events_skipped_total"], ShouldBeTrue)
				So(names["tally_ledger_decay_compensations_total"], ShouldBeTrue)
				So(names["tally_ledger_job_runs_total"], ShouldBeTrue)
				So(names["tally_ledger_ledgers"], ShouldBeTrue)
				So(names["tally_ledger_job_in_flight"], ShouldBeTrue)
				So(names["tally_http_requests_total"], ShouldBeTrue)

				Convey("And default Go collectors are absent", func() {
					So(names["go_goroutines"], ShouldBeFalse)
				})
			})
		})
	})
}

func TestNewManagerOptions(t *testing.T) {
	Convey("Given a manager with custom namespace and subsystem", t, func() {
		m := metrics.NewManager(
			metrics.WithNamespace("other"),
			metrics.WithSubsystem("points"),
			metrics.WithHistogramBuckets([]float64{0.1, 1}),
		)
		So(m, ShouldNotBeNil)
	})
}
