package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/repository"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.Service, repository.Store) {
	t.Helper()
	ctx := context.Background()

	store, err := repository.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := service.New(store)
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, svc, store
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestAPI(t *testing.T) {
	Convey("Given a running read-side API", t, func() {
		ctx := context.Background()
		ts, svc, store := newTestServer(t)

		alice := model.EntityRef{Kind: model.EntityUser, ID: "alice"}
		bob := model.EntityRef{Kind: model.EntityUser, ID: "bob"}
		So(svc.CreateRace(ctx, model.Race{ID: "race-1", Name: "Race One", WinCondition: model.WinByPoints}), ShouldBeNil)
		So(svc.AddCompetitor(ctx, "race-1", alice), ShouldBeNil)
		So(svc.AddCompetitor(ctx, "race-1", bob), ShouldBeNil)

		_, err := svc.RecordPointEvent(ctx, alice, "race-1", model.ActionReview5Star, 10, "bob", "reel-1")
		So(err, ShouldBeNil)
		_, err = svc.RecordPointEvent(ctx, bob, "race-1", model.ActionShare, 3, "alice", "reel-2")
		So(err, ShouldBeNil)

		Convey("When /healthz is requested", func() {
			var body map[string]string
			So(getJSON(t, ts.URL+"/healthz", &body), ShouldEqual, http.StatusOK)
			So(body["status"], ShouldEqual, "ok")
		})

		Convey("When /stats is requested", func() {
			var stats map[string]any
			So(getJSON(t, ts.URL+"/stats", &stats), ShouldEqual, http.StatusOK)
			So(stats["totalLedgers"], ShouldEqual, float64(2))
		})

		Convey("When the leaderboard is requested", func() {
			var standings []api.Standing
			So(getJSON(t, ts.URL+"/races/race-1/leaderboard", &standings), ShouldEqual, http.StatusOK)
			So(standings, ShouldHaveLength, 2)
			So(standings[0].Rank, ShouldEqual, 1)
			So(standings[0].Ledger.Entity.ID, ShouldEqual, "alice")
			So(standings[1].Rank, ShouldEqual, 2)
			So(standings[1].Ledger.Entity.ID, ShouldEqual, "bob")

			Convey("And pagination keeps absolute ranks", func() {
				var page []api.Standing
				So(getJSON(t, ts.URL+"/races/race-1/leaderboard?limit=1&offset=1", &page), ShouldEqual, http.StatusOK)
				So(page, ShouldHaveLength, 1)
				So(page[0].Rank, ShouldEqual, 2)
			})

			Convey("And a bad limit is rejected", func() {
				So(getJSON(t, ts.URL+"/races/race-1/leaderboard?limit=zero", nil), ShouldEqual, http.StatusBadRequest)
			})

			Convey("And an unknown race returns an empty page", func() {
				var empty []api.Standing
				So(getJSON(t, ts.URL+"/races/ghost/leaderboard", &empty), ShouldEqual, http.StatusOK)
				So(empty, ShouldBeEmpty)
			})
		})

		Convey("When event history is requested", func() {
			led, err := store.FindLedger(ctx, alice, "race-1")
			So(err, ShouldBeNil)

			var events []model.PointEvent
			So(getJSON(t, ts.URL+"/ledgers/"+led.ID+"/events", &events), ShouldEqual, http.StatusOK)
			So(events, ShouldHaveLength, 1)
			So(events[0].Action, ShouldEqual, model.ActionReview5Star)

			Convey("And a bounded period still includes fresh events", func() {
				var recent []model.PointEvent
				So(getJSON(t, ts.URL+"/ledgers/"+led.ID+"/events?period=day", &recent), ShouldEqual, http.StatusOK)
				So(recent, ShouldHaveLength, 1)
			})

			Convey("And an unknown period is rejected", func() {
				So(getJSON(t, ts.URL+"/ledgers/"+led.ID+"/events?period=fortnight", nil), ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the snapshot series is requested", func() {
			So(svc.SnapshotNow(ctx), ShouldBeNil)
			led, err := store.FindLedger(ctx, alice, "race-1")
			So(err, ShouldBeNil)

			var snaps []model.PointSnapshot
			So(getJSON(t, ts.URL+"/ledgers/"+led.ID+"/snapshots", &snaps), ShouldEqual, http.StatusOK)
			So(snaps, ShouldHaveLength, 1)
			So(snaps[0].Rank, ShouldEqual, 1)
			So(snaps[0].Points, ShouldEqual, 10)
			So(snaps[0].Date, ShouldEqual, model.SnapshotDate(time.Now()))
		})

		Convey("When an entity summary is requested", func() {
			var ledgers []model.Ledger
			So(getJSON(t, ts.URL+"/entities/user/alice/summary", &ledgers), ShouldEqual, http.StatusOK)
			So(ledgers, ShouldHaveLength, 1)
			So(ledgers[0].TotalPoints, ShouldEqual, 10)

			Convey("And an invalid kind is rejected", func() {
				So(getJSON(t, ts.URL+"/entities/robot/alice/summary", nil), ShouldEqual, http.StatusBadRequest)
			})

			Convey("And an unknown entity returns an empty list", func() {
				var empty []model.Ledger
				So(getJSON(t, ts.URL+"/entities/user/ghost/summary", &empty), ShouldEqual, http.StatusOK)
				So(empty, ShouldBeEmpty)
			})
		})
	})
}
