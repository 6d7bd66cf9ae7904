package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/jobs"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeSnapshotStore struct {
	races    []model.Race
	ledgers  map[string][]model.Ledger
	snaps    map[string]model.PointSnapshot
	failRace string
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{
		ledgers: make(map[string][]model.Ledger),
		snaps:   make(map[string]model.PointSnapshot),
	}
}

func (f *fakeSnapshotStore) Races(context.Context) ([]model.Race, error) {
	return f.races, nil
}

func (f *fakeSnapshotStore) RaceLedgers(_ context.Context, raceID string, limit, offset int) ([]model.Ledger, error) {
	if raceID == f.failRace {
		return nil, errors.New("race unavailable")
	}
	all := f.ledgers[raceID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeSnapshotStore) UpsertSnapshot(_ context.Context, snap model.PointSnapshot) error {
	f.snaps[snap.LedgerID+"|"+snap.Date] = snap
	return nil
}

func TestSnapshotRecorder(t *testing.T) {
	Convey("Given a snapshot recorder over a fake store", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 8, 31, 23, 30, 0, 0, time.UTC)
		date := model.SnapshotDate(now)

		store := newFakeSnapshotStore()
		rec := jobs.NewSnapshotRecorder(store,
			jobs.WithSnapshotClock(func() time.Time { return now }),
			jobs.WithSnapshotPageSize(2),
		)

		Convey("When a race has more ledgers than one page", func() {
			store.races = []model.Race{{ID: "race-1", WinCondition: model.WinByPoints}}
			for i := 0; i < 5; i++ {
				store.ledgers["race-1"] = append(store.ledgers["race-1"], model.Ledger{
					ID:          fmt.Sprintf("led-%d", i),
					RaceID:      "race-1",
					TotalPoints: int64(100 - i*10),
					Tier:        "BRONZE",
				})
			}

			So(rec.Record(ctx), ShouldBeNil)

			Convey("Then ranks are dense, 1-based and span page boundaries", func() {
				So(store.snaps, ShouldHaveLength, 5)
				for i := 0; i < 5; i++ {
					snap := store.snaps[fmt.Sprintf("led-%d|%s", i, date)]
					So(snap.Rank, ShouldEqual, i+1)
					So(snap.Points, ShouldEqual, int64(100-i*10))
					So(snap.Date, ShouldEqual, date)
				}
			})

			Convey("And re-running the same day overwrites instead of duplicating", func() {
				store.ledgers["race-1"][0].TotalPoints = 999
				So(rec.Record(ctx), ShouldBeNil)
				So(store.snaps, ShouldHaveLength, 5)
				So(store.snaps["led-0|"+date].Points, ShouldEqual, 999)
			})
		})

		Convey("When one race fails", func() {
			store.races = []model.Race{
				{ID: "bad", WinCondition: model.WinByPoints},
				{ID: "good", WinCondition: model.WinByPoints},
			}
			store.failRace = "bad"
			store.ledgers["good"] = []model.Ledger{{ID: "led-g", RaceID: "good", TotalPoints: 5, Tier: "BRONZE"}}

			Convey("Then the other race is still snapshotted", func() {
				So(rec.Record(ctx), ShouldNotBeNil)
				So(store.snaps, ShouldHaveLength, 1)
				So(store.snaps["led-g|"+date].Rank, ShouldEqual, 1)
			})
		})

		Convey("When there are no races", func() {
			So(rec.Record(ctx), ShouldBeNil)
			So(store.snaps, ShouldBeEmpty)
		})
	})
}
