package notify_test

import (
	"context"
	"sync"
	"testing"

	"github.com/okian/tally/internal/adapters/notify"
	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBus(t *testing.T) {
	Convey("Given a score change bus", t, func() {
		bus := notify.NewBus()
		ctx := context.Background()

		Convey("When a subscriber is registered", func() {
			var mu sync.Mutex
			var got []model.ScoreChange
			handler := func(change model.ScoreChange) {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, change)
			}
			So(bus.SubscribeScoreChange(handler), ShouldBeNil)

			Convey("Then published changes reach it", func() {
				change := model.ScoreChange{
					RaceID: "race-1",
					Entity: model.EntityRef{Kind: model.EntityUser, ID: "u1"},
					Points: 42,
					Tier:   "SILVER",
				}
				So(bus.PublishScoreChange(ctx, change), ShouldBeNil)
				bus.WaitAsync()

				mu.Lock()
				defer mu.Unlock()
				So(got, ShouldHaveLength, 1)
				So(got[0], ShouldResemble, change)
			})

			Convey("And unsubscribing stops delivery", func() {
				So(bus.UnsubscribeScoreChange(handler), ShouldBeNil)
				So(bus.PublishScoreChange(ctx, model.ScoreChange{RaceID: "race-1"}), ShouldBeNil)
				bus.WaitAsync()

				mu.Lock()
				defer mu.Unlock()
				So(got, ShouldBeEmpty)
			})
		})

		Convey("When nobody subscribes", func() {
			Convey("Then publishing is still a no-op success", func() {
				So(bus.PublishScoreChange(ctx, model.ScoreChange{RaceID: "race-1"}), ShouldBeNil)
			})
		})

		Convey("When the context is already canceled", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()
			So(bus.PublishScoreChange(canceled, model.ScoreChange{}), ShouldNotBeNil)
		})
	})
}
