package model_test

import (
	"testing"
	"time"

	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntityRef(t *testing.T) {
	Convey("Given entity refs", t, func() {
		a := model.EntityRef{Kind: model.EntityUser, ID: "u1"}

		Convey("Equal compares kind and id", func() {
			So(a.Equal(model.EntityRef{Kind: model.EntityUser, ID: "u1"}), ShouldBeTrue)
			So(a.Equal(model.EntityRef{Kind: model.EntityParty, ID: "u1"}), ShouldBeFalse)
			So(a.Equal(model.EntityRef{Kind: model.EntityUser, ID: "u2"}), ShouldBeFalse)
		})

		Convey("Valid requires a known kind and a non-empty id", func() {
			So(a.Valid(), ShouldBeTrue)
			So(model.EntityRef{Kind: model.EntityParty, ID: "p1"}.Valid(), ShouldBeTrue)
			So(model.EntityRef{Kind: model.EntityUser}.Valid(), ShouldBeFalse)
			So(model.EntityRef{Kind: "robot", ID: "r1"}.Valid(), ShouldBeFalse)
		})
	})
}

func TestKnownAction(t *testing.T) {
	Convey("Given the closed action catalogue", t, func() {
		So(model.KnownAction(model.ActionLike), ShouldBeTrue)
		So(model.KnownAction(model.ActionDecay), ShouldBeTrue)
		So(model.KnownAction(model.Action("UPVOTE")), ShouldBeFalse)

		Convey("The default point table covers every non-synthetic action", func() {
			points := model.DefaultActionPoints()
			So(points[string(model.ActionLike)], ShouldEqual, 1)
			So(points[string(model.ActionReview5Star)], ShouldEqual, 10)

			Convey("Decay and ballot awards carry caller-computed deltas", func() {
				_, ok := points[string(model.ActionDecay)]
				So(ok, ShouldBeFalse)
				_, ok = points[string(model.ActionBallot)]
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestSnapshotDate(t *testing.T) {
	Convey("Given timestamps near midnight", t, func() {
		loc := time.FixedZone("UTC+9", 9*3600)

		Convey("The snapshot key is the UTC calendar date", func() {
			local := time.Date(2026, 3, 1, 5, 0, 0, 0, loc) // 2026-02-28T20:00Z
			So(model.SnapshotDate(local), ShouldEqual, "2026-02-28")
			So(model.SnapshotDate(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2026-03-01")
		})
	})
}
