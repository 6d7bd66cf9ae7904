package ballot_test

import (
	"testing"

	"github.com/okian/tally/internal/domain/ballot"
	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func user(id string) model.EntityRef {
	return model.EntityRef{Kind: model.EntityUser, ID: id}
}

func TestTabulate(t *testing.T) {
	Convey("Given a tabulator with default weights", t, func() {
		tab := ballot.New()

		Convey("When one voter ranks A, B, C", func() {
			awards := tab.Tabulate([]model.Ballot{
				{RaceID: "r1", VoterID: "v1", Ranking: []model.EntityRef{user("A"), user("B"), user("C")}},
			})

			Convey("Then the choices earn 8, 5 and 3 points", func() {
				So(awards, ShouldHaveLength, 3)
				So(awards[0], ShouldResemble, ballot.Award{Entity: user("A"), Points: 8})
				So(awards[1], ShouldResemble, ballot.Award{Entity: user("B"), Points: 5})
				So(awards[2], ShouldResemble, ballot.Award{Entity: user("C"), Points: 3})
			})
		})

		Convey("When several ballots rank the same candidates", func() {
			awards := tab.Tabulate([]model.Ballot{
				{VoterID: "v1", Ranking: []model.EntityRef{user("A"), user("B"), user("C")}},
				{VoterID: "v2", Ranking: []model.EntityRef{user("B"), user("A")}},
				{VoterID: "v3", Ranking: []model.EntityRef{user("C")}},
			})

			Convey("Then scores are additive across ballots", func() {
				byID := map[string]int64{}
				for _, a := range awards {
					byID[a.Entity.ID] = a.Points
				}
				So(byID["A"], ShouldEqual, 8+5)
				So(byID["B"], ShouldEqual, 5+8)
				So(byID["C"], ShouldEqual, 3+8)
			})
		})

		Convey("When a ballot ranks more candidates than there are weights", func() {
			awards := tab.Tabulate([]model.Ballot{
				{VoterID: "v1", Ranking: []model.EntityRef{user("A"), user("B"), user("C"), user("D"), user("E")}},
			})

			Convey("Then ranks past the table earn nothing", func() {
				So(awards, ShouldHaveLength, 3)
				for _, a := range awards {
					So(a.Entity.ID, ShouldNotEqual, "D")
					So(a.Entity.ID, ShouldNotEqual, "E")
				}
			})
		})

		Convey("When candidates tie on points", func() {
			awards := tab.Tabulate([]model.Ballot{
				{VoterID: "v1", Ranking: []model.EntityRef{user("B")}},
				{VoterID: "v2", Ranking: []model.EntityRef{user("A")}},
			})

			Convey("Then order falls back to entity id ascending", func() {
				So(awards[0].Entity.ID, ShouldEqual, "A")
				So(awards[1].Entity.ID, ShouldEqual, "B")
			})
		})

		Convey("When there are no ballots", func() {
			So(tab.Tabulate(nil), ShouldBeEmpty)
		})
	})
}

func TestWithWeights(t *testing.T) {
	Convey("Given custom weights", t, func() {
		Convey("When the table is strictly decreasing", func() {
			tab := ballot.New(ballot.WithWeights([]int64{10, 4}))
			So(tab.Weights(), ShouldResemble, []int64{10, 4})

			awards := tab.Tabulate([]model.Ballot{
				{VoterID: "v1", Ranking: []model.EntityRef{user("A"), user("B"), user("C")}},
			})
			So(awards, ShouldHaveLength, 2)
			So(awards[0].Points, ShouldEqual, 10)
		})

		Convey("When the table is not strictly decreasing", func() {
			tab := ballot.New(ballot.WithWeights([]int64{5, 5, 3}))

			Convey("Then the defaults are kept", func() {
				So(tab.Weights(), ShouldResemble, []int64{8, 5, 3})
			})
		})

		Convey("When the table contains non-positive weights", func() {
			tab := ballot.New(ballot.WithWeights([]int64{8, 0}))
			So(tab.Weights(), ShouldResemble, []int64{8, 5, 3})
		})
	})
}
