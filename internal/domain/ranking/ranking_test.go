package ranking_test

import (
	"testing"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSummarize(t *testing.T) {
	Convey("Given a cohort of five averages", t, func() {
		s, ok := ranking.Summarize([]float64{18, 10, 14, 12, 16})

		Convey("Then the summary matches the textbook definitions", func() {
			So(ok, ShouldBeTrue)
			So(s.Median, ShouldEqual, 14)
			So(s.Average, ShouldEqual, 14)
			So(s.Min, ShouldEqual, 10)
			So(s.Max, ShouldEqual, 18)
			So(s.Count, ShouldEqual, 5)
		})
	})

	Convey("Given an even count", t, func() {
		s, _ := ranking.Summarize([]float64{10, 12, 15, 11})

		Convey("Then the median averages the two middle values", func() {
			So(s.Median, ShouldEqual, 11.5)
		})
	})

	Convey("Given nothing", t, func() {
		_, ok := ranking.Summarize(nil)
		So(ok, ShouldBeFalse)
	})
}

func TestRank(t *testing.T) {
	Convey("Given two students with the same average", t, func() {
		in := []model.UserRank{
			{StudentID: "first", Average: 14},
			{StudentID: "second", Average: 14},
		}
		out := ranking.Rank(in)

		Convey("Then they get distinct ranks in fetch order", func() {
			So(out[0].StudentID, ShouldEqual, "first")
			So(out[0].Rank, ShouldEqual, 1)
			So(out[1].StudentID, ShouldEqual, "second")
			So(out[1].Rank, ShouldEqual, 2)
		})

		Convey("And the input is not mutated", func() {
			So(in[0].Rank, ShouldEqual, 0)
		})
	})

	Convey("Given a mixed cohort", t, func() {
		out := ranking.Rank([]model.UserRank{
			{StudentID: "a", Average: 9},
			{StudentID: "b", Average: 17.5},
			{StudentID: "c", Average: 12},
			{StudentID: "d", Average: 12},
		})

		Convey("Then a higher average always means a better rank", func() {
			for i := range out {
				for j := range out {
					if out[i].Average > out[j].Average {
						So(out[i].Rank, ShouldBeLessThan, out[j].Rank)
					}
				}
			}
			So(out[0].StudentID, ShouldEqual, "b")
			So(out[3].StudentID, ShouldEqual, "a")
		})
	})
}

func TestFilterAndRerank(t *testing.T) {
	Convey("Given a ranked cohort spanning two groups", t, func() {
		cohort := ranking.Rank([]model.UserRank{
			{StudentID: "a", Group: "G1", Average: 18},
			{StudentID: "b", Group: "G2", Average: 16},
			{StudentID: "c", Group: "G2", Average: 12},
			{StudentID: "d", Group: "G1", Average: 10},
		})

		Convey("When re-ranking one group", func() {
			g2 := ranking.Rank(ranking.Filter(cohort, ranking.LabelFor(model.LevelGroup), "G2"))

			Convey("Then ranks restart at one for that subset", func() {
				So(len(g2), ShouldEqual, 2)
				So(g2[0].StudentID, ShouldEqual, "b")
				So(g2[0].Rank, ShouldEqual, 1)
				So(g2[1].Rank, ShouldEqual, 2)
			})
		})

		Convey("When aggregating groups", func() {
			groups := ranking.Groups(cohort, ranking.LabelFor(model.LevelGroup))

			Convey("Then each label gets its own ranked aggregate", func() {
				So(groups, ShouldResemble, []model.GroupRank{
					{Label: "G1", Average: 14, Size: 2, Rank: 1},
					{Label: "G2", Average: 14, Size: 2, Rank: 2},
				})
			})
		})

		Convey("Then mean and max are taken over the entries", func() {
			mean, max, ok := ranking.Mean(cohort)
			So(ok, ShouldBeTrue)
			So(mean, ShouldEqual, 14)
			So(max, ShouldEqual, 18)

			_, ok = ranking.Find(cohort, "zz")
			So(ok, ShouldBeFalse)
		})
	})
}
