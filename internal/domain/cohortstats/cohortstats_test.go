package cohortstats_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/gradestats/internal/domain/cohortstats"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeSnapshots struct {
	byKey map[model.SelectionKey][2]*model.Snapshot
	err   error
}

func (f *fakeSnapshots) Latest(ctx context.Context, key model.SelectionKey) (*model.Snapshot, *model.Snapshot, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	p := f.byKey[key]
	return p[0], p[1], nil
}

type fakeRecords map[string]*model.SemesterRecord

func (f fakeRecords) FindOneSemesterRecord(ctx context.Context, studentID string, semester int, year string) (*model.SemesterRecord, error) {
	return f[studentID], nil
}

func snap(entries ...model.UserRank) *model.Snapshot {
	return &model.Snapshot{Students: ranking.Rank(entries)}
}

func u(id, group, branch string, avg float64) model.UserRank {
	return model.UserRank{StudentID: id, Group: group, Branch: branch, Specialization: "GL", Average: avg}
}

var specKey = model.SelectionKey{Name: "GL", Scope: model.ScopeSpecialization, Semester: 1, AcademicYear: "2025-2026"}

func TestCompute(t *testing.T) {
	current := snap(
		u("a", "G1", "B1", 17),
		u("b", "G2", "B1", 15),
		u("c", "G1", "B2", 13),
		u("d", "G2", "B2", 11),
	)
	previous := snap(
		u("a", "G1", "B1", 12),
		u("b", "G2", "B1", 16),
		u("c", "G1", "B2", 14),
		u("d", "G2", "B2", 10),
	)

	Convey("Given a group view", t, func() {
		st := cohortstats.Compute(current, previous, model.LevelGroup, "G1", "c", 10)

		Convey("Then ranks are relative to the group", func() {
			So(st, ShouldNotBeNil)
			So(st.Total, ShouldEqual, 2)
			So(st.Rank.Value, ShouldEqual, 2)
			So(st.Leaderboard[0].Rank, ShouldEqual, 1)
		})

		Convey("Then deltas compare against the same group in the previous snapshot", func() {
			// previously c (14) led a (12) in G1
			So(st.Rank.Delta, ShouldEqual, 1)
			So(st.Average.Value, ShouldEqual, 13)
			So(st.Average.Delta, ShouldEqual, -1)
			So(st.GroupAverage.Value, ShouldEqual, 15)
			So(st.GroupAverage.Delta, ShouldEqual, 2)
			So(st.GroupMax.Value, ShouldEqual, 17)
			So(st.GroupMax.Delta, ShouldEqual, 3)
		})

		Convey("Then leaderboard entries carry their own deltas", func() {
			So(st.Leaderboard, ShouldResemble, []model.LeaderboardEntry{
				{Rank: 1, RankDelta: -1, Average: 17, AverageDelta: 5},
				{Rank: 2, RankDelta: 1, Average: 13, AverageDelta: -1, Self: true},
			})
		})
	})

	Convey("Given a specialization view", t, func() {
		st := cohortstats.Compute(current, previous, model.LevelSpecialization, "GL", "b", 10)

		Convey("Then the cohort-wide ranking is used as is", func() {
			So(st.Rank.Value, ShouldEqual, 2)
			So(st.Rank.Delta, ShouldEqual, 1)
			So(st.Total, ShouldEqual, 4)
			So(st.GroupAverage.Value, ShouldEqual, 14)
			So(st.GroupAverage.Delta, ShouldEqual, 1)
		})
	})

	Convey("Given no previous snapshot", t, func() {
		st := cohortstats.Compute(current, nil, model.LevelBranch, "B2", "d", 10)

		Convey("Then every delta is zero", func() {
			So(st, ShouldNotBeNil)
			So(st.Rank.Value, ShouldEqual, 2)
			So(st.Rank.Delta, ShouldEqual, 0)
			So(st.Average.Delta, ShouldEqual, 0)
			So(st.GroupMax.Delta, ShouldEqual, 0)
			So(st.Leaderboard[0].RankDelta, ShouldEqual, 0)
		})
	})

	Convey("Given a student missing from the previous snapshot", t, func() {
		students := append([]model.UserRank{u("e", "G1", "B1", 19)}, current.Students...)
		withNewcomer := snap(students...)
		st := cohortstats.Compute(withNewcomer, previous, model.LevelGroup, "G1", "e", 10)

		Convey("Then their deltas default to zero", func() {
			So(st.Rank.Value, ShouldEqual, 1)
			So(st.Rank.Delta, ShouldEqual, 0)
			So(st.GroupAverage.Delta, ShouldEqual, 0)
		})
	})

	Convey("Given inputs that cannot produce a view", t, func() {
		So(cohortstats.Compute(nil, previous, model.LevelGroup, "G1", "a", 10), ShouldBeNil)
		So(cohortstats.Compute(current, previous, model.LevelGroup, "G9", "a", 10), ShouldBeNil)
		So(cohortstats.Compute(current, previous, model.LevelGroup, "G2", "a", 10), ShouldBeNil)
		So(cohortstats.Compute(current, previous, model.LevelBranch, "", "a", 10), ShouldBeNil)
	})

	Convey("Given a leaderboard cap", t, func() {
		st := cohortstats.Compute(current, previous, model.LevelCurriculum, "ING", "d", 2)

		Convey("Then only the top entries are returned", func() {
			So(len(st.Leaderboard), ShouldEqual, 2)
			So(st.Rank.Value, ShouldEqual, 4)
		})
	})
}

func TestService(t *testing.T) {
	Convey("Given a snapshot reader", t, func() {
		reader := &fakeSnapshots{byKey: map[model.SelectionKey][2]*model.Snapshot{
			specKey: {snap(u("a", "G1", "", 12), u("b", "G1", "", 14)), nil},
		}}
		svc := cohortstats.NewService(reader, 0)

		Convey("When asking for a group view", func() {
			st, err := svc.GroupStats(context.Background(), specKey, model.LevelGroup, "G1", "a")
			So(err, ShouldBeNil)
			So(st.Rank.Value, ShouldEqual, 2)
		})

		Convey("When the cohort never had a snapshot", func() {
			other := specKey
			other.Name = "SI"
			st, err := svc.GroupStats(context.Background(), other, model.LevelGroup, "G1", "a")
			So(err, ShouldBeNil)
			So(st, ShouldBeNil)
		})

		Convey("When the reader fails", func() {
			reader.err = errors.New("down")
			_, err := svc.GroupStats(context.Background(), specKey, model.LevelGroup, "G1", "a")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFacade(t *testing.T) {
	currKey := model.SelectionKey{Name: "ING", Scope: model.ScopeCurriculum, Semester: 1, AcademicYear: "2025-2026"}
	reader := &fakeSnapshots{byKey: map[model.SelectionKey][2]*model.Snapshot{
		specKey: {snap(u("a", "G1", "B1", 12), u("b", "G2", "", 14)), nil},
		currKey: {snap(u("a", "G1", "B1", 12), u("b", "G2", "", 14), u("z", "X", "", 18)), nil},
	}}
	records := fakeRecords{
		"a": {StudentID: "a", Curriculum: "ING", Specialization: "GL", Group: "G1", Branch: "B1", Semester: 1, AcademicYear: "2025-2026"},
		"b": {StudentID: "b", Curriculum: "ING", Specialization: "GL", Group: "G2", Semester: 1, AcademicYear: "2025-2026"},
	}
	f := cohortstats.NewFacade(records, reader, 10)

	Convey("Given a student with a branch", t, func() {
		st, err := f.UserStatistics(context.Background(), "a", 1, "2025-2026")

		Convey("Then all four levels are filled", func() {
			So(err, ShouldBeNil)
			So(st.Branch, ShouldNotBeNil)
			So(st.Branch.Rank.Value, ShouldEqual, 1)
			So(st.Group.Total, ShouldEqual, 1)
			So(st.Specialization.Rank.Value, ShouldEqual, 2)
			So(st.Curriculum.Rank.Value, ShouldEqual, 3)
		})
	})

	Convey("Given a student without a branch", t, func() {
		st, err := f.UserStatistics(context.Background(), "b", 1, "2025-2026")

		Convey("Then the branch level is omitted", func() {
			So(err, ShouldBeNil)
			So(st.Branch, ShouldBeNil)
			So(st.Group, ShouldNotBeNil)
			So(st.Curriculum.Total, ShouldEqual, 3)
		})
	})

	Convey("Given a student without a record", t, func() {
		st, err := f.UserStatistics(context.Background(), "nobody", 1, "2025-2026")
		So(err, ShouldBeNil)
		So(st, ShouldBeNil)
	})
}
