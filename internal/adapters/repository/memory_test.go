package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/snapshot"
	. "github.com/smartystreets/goconvey/convey"
)

func record(id, spec, group string) *model.SemesterRecord {
	score := 12.0
	return &model.SemesterRecord{
		StudentID:      id,
		Curriculum:     "ING",
		Specialization: spec,
		Group:          group,
		Semester:       1,
		AcademicYear:   "2025-2026",
		Units: []model.TeachingUnit{{Code: "UE1", Modules: []model.Module{{
			Code: "M1", Entries: []model.GradeEntry{{ID: "e1", Coefficient: 1, MaxScore: 20, Score: &score}},
		}}}},
	}
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("snap-%d", n)
	}
}

func TestSemesterStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory store with records", t, func() {
		s := repository.NewMemoryStore()
		So(s.SaveSemesterRecord(ctx, record("s1", "GL", "G1")), ShouldBeNil)
		So(s.SaveSemesterRecord(ctx, record("s2", "SI", "G2")), ShouldBeNil)
		So(s.SaveSemesterRecord(ctx, record("s3", "GL", "G2")), ShouldBeNil)

		Convey("When finding one record", func() {
			rec, err := s.FindOneSemesterRecord(ctx, "s1", 1, "2025-2026")

			Convey("Then it has an id and is a private copy", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldNotBeEmpty)
				*rec.Units[0].Modules[0].Entries[0].Score = 0
				again, _ := s.FindOneSemesterRecord(ctx, "s1", 1, "2025-2026")
				So(*again.Units[0].Modules[0].Entries[0].Score, ShouldEqual, 12)
			})
		})

		Convey("When the record does not exist", func() {
			rec, err := s.FindOneSemesterRecord(ctx, "s1", 2, "2025-2026")
			So(err, ShouldBeNil)
			So(rec, ShouldBeNil)
		})

		Convey("When selecting by specialization", func() {
			recs, err := s.FindSemesterRecords(ctx, model.SelectionKey{Name: "GL", Scope: model.ScopeSpecialization, Semester: 1, AcademicYear: "2025-2026"})

			Convey("Then records come back in insertion order", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
				So(recs[0].StudentID, ShouldEqual, "s1")
				So(recs[1].StudentID, ShouldEqual, "s3")
			})
		})

		Convey("When selecting by curriculum", func() {
			recs, err := s.FindSemesterRecords(ctx, model.SelectionKey{Name: "ING", Scope: model.ScopeCurriculum, Semester: 1, AcademicYear: "2025-2026"})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 3)
		})

		Convey("When a record is saved again", func() {
			rec, _ := s.FindOneSemesterRecord(ctx, "s1", 1, "2025-2026")
			id := rec.ID
			rec.Locked = true
			So(s.SaveSemesterRecord(ctx, rec), ShouldBeNil)

			Convey("Then it replaces the old one in place", func() {
				again, _ := s.FindOneSemesterRecord(ctx, "s1", 1, "2025-2026")
				So(again.ID, ShouldEqual, id)
				So(again.Locked, ShouldBeTrue)
				recs, _ := s.FindSemesterRecords(ctx, model.SelectionKey{Name: "GL", Scope: model.ScopeSpecialization, Semester: 1, AcademicYear: "2025-2026"})
				So(recs[0].StudentID, ShouldEqual, "s1")
			})
		})

		Convey("When the input is invalid", func() {
			So(errors.Is(s.SaveSemesterRecord(ctx, &model.SemesterRecord{}), repository.ErrInvalidRecord), ShouldBeTrue)
			_, err := s.FindSemesterRecords(ctx, model.SelectionKey{})
			So(errors.Is(err, repository.ErrInvalidKey), ShouldBeTrue)
		})
	})
}

func TestUpdateSemesterRecord(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory store with one record", t, func() {
		s := repository.NewMemoryStore()
		So(s.SaveSemesterRecord(ctx, record("s1", "GL", "G1")), ShouldBeNil)

		Convey("When the update succeeds", func() {
			rec, err := s.UpdateSemesterRecord(ctx, "s1", 1, "2025-2026", func(r *model.SemesterRecord) error {
				r.Locked = true
				return nil
			})

			Convey("Then the change is stored", func() {
				So(err, ShouldBeNil)
				So(rec.Locked, ShouldBeTrue)
				again, _ := s.FindOneSemesterRecord(ctx, "s1", 1, "2025-2026")
				So(again.Locked, ShouldBeTrue)
			})
		})

		Convey("When the update fails", func() {
			boom := errors.New("boom")
			_, err := s.UpdateSemesterRecord(ctx, "s1", 1, "2025-2026", func(r *model.SemesterRecord) error {
				*r.Units[0].Modules[0].Entries[0].Score = 0
				return boom
			})

			Convey("Then nothing is written", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				again, _ := s.FindOneSemesterRecord(ctx, "s1", 1, "2025-2026")
				So(*again.Units[0].Modules[0].Entries[0].Score, ShouldEqual, 12)
			})
		})

		Convey("When the record does not exist", func() {
			_, err := s.UpdateSemesterRecord(ctx, "nobody", 1, "2025-2026", func(*model.SemesterRecord) error { return nil })
			So(errors.Is(err, repository.ErrRecordNotFound), ShouldBeTrue)
		})

		Convey("When many updates race on the same record", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = s.UpdateSemesterRecord(ctx, "s1", 1, "2025-2026", func(r *model.SemesterRecord) error {
						score := *r.Units[0].Modules[0].Entries[0].Score + 1
						time.Sleep(time.Millisecond)
						r.Units[0].Modules[0].Entries[0].Score = &score
						return nil
					})
				}()
			}
			wg.Wait()

			Convey("Then no update is lost", func() {
				again, _ := s.FindOneSemesterRecord(ctx, "s1", 1, "2025-2026")
				So(*again.Units[0].Modules[0].Entries[0].Score, ShouldEqual, 62)
			})
		})
	})
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()
	key := model.SelectionKey{Name: "GL", Scope: model.ScopeSpecialization, Semester: 1, AcademicYear: "2025-2026"}
	snap := func(avg float64) model.Snapshot {
		return model.Snapshot{Name: key.Name, Scope: key.Scope, Semester: key.Semester, AcademicYear: key.AcademicYear,
			Summary: model.Summary{Average: avg, Count: 1}}
	}
	day1 := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	Convey("Given an empty snapshot store", t, func() {
		s := repository.NewMemoryStore(repository.WithIDGenerator(sequentialIDs()))

		Convey("Then Latest returns nothing", func() {
			cur, prev, err := s.Latest(ctx, key)
			So(err, ShouldBeNil)
			So(cur, ShouldBeNil)
			So(prev, ShouldBeNil)
		})

		Convey("When two rebuilds happen on the same day", func() {
			a1, first, err := s.Upsert(ctx, snap(12), day1)
			So(err, ShouldBeNil)
			a2, second, err := s.Upsert(ctx, snap(14), day1.Add(5*time.Hour))
			So(err, ShouldBeNil)

			Convey("Then the second updates the first", func() {
				So(a1, ShouldEqual, snapshot.ActionInsert)
				So(a2, ShouldEqual, snapshot.ActionUpdate)
				So(second.ID, ShouldEqual, first.ID)
				So(second.CreatedAt, ShouldEqual, day1)
				So(len(s.History(ctx, key)), ShouldEqual, 1)

				cur, prev, _ := s.Latest(ctx, key)
				So(cur.Average, ShouldEqual, 14)
				So(prev, ShouldBeNil)
			})
		})

		Convey("When rebuilds span three days", func() {
			s.Upsert(ctx, snap(10), day1)
			s.Upsert(ctx, snap(11), day1.AddDate(0, 0, 1))
			action, third, _ := s.Upsert(ctx, snap(12), day1.AddDate(0, 0, 2))

			Convey("Then each day gets its own record and Latest chains the last two", func() {
				So(action, ShouldEqual, snapshot.ActionInsert)
				So(third.ID, ShouldEqual, "snap-3")
				cur, prev, _ := s.Latest(ctx, key)
				So(cur.Average, ShouldEqual, 12)
				So(prev.Average, ShouldEqual, 11)
			})
		})

		Convey("When concurrent rebuilds race on one day", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					s.Upsert(ctx, snap(float64(i)), day1)
				}(i)
			}
			wg.Wait()

			Convey("Then a single record exists for the day", func() {
				So(len(s.History(ctx, key)), ShouldEqual, 1)
			})
		})

		Convey("When the key is invalid", func() {
			_, _, err := s.Upsert(ctx, model.Snapshot{}, day1)
			So(errors.Is(err, repository.ErrInvalidKey), ShouldBeTrue)
		})
	})

	Convey("Given a store in a non-UTC zone", t, func() {
		loc := time.FixedZone("UTC+3", 3*3600)
		s := repository.NewMemoryStore(repository.WithLocation(loc), repository.WithIDGenerator(sequentialIDs()))

		Convey("When rebuilds fall on the same UTC day but different local days", func() {
			s.Upsert(ctx, snap(10), time.Date(2025, 11, 3, 20, 0, 0, 0, time.UTC))
			action, _, _ := s.Upsert(ctx, snap(11), time.Date(2025, 11, 3, 22, 0, 0, 0, time.UTC))

			Convey("Then the local calendar decides", func() {
				So(action, ShouldEqual, snapshot.ActionInsert)
				So(len(s.History(ctx, key)), ShouldEqual, 2)
			})
		})
	})
}
