package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/gradestats/internal/adapters/http/api"
	service "github.com/okian/gradestats/internal/app"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	lastUpdate service.GradeUpdate
	lastKey    model.SelectionKey
	lastLevel  model.Level
	lastLabel  string
	updateErr  error
	record     *model.SemesterRecord
	stats      *model.UserStatistics
	group      *model.UserGroupStats
	snapshot   *model.Snapshot
	err        error
}

func (m *mockDependencies) UpdateGrade(ctx context.Context, u service.GradeUpdate) (*model.SemesterRecord, error) {
	m.lastUpdate = u
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &model.SemesterRecord{StudentID: u.StudentID, Average: model.Value(13.5)}, nil
}

func (m *mockDependencies) ImportRecord(ctx context.Context, rec *model.SemesterRecord) (*model.SemesterRecord, error) {
	if rec.StudentID == "" {
		return nil, service.ErrInvalidRecord
	}
	rec.ID = "rec-1"
	return rec, nil
}

func (m *mockDependencies) SemesterRecord(ctx context.Context, studentID string, semester int, academicYear string) (*model.SemesterRecord, error) {
	return m.record, m.err
}

func (m *mockDependencies) UserStatistics(ctx context.Context, studentID string, semester int, academicYear string) (*model.UserStatistics, error) {
	return m.stats, m.err
}

func (m *mockDependencies) GroupStats(ctx context.Context, key model.SelectionKey, level model.Level, label, studentID string) (*model.UserGroupStats, error) {
	m.lastKey, m.lastLevel, m.lastLabel = key, level, label
	return m.group, m.err
}

func (m *mockDependencies) RebuildSnapshot(ctx context.Context, key model.SelectionKey) (*model.Snapshot, error) {
	m.lastKey = key
	return m.snapshot, m.err
}

func (m *mockDependencies) LatestSnapshot(ctx context.Context, key model.SelectionKey) (*model.Snapshot, error) {
	m.lastKey = key
	return m.snapshot, m.err
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}).Register(mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Health, stats and metrics answer", func() {
			So(do(mux, "GET", "/healthz", "").Code, ShouldEqual, http.StatusOK)
			w := do(mux, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
			So(do(mux, "GET", "/metrics", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Unknown routes are 404 and wrong methods 405", func() {
			So(do(mux, "GET", "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, "GET", "/grades", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestGradesHandler(t *testing.T) {
	Convey("Given the grades endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When a valid update is sent", func() {
			w := do(mux, "PUT", "/grades", `{"student_id":"s1","semester":1,"academic_year":"2025-2026","entry_id":"exam","score":14.5}`)

			Convey("Then the service receives it and the record is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastUpdate.EntryID, ShouldEqual, "exam")
				So(*deps.lastUpdate.Score, ShouldEqual, 14.5)
				So(w.Body.String(), ShouldContainSubstring, `"average":13.5`)
			})
		})

		Convey("When the score is null", func() {
			w := do(mux, "PUT", "/grades", `{"student_id":"s1","semester":1,"academic_year":"2025-2026","entry_id":"exam","score":null}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastUpdate.Score, ShouldBeNil)
		})

		Convey("When the body is invalid", func() {
			So(do(mux, "PUT", "/grades", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "PUT", "/grades", `{"student_id":"s1"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "PUT", "/grades", `{"student_id":"s1","semester":1,"academic_year":"y","entry_id":"e","score":-2}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "PUT", "/grades", `{"student_id":"s1","semester":1,"academic_year":"y","entry_id":"e","extra":1}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service rejects the update", func() {
			cases := []struct {
				err  error
				code int
			}{
				{service.ErrRecordNotFound, http.StatusNotFound},
				{service.ErrEntryNotFound, http.StatusNotFound},
				{service.ErrRecordLocked, http.StatusConflict},
				{fmt.Errorf("%w: 25", service.ErrScoreOutOfRange), http.StatusBadRequest},
				{errors.New("boom"), http.StatusInternalServerError},
			}
			for _, c := range cases {
				deps.updateErr = c.err
				w := do(mux, "PUT", "/grades", `{"student_id":"s1","semester":1,"academic_year":"y","entry_id":"e","score":1}`)
				So(w.Code, ShouldEqual, c.code)
			}
		})
	})
}

func TestRecordsHandler(t *testing.T) {
	Convey("Given the records endpoints", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("A record can be imported", func() {
			w := do(mux, "POST", "/records", `{"student_id":"s1","curriculum":"ING","specialization":"GL","semester":1,"academic_year":"y","units":[]}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"id":"rec-1"`)
		})

		Convey("An incomplete record is rejected", func() {
			So(do(mux, "POST", "/records", `{"semester":1}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A missing record is 404", func() {
			So(do(mux, "GET", "/records/s1?semester=1&year=2025-2026", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A present record is returned", func() {
			deps.record = &model.SemesterRecord{StudentID: "s1"}
			So(do(mux, "GET", "/records/s1?semester=1&year=2025-2026", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("A bad semester is 400", func() {
			So(do(mux, "GET", "/records/s1?semester=first&year=2025-2026", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "GET", "/records/s1?semester=1", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatisticsHandler(t *testing.T) {
	Convey("Given the statistics endpoints", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("No statistics is 404", func() {
			So(do(mux, "GET", "/statistics/s1?semester=1&year=2025-2026", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Statistics omit an empty branch", func() {
			deps.stats = &model.UserStatistics{StudentID: "s1", Group: &model.UserGroupStats{Level: model.LevelGroup, Total: 3}}
			w := do(mux, "GET", "/statistics/s1?semester=1&year=2025-2026", "")
			So(w.Code, ShouldEqual, http.StatusOK)

			var body map[string]json.RawMessage
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			_, hasBranch := body["branch"]
			So(hasBranch, ShouldBeFalse)
			So(string(body["curriculum"]), ShouldEqual, "null")
		})

		Convey("A level view forwards the selection", func() {
			deps.group = &model.UserGroupStats{Level: model.LevelGroup}
			w := do(mux, "GET", "/statistics/s1/group?name=GL&scope=specialization&semester=1&year=2025-2026&label=G1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastKey.Name, ShouldEqual, "GL")
			So(deps.lastLevel, ShouldEqual, model.LevelGroup)
			So(deps.lastLabel, ShouldEqual, "G1")
		})

		Convey("An unknown level or scope is 400", func() {
			So(do(mux, "GET", "/statistics/s1/planet?name=GL&scope=specialization&semester=1&year=y", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "GET", "/statistics/s1/group?name=GL&scope=branch&semester=1&year=y", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestSnapshotsHandler(t *testing.T) {
	Convey("Given the snapshot endpoints", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		body := `{"name":"GL","scope":"specialization","semester":1,"academic_year":"2025-2026"}`

		Convey("A rebuild without data is 204", func() {
			w := do(mux, "POST", "/snapshots/rebuild", body)
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(deps.lastKey.Scope, ShouldEqual, model.ScopeSpecialization)
		})

		Convey("A rebuild with data returns the snapshot", func() {
			deps.snapshot = &model.Snapshot{ID: "snap-1", Name: "GL"}
			w := do(mux, "POST", "/snapshots/rebuild", body)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"id":"snap-1"`)
		})

		Convey("A rebuild with an invalid scope is 400", func() {
			w := do(mux, "POST", "/snapshots/rebuild", `{"name":"GL","scope":"group","semester":1,"academic_year":"y"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("The latest snapshot is 404 until one exists", func() {
			So(do(mux, "GET", "/snapshots?name=GL&scope=curriculum&semester=1&year=y", "").Code, ShouldEqual, http.StatusNotFound)
			deps.snapshot = &model.Snapshot{ID: "snap-2"}
			So(do(mux, "GET", "/snapshots?name=GL&scope=curriculum&semester=1&year=y", "").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestEndToEnd(t *testing.T) {
	_ = logger.Init()

	Convey("Given the API over a real service", t, func() {
		svc := service.New()
		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(mux)

		record := `{"student_id":"s1","curriculum":"ING","specialization":"GL","group":"G1","semester":1,"academic_year":"2025-2026",
			"units":[{"code":"UE1","name":"Programming","credits":6,"coefficient":1,
			"modules":[{"code":"M1","name":"Go","coefficient":1,
			"entries":[{"id":"exam","kind":"exam","coefficient":1,"max_score":20,"score":null}]}]}]}`
		So(do(mux, "POST", "/records", record).Code, ShouldEqual, http.StatusCreated)

		Convey("When a grade is set and the slice rebuilt", func() {
			w := do(mux, "PUT", "/grades", `{"student_id":"s1","semester":1,"academic_year":"2025-2026","entry_id":"exam","score":15}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(do(mux, "POST", "/snapshots/rebuild", `{"name":"GL","scope":"specialization","semester":1,"academic_year":"2025-2026"}`).Code, ShouldEqual, http.StatusOK)

			Convey("Then statistics are served", func() {
				w := do(mux, "GET", "/statistics/s1?semester=1&year=2025-2026", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var st model.UserStatistics
				So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
				So(st.Specialization.Rank.Value, ShouldEqual, 1)
				So(st.Specialization.Average.Value, ShouldEqual, 15)
			})
		})

		Convey("When an imported record breaks the grade invariants", func() {
			overMax := strings.Replace(record, `"score":null`, `"score":60`, 1)
			So(do(mux, "POST", "/records", overMax).Code, ShouldEqual, http.StatusBadRequest)

			badCoefficient := strings.Replace(record, `"entries":[{"id":"exam","kind":"exam","coefficient":1`, `"entries":[{"id":"exam","kind":"exam","coefficient":-5`, 1)
			So(do(mux, "POST", "/records", badCoefficient).Code, ShouldEqual, http.StatusBadRequest)

			Convey("Then the stored record is unchanged", func() {
				w := do(mux, "GET", "/records/s1?semester=1&year=2025-2026", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var rec model.SemesterRecord
				So(json.Unmarshal(w.Body.Bytes(), &rec), ShouldBeNil)
				So(rec.Units[0].Modules[0].Entries[0].Score, ShouldBeNil)
			})
		})

		Convey("When the slice has no grades yet", func() {
			w := do(mux, "POST", "/snapshots/rebuild", `{"name":"GL","scope":"specialization","semester":1,"academic_year":"2025-2026"}`)
			So(w.Code, ShouldEqual, http.StatusNoContent)
		})
	})
}
