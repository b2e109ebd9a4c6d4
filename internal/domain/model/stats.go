package model

// Level is a grouping level, from narrowest to broadest.
type Level string

// Grouping levels.
const (
	LevelBranch         Level = "branch"
	LevelGroup          Level = "group"
	LevelSpecialization Level = "specialization"
	LevelCurriculum     Level = "curriculum"
)

// Metric pairs a current value with its change against the previous snapshot.
type Metric struct {
	Value float64 `json:"value"`
	Delta float64 `json:"delta"`
}

// RankMetric pairs a current rank with its change; a negative delta is an improvement.
type RankMetric struct {
	Value int `json:"value"`
	Delta int `json:"delta"`
}

// LeaderboardEntry is one line of a level leaderboard.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	RankDelta    int     `json:"rank_delta"`
	Average      float64 `json:"average"`
	AverageDelta float64 `json:"average_delta"`
	Self         bool    `json:"self,omitempty"`
}

// UserGroupStats is a student's standing within one grouping level.
type UserGroupStats struct {
	Level        Level              `json:"level"`
	Label        string             `json:"label"`
	Average      Metric             `json:"average"`
	GroupAverage Metric             `json:"group_average"`
	GroupMax     Metric             `json:"group_max"`
	Rank         RankMetric         `json:"rank"`
	Total        int                `json:"total"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
}

// UserStatistics composes every level for one student and semester.
type UserStatistics struct {
	StudentID      string          `json:"student_id"`
	Semester       int             `json:"semester"`
	AcademicYear   string          `json:"academic_year"`
	Branch         *UserGroupStats `json:"branch,omitempty"`
	Group          *UserGroupStats `json:"group"`
	Specialization *UserGroupStats `json:"specialization"`
	Curriculum     *UserGroupStats `json:"curriculum"`
}
