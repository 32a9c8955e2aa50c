// Package review implements the scoring workflow: jurors grade every rubric criterion of a
// project exactly once, and listings derive the project scores from those grades.
package review

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/project"
)

// Detail is the score one juror gave a project on one criterion.
type Detail struct {
	ID                int         `db:"id" json:"id"`
	ProjectID         int         `db:"project_id" json:"FK_project"`
	CriterionID       int         `db:"criterion_id" json:"FK_criteria"`
	JurorAssignmentID int         `db:"juror_assignment_id" json:"FK_juror"`
	Score             float64     `db:"score" json:"score"`
	Comments          null.String `db:"comments" json:"comments"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`

	CriterionName string  `db:"criterion_name" json:"criteria"`
	MaxScore      float64 `db:"max_score" json:"maxScore"`
}

type Rating struct {
	CriterionID int      `json:"FK_criteria" validate:"required,gt=0"`
	Score       *float64 `json:"score"`
	Comments    string   `json:"comments"`
}

// Submission is the body of a scoring request.
type Submission struct {
	Ratings []Rating `json:"ratings" validate:"dive"`
}

func (s *Submission) Validate(validate *validator.Validate) error {
	for i := range s.Ratings {
		s.Ratings[i].Comments = core.CleanString(s.Ratings[i].Comments)
	}
	return validate.Struct(s)
}

// MissingCriteriaError lists the rubric criteria a submission left unscored.
type MissingCriteriaError struct {
	IDs []int
}

func (err MissingCriteriaError) Error() string {
	ids := make([]string, 0, len(err.IDs))
	for _, id := range err.IDs {
		ids = append(ids, strconv.Itoa(id))
	}
	return fmt.Sprintf("debes calificar todos los criterios, faltan: %s", strings.Join(ids, ", "))
}

// Scores is the read-side aggregate of a project's review details.
type Scores struct {
	TotalScore       float64 `json:"totalScore"`
	MaxPossibleScore float64 `json:"maxPossibleScore"`
	AverageScore     float64 `json:"averageScore"`
	JurorCount       int     `json:"jurorCount"`
	ReviewCount      int     `json:"reviewCount"`
	IsQualified      bool    `json:"isQualified"`
}

// Summarize aggregates the details of one project. The max possible score is the sum of the
// rubric max scores, counted once per criterion whatever the number of jurors; the average
// is the total divided by the number of jurors who scored.
func Summarize(details []Detail, criteria []call.Criterion) Scores {
	var s Scores
	jurors := make(map[int]bool)
	for _, d := range details {
		s.TotalScore += d.Score
		jurors[d.JurorAssignmentID] = true
	}
	for _, cr := range criteria {
		s.MaxPossibleScore += cr.MaxScore
	}
	s.ReviewCount = len(details)
	s.JurorCount = len(jurors)
	s.IsQualified = s.ReviewCount > 0
	if s.JurorCount > 0 {
		s.AverageScore = s.TotalScore / float64(s.JurorCount)
	}
	return s
}

// ScoredProject is a listing row: the project and its scores, without the review details.
type ScoredProject struct {
	project.Project
	Scores
}

// ProjectDetail is a project with its members, the rubric of its call, review details and scores.
type ProjectDetail struct {
	project.Detail
	Criteria      []call.Criterion `json:"criteria"`
	ReviewDetails []Detail         `json:"reviewDetails"`
	Scores
}

func missingCriteria(criteria []call.Criterion, ratings []Rating) []int {
	submitted := make(map[int]bool, len(ratings))
	for _, r := range ratings {
		submitted[r.CriterionID] = true
	}
	missing := make([]int, 0)
	for _, cr := range criteria {
		if !submitted[cr.ID] {
			missing = append(missing, cr.ID)
		}
	}
	sort.Ints(missing)
	return missing
}
