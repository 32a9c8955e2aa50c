package call

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/celsofranciscano/innotech/core"
)

// DefaultMaxScore is used when a criterion is created without a max score.
const DefaultMaxScore = 10.0

// Call is a call for proposals.
type Call struct {
	ID                  int            `db:"id" json:"id"`
	OwnerID             int            `db:"owner_id" json:"FK_user"`
	Title               string         `db:"title" json:"title"`
	Description         string         `db:"description" json:"description"`
	SubmissionOpen      time.Time      `db:"submission_open" json:"submissionOpen"`
	SubmissionClose     time.Time      `db:"submission_close" json:"submissionClose"`
	IsActive            bool           `db:"is_active" json:"isActive"`
	IsIndividual        bool           `db:"is_individual" json:"isIndividual"`
	AllowedProjectTypes pq.StringArray `db:"allowed_project_types" json:"allowedProjectTypes"`
	AllowedCategories   pq.StringArray `db:"allowed_categories" json:"allowedCategories"`
	MinTeamMembers      null.Int       `db:"min_team_members" json:"minTeamMembers"`
	MaxTeamMembers      null.Int       `db:"max_team_members" json:"maxTeamMembers"`
	MinExperienceLevel  null.String    `db:"min_experience_level" json:"minExperienceLevel"`
	MinTechRequirements pq.StringArray `db:"min_tech_requirements" json:"minTechRequirements"`
	Prizes              pq.StringArray `db:"prizes" json:"prizes"`
	Subject             null.String    `db:"subject" json:"materia"`
	Semester            null.String    `db:"semester" json:"semestre"`
	ResultsAnnouncement null.Time      `db:"results_announcement" json:"resultsAnnouncement"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updatedAt"`
}

// TeamSizeAllows reports whether a team of n members (leader included) fits the call limits.
func (c Call) TeamSizeAllows(n int) bool {
	if c.MinTeamMembers.Valid && n < c.MinTeamMembers.Int {
		return false
	}
	if c.MaxTeamMembers.Valid && n > c.MaxTeamMembers.Int {
		return false
	}
	return true
}

// Criterion is one rubric line of a call.
type Criterion struct {
	ID          int       `db:"id" json:"id"`
	CallID      int       `db:"call_id" json:"FK_call"`
	Name        string    `db:"name" json:"criteria"`
	Description string    `db:"description" json:"description"`
	MaxScore    float64   `db:"max_score" json:"maxScore"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// JurorAssignment grants a user the right to score the projects of a call.
type JurorAssignment struct {
	ID         int       `db:"id" json:"id"`
	CallID     int       `db:"call_id" json:"FK_call"`
	UserID     int       `db:"user_id" json:"FK_user"`
	Notes      string    `db:"notes" json:"notes"`
	AssignedAt time.Time `db:"assigned_at" json:"assignedAt"`

	// juror info
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
	Email     string `db:"email" json:"email"`
}

// NewCall contains information needed to create a new Call.
type NewCall struct {
	Title               string     `json:"title" validate:"required,notblank"`
	Description         string     `json:"description"`
	SubmissionOpen      *time.Time `json:"submissionOpen" validate:"required"`
	SubmissionClose     *time.Time `json:"submissionClose" validate:"required"`
	IsActive            *bool      `json:"isActive"`
	IsIndividual        bool       `json:"isIndividual"`
	AllowedProjectTypes []string   `json:"allowedProjectTypes"`
	AllowedCategories   []string   `json:"allowedCategories"`
	MinTeamMembers      *int       `json:"minTeamMembers" validate:"omitempty,gte=1"`
	MaxTeamMembers      *int       `json:"maxTeamMembers" validate:"omitempty,gte=1"`
	MinExperienceLevel  string     `json:"minExperienceLevel"`
	MinTechRequirements []string   `json:"minTechRequirements"`
	Prizes              []string   `json:"prizes"`
	Subject             string     `json:"materia"`
	Semester            string     `json:"semestre"`
	ResultsAnnouncement *time.Time `json:"resultsAnnouncement"`
}

func (nc *NewCall) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.AllowedProjectTypes = core.CleanStrings(nc.AllowedProjectTypes)
	nc.AllowedCategories = core.CleanStrings(nc.AllowedCategories)
	nc.MinTechRequirements = core.CleanStrings(nc.MinTechRequirements)
	nc.MinExperienceLevel = core.CleanString(nc.MinExperienceLevel)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Semester = core.CleanString(nc.Semester)

	// prizes are ranked: keep order and duplicates
	prizes := make([]string, 0, len(nc.Prizes))
	for _, p := range nc.Prizes {
		if p = core.CleanString(p); p != "" {
			prizes = append(prizes, p)
		}
	}
	nc.Prizes = prizes
	return validate.Struct(nc)
}

type NewCriterion struct {
	Name        string   `json:"criteria" validate:"required,notblank"`
	Description string   `json:"description"`
	MaxScore    *float64 `json:"maxScore" validate:"omitempty,gt=0"`
}

func (nc *NewCriterion) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type NewJurorAssignment struct {
	UserID int    `json:"FK_user" validate:"required,gt=0"`
	Notes  string `json:"notes"`
}

func (nj *NewJurorAssignment) Validate(validate *validator.Validate) error {
	nj.Notes = core.CleanString(nj.Notes)
	return validate.Struct(nj)
}

// QueryFilter scopes a calls listing. Zero values mean "no restriction".
type QueryFilter struct {
	OwnerID    int
	JurorID    int
	ActiveOnly bool
}
