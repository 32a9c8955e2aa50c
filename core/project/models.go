package project

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/celsofranciscano/innotech/core"
)

// Member roles
const (
	RoleLeader = "Líder"
	RoleMember = "Integrante"
)

type Project struct {
	ID           int            `db:"id" json:"id"`
	CallID       int            `db:"call_id" json:"FK_call"`
	OwnerID      int            `db:"owner_id" json:"FK_user"`
	TypeID       int            `db:"type_id" json:"FK_type"`
	CategoryID   int            `db:"category_id" json:"FK_category"`
	StatusID     int            `db:"status_id" json:"FK_status"`
	Title        string         `db:"title" json:"title"`
	Summary      string         `db:"summary" json:"shortSummary"`
	Problem      string         `db:"problem" json:"problem"`
	Solution     string         `db:"solution" json:"solution"`
	CoverImage   null.String    `db:"cover_image" json:"coverImage"`
	RepoURL      null.String    `db:"repo_url" json:"repositoryUrl"`
	DemoURL      null.String    `db:"demo_url" json:"demoUrl"`
	VideoURL     null.String    `db:"video_url" json:"videoUrl"`
	Technologies pq.StringArray `db:"technologies" json:"technologies"`
	Tags         pq.StringArray `db:"tags" json:"tags"`
	IsFeatured   bool           `db:"is_featured" json:"isFeatured"`
	IsPublished  bool           `db:"is_published" json:"isPublished"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`

	// classification names
	TypeName     string `db:"type_name" json:"type"`
	CategoryName string `db:"category_name" json:"category"`
	StatusName   string `db:"status_name" json:"status"`
}

type Member struct {
	ProjectID int    `db:"project_id" json:"FK_project"`
	UserID    int    `db:"user_id" json:"FK_user"`
	Role      string `db:"role" json:"role"`
	IsLeader  bool   `db:"is_leader" json:"isLeader"`

	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
	Email     string `db:"email" json:"email,omitempty"`
}

// Detail is a project with its members.
type Detail struct {
	Project
	Members []Member `json:"members"`
}

// NewProject contains information needed to submit a project to a call.
type NewProject struct {
	Title        string      `json:"title" validate:"required,notblank"`
	Summary      string      `json:"shortSummary" validate:"required,notblank"`
	Problem      string      `json:"problem" validate:"required,notblank"`
	Solution     string      `json:"solution" validate:"required,notblank"`
	TypeID       int         `json:"FK_type" validate:"required,gt=0"`
	CategoryID   int         `json:"FK_category" validate:"required,gt=0"`
	CoverImage   string      `json:"coverImage" validate:"omitempty,url"`
	RepoURL      string      `json:"repositoryUrl" validate:"omitempty,url"`
	DemoURL      string      `json:"demoUrl" validate:"omitempty,url"`
	VideoURL     string      `json:"videoUrl" validate:"omitempty,url"`
	Technologies []string    `json:"technologies"`
	Tags         []string    `json:"tags"`
	IsDraft      bool        `json:"isDraft"`
	Members      []NewMember `json:"members" validate:"dive"`
}

type NewMember struct {
	UserID int    `json:"FK_user" validate:"required,gt=0"`
	Role   string `json:"role"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Summary = core.CleanString(np.Summary)
	np.Problem = core.CleanString(np.Problem)
	np.Solution = core.CleanString(np.Solution)
	np.CoverImage = core.CleanString(np.CoverImage)
	np.RepoURL = core.CleanString(np.RepoURL)
	np.DemoURL = core.CleanString(np.DemoURL)
	np.VideoURL = core.CleanString(np.VideoURL)
	np.Technologies = core.CleanStrings(np.Technologies)
	np.Tags = core.CleanStrings(np.Tags)
	for i := range np.Members {
		np.Members[i].Role = core.CleanString(np.Members[i].Role)
	}
	return validate.Struct(np)
}

// UpdateProject holds the fields a call owner may change; absent fields are nil.
type UpdateProject struct {
	StatusID    *int  `json:"FK_status" validate:"omitempty,gt=0"`
	IsPublished *bool `json:"isPublished"`
	IsFeatured  *bool `json:"isFeatured"`
}

func (up *UpdateProject) Validate(validate *validator.Validate) error {
	return validate.Struct(up)
}

// QueryFilter scopes a projects listing. Zero values mean "no restriction".
type QueryFilter struct {
	CallID        int
	PublishedOnly bool
	FeaturedOnly  bool
	Search        string
}

// LandingFilter is the public listing query string.
type LandingFilter struct {
	Featured bool   `query:"featured"`
	Search   string `query:"search"`
}

func (lf *LandingFilter) Clean() {
	lf.Search = core.CleanString(lf.Search)
}
