package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotJuror          = core.NewForbiddenError("no eres jurado de esta convocatoria")
	ErrAlreadyScored     = errors.New("ya has calificado este criterio")
	ErrNoCriteria        = errors.New("la convocatoria no tiene criterios de evaluación")
	ErrForeignCriterion  = errors.New("el criterio no pertenece a esta convocatoria")
	ErrDuplicateCriteria = errors.New("el criterio está repetido")
	ErrScoreRequired     = errors.New("la calificación es obligatoria")
)

type (
	Repository interface {
		QueryDetails(ctx context.Context, filter DetailFilter) ([]Detail, error)
		// CreateDetails inserts every detail and its history entry in one transaction.
		// It returns ErrAlreadyScored when one of them already exists.
		CreateDetails(ctx context.Context, details []Detail, entry audit.Entry) ([]Detail, error)
	}

	// DetailFilter scopes a review details query. Zero values mean "no restriction".
	DetailFilter struct {
		CallID            int
		ProjectIDs        []int
		JurorAssignmentID int
	}

	CallReader interface {
		GetByID(ctx context.Context, id int) (call.Call, error)
		Criteria(ctx context.Context, callID int) ([]call.Criterion, error)
		JurorAssignmentOf(ctx context.Context, callID, userID int) (call.JurorAssignment, error)
	}

	ProjectReader interface {
		ListForCall(ctx context.Context, callID int) ([]project.Project, error)
		GetForCall(ctx context.Context, callID, id int) (project.Detail, error)
	}

	Service struct {
		repo     Repository
		calls    CallReader
		projects ProjectReader
	}
)

func NewService(repo Repository, calls CallReader, projects ProjectReader) *Service {
	return &Service{repo: repo, calls: calls, projects: projects}
}

// SubmitScores records the ratings of juror on a project of the call. Every rubric criterion
// must be rated, once, within [0, maxScore]; the ratings are written all together or not at all.
func (svc *Service) SubmitScores(ctx context.Context, callID, projectID int, juror user.User, sub Submission, actor audit.Actor) ([]Detail, error) {
	if _, err := svc.calls.GetByID(ctx, callID); err != nil {
		return nil, err
	}
	p, err := svc.projects.GetForCall(ctx, callID, projectID)
	if err != nil {
		return nil, err
	}

	assignment, err := svc.calls.JurorAssignmentOf(ctx, callID, juror.ID)
	if err != nil {
		if err == call.ErrNoAccess {
			return nil, ErrNotJuror
		}
		return nil, err
	}

	criteria, err := svc.calls.Criteria(ctx, callID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying criteria")
	}
	if len(criteria) == 0 {
		return nil, core.NewValidationError(ErrNoCriteria)
	}

	existing, err := svc.repo.QueryDetails(ctx, DetailFilter{ProjectIDs: []int{p.ID}, JurorAssignmentID: assignment.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying review details")
	}
	scored := make(map[int]bool, len(existing))
	for _, d := range existing {
		scored[d.CriterionID] = true
	}
	// a re-scoring attempt is reported as such, even when it does not cover the rubric
	for _, r := range sub.Ratings {
		if scored[r.CriterionID] {
			return nil, core.NewValidationError(ErrAlreadyScored)
		}
	}

	if missing := missingCriteria(criteria, sub.Ratings); len(missing) > 0 {
		return nil, core.NewValidationError(MissingCriteriaError{IDs: missing})
	}

	byID := make(map[int]call.Criterion, len(criteria))
	for _, cr := range criteria {
		byID[cr.ID] = cr
	}

	now := NowFunc().UTC()
	seen := make(map[int]bool, len(sub.Ratings))
	details := make([]Detail, 0, len(sub.Ratings))
	for i, r := range sub.Ratings {
		field := fmt.Sprintf("ratings[%d]", i)

		cr, ok := byID[r.CriterionID]
		if !ok {
			return nil, ratingError(ErrForeignCriterion, field+".FK_criteria")
		}
		if seen[cr.ID] {
			return nil, ratingError(ErrDuplicateCriteria, field+".FK_criteria")
		}
		seen[cr.ID] = true

		if r.Score == nil {
			return nil, ratingError(ErrScoreRequired, field+".score")
		}
		if *r.Score < 0 || *r.Score > cr.MaxScore {
			return nil, ratingError(
				fmt.Errorf("la calificación de %q debe estar entre 0 y %g", cr.Name, cr.MaxScore),
				field+".score",
			)
		}

		details = append(details, Detail{
			ProjectID:         p.ID,
			CriterionID:       cr.ID,
			JurorAssignmentID: assignment.ID,
			Score:             *r.Score,
			Comments:          null.NewString(r.Comments, r.Comments != ""),
			CreatedAt:         now,
			CriterionName:     cr.Name,
			MaxScore:          cr.MaxScore,
		})
	}

	details, err = svc.repo.CreateDetails(ctx, details, audit.Created(audit.EntityReviewDetail, actor))
	if err != nil {
		if pkgerrors.Cause(err) == ErrAlreadyScored {
			return nil, core.NewValidationError(ErrAlreadyScored)
		}
		return nil, pkgerrors.Wrap(err, "creating review details")
	}
	return details, nil
}

func ratingError(err error, field string) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// ScoredProjects lists the projects of c with their scores.
func (svc *Service) ScoredProjects(ctx context.Context, c call.Call) ([]ScoredProject, error) {
	projects, err := svc.projects.ListForCall(ctx, c.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying projects")
	}
	criteria, err := svc.calls.Criteria(ctx, c.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying criteria")
	}
	details, err := svc.repo.QueryDetails(ctx, DetailFilter{CallID: c.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying review details")
	}

	byProject := make(map[int][]Detail)
	for _, d := range details {
		byProject[d.ProjectID] = append(byProject[d.ProjectID], d)
	}
	scored := make([]ScoredProject, 0, len(projects))
	for _, p := range projects {
		scored = append(scored, ScoredProject{Project: p, Scores: Summarize(byProject[p.ID], criteria)})
	}
	return scored, nil
}

// ProjectDetail returns one project of c with its members, review details and scores.
func (svc *Service) ProjectDetail(ctx context.Context, c call.Call, projectID int) (ProjectDetail, error) {
	p, err := svc.projects.GetForCall(ctx, c.ID, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	criteria, err := svc.calls.Criteria(ctx, c.ID)
	if err != nil {
		return ProjectDetail{}, pkgerrors.Wrap(err, "querying criteria")
	}
	details, err := svc.repo.QueryDetails(ctx, DetailFilter{ProjectIDs: []int{p.ID}})
	if err != nil {
		return ProjectDetail{}, pkgerrors.Wrap(err, "querying review details")
	}
	if criteria == nil {
		criteria = []call.Criterion{}
	}
	if details == nil {
		details = []Detail{}
	}
	return ProjectDetail{Detail: p, Criteria: criteria, ReviewDetails: details, Scores: Summarize(details, criteria)}, nil
}
