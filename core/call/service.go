package call

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound          = core.NewNotFoundError("convocatoria no encontrada")
	ErrCriterionNotFound = core.NewNotFoundError("criterio no encontrado")
	ErrJurorExists       = errors.New("el usuario ya es jurado de esta convocatoria")
	ErrNotOwner          = core.NewForbiddenError("no eres el responsable de esta convocatoria")
	ErrNoAccess          = core.NewForbiddenError("no tienes acceso a esta convocatoria")
	ErrInvalidJuror      = errors.New("el usuario no existe o está inactivo")

	jurorAssignedTmpl = "juror_assigned"
)

func init() {
	core.RegisterEmailTemplate(jurorAssignedTmpl,
		`Hola {{.Name}},

Has sido asignado como jurado de la convocatoria "{{.CallTitle}}".
{{if .Notes}}
Notas: {{.Notes}}
{{end}}
Ingresa a {{.URL}} para calificar los proyectos.`,
		`<p>Hola {{.Name}},</p>
<p>Has sido asignado como jurado de la convocatoria <strong>{{.CallTitle}}</strong>.</p>
{{if .Notes}}<p>Notas: {{.Notes}}</p>{{end}}
<p><a href="{{.URL}}">Calificar proyectos</a></p>`,
	)
}

type (
	Repository interface {
		CreateCall(ctx context.Context, c Call, entry audit.Entry) (Call, error)
		QueryCalls(ctx context.Context, filter QueryFilter) ([]Call, error)
		GetCall(ctx context.Context, id int) (Call, error)

		CreateCriterion(ctx context.Context, cr Criterion, entry audit.Entry) (Criterion, error)
		QueryCriteria(ctx context.Context, callID int) ([]Criterion, error)

		CreateJurorAssignment(ctx context.Context, ja JurorAssignment, entry audit.Entry) (JurorAssignment, error)
		QueryJurorAssignments(ctx context.Context, callID int) ([]JurorAssignment, error)
	}

	// UserFinder resolves the users referenced by juror assignments.
	UserFinder interface {
		GetByID(ctx context.Context, id int) (user.User, error)
	}

	Service struct {
		repo    Repository
		users   UserFinder
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, users UserFinder, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, users: users, mailSvc: mailSvc, conf: conf}
}

// Calls

func (svc *Service) Create(ctx context.Context, nc NewCall, owner user.User, actor audit.Actor) (Call, error) {
	now := NowFunc().UTC()
	c := Call{
		OwnerID:             owner.ID,
		Title:               nc.Title,
		Description:         nc.Description,
		SubmissionOpen:      nc.SubmissionOpen.UTC(),
		SubmissionClose:     nc.SubmissionClose.UTC(),
		IsActive:            true,
		IsIndividual:        nc.IsIndividual,
		AllowedProjectTypes: pq.StringArray(nc.AllowedProjectTypes),
		AllowedCategories:   pq.StringArray(nc.AllowedCategories),
		MinTeamMembers:      null.IntFromPtr(nc.MinTeamMembers),
		MaxTeamMembers:      null.IntFromPtr(nc.MaxTeamMembers),
		MinExperienceLevel:  null.NewString(nc.MinExperienceLevel, nc.MinExperienceLevel != ""),
		MinTechRequirements: pq.StringArray(nc.MinTechRequirements),
		Prizes:              pq.StringArray(nc.Prizes),
		Subject:             null.NewString(nc.Subject, nc.Subject != ""),
		Semester:            null.NewString(nc.Semester, nc.Semester != ""),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if nc.IsActive != nil {
		c.IsActive = *nc.IsActive
	}
	if nc.ResultsAnnouncement != nil {
		c.ResultsAnnouncement = null.TimeFrom(nc.ResultsAnnouncement.UTC())
	}

	c, err := svc.repo.CreateCall(ctx, c, audit.Created(audit.EntityCall, actor))
	if err != nil {
		return Call{}, pkgerrors.Wrap(err, "creating call")
	}
	return c, nil
}

// DashboardCalls lists the calls a dashboard user works on: every call for the superadmin,
// owned calls for coordinators and assigned calls for everyone else.
func (svc *Service) DashboardCalls(ctx context.Context, usr user.User) ([]Call, error) {
	var filter QueryFilter
	switch usr.Role {
	case user.RoleSuperAdmin:
	case user.RoleCoordinator:
		filter.OwnerID = usr.ID
	default:
		filter.JurorID = usr.ID
	}
	return svc.repo.QueryCalls(ctx, filter)
}

// ActiveCalls lists the calls open to students.
func (svc *Service) ActiveCalls(ctx context.Context) ([]Call, error) {
	return svc.repo.QueryCalls(ctx, QueryFilter{ActiveOnly: true})
}

func (svc *Service) GetByID(ctx context.Context, id int) (Call, error) {
	return svc.repo.GetCall(ctx, id)
}

// Owned returns the call if usr owns it.
func (svc *Service) Owned(ctx context.Context, id int, usr user.User) (Call, error) {
	c, err := svc.repo.GetCall(ctx, id)
	if err != nil {
		return Call{}, err
	}
	if !usr.IsSuperAdmin() && c.OwnerID != usr.ID {
		return Call{}, ErrNotOwner
	}
	return c, nil
}

// Accessible returns the call if usr owns it or is one of its jurors.
func (svc *Service) Accessible(ctx context.Context, id int, usr user.User) (Call, error) {
	c, err := svc.repo.GetCall(ctx, id)
	if err != nil {
		return Call{}, err
	}
	if usr.IsSuperAdmin() || c.OwnerID == usr.ID {
		return c, nil
	}
	if _, err = svc.JurorAssignmentOf(ctx, c.ID, usr.ID); err != nil {
		if err == ErrNoAccess {
			return Call{}, ErrNoAccess
		}
		return Call{}, err
	}
	return c, nil
}

// JurorAssignmentOf returns the assignment of userID on the call, or ErrNoAccess.
func (svc *Service) JurorAssignmentOf(ctx context.Context, callID, userID int) (JurorAssignment, error) {
	assignments, err := svc.repo.QueryJurorAssignments(ctx, callID)
	if err != nil {
		return JurorAssignment{}, pkgerrors.Wrap(err, "querying juror assignments")
	}
	for _, ja := range assignments {
		if ja.UserID == userID {
			return ja, nil
		}
	}
	return JurorAssignment{}, ErrNoAccess
}

// Criteria

func (svc *Service) Criteria(ctx context.Context, callID int) ([]Criterion, error) {
	return svc.repo.QueryCriteria(ctx, callID)
}

func (svc *Service) CreateCriterion(ctx context.Context, c Call, nc NewCriterion, actor audit.Actor) (Criterion, error) {
	cr := Criterion{
		CallID:      c.ID,
		Name:        nc.Name,
		Description: nc.Description,
		MaxScore:    DefaultMaxScore,
		CreatedAt:   NowFunc().UTC(),
	}
	if nc.MaxScore != nil {
		cr.MaxScore = *nc.MaxScore
	}
	cr, err := svc.repo.CreateCriterion(ctx, cr, audit.Created(audit.EntityCriterion, actor))
	if err != nil {
		return Criterion{}, pkgerrors.Wrap(err, "creating criterion")
	}
	return cr, nil
}

// Jurors

func (svc *Service) Jurors(ctx context.Context, callID int) ([]JurorAssignment, error) {
	return svc.repo.QueryJurorAssignments(ctx, callID)
}

// AssignJuror grants nj.UserID the right to score the projects of c and notifies them by email.
func (svc *Service) AssignJuror(ctx context.Context, c Call, nj NewJurorAssignment, actor audit.Actor) (JurorAssignment, error) {
	juror, err := svc.users.GetByID(ctx, nj.UserID)
	if err != nil && !core.IsNotFound(err) {
		return JurorAssignment{}, pkgerrors.Wrap(err, "finding juror")
	}
	if err != nil || !juror.IsActive {
		return JurorAssignment{}, core.NewValidationError(ErrInvalidJuror,
			core.FieldError{Field: "FK_user", Error: ErrInvalidJuror.Error()})
	}

	ja := JurorAssignment{
		CallID:     c.ID,
		UserID:     juror.ID,
		Notes:      nj.Notes,
		AssignedAt: NowFunc().UTC(),
		FirstName:  juror.FirstName,
		LastName:   juror.LastName,
		Email:      juror.Email,
	}
	ja, err = svc.repo.CreateJurorAssignment(ctx, ja, audit.Created(audit.EntityJuror, actor))
	if err != nil {
		if pkgerrors.Cause(err) == ErrJurorExists {
			return JurorAssignment{}, core.NewConflictError("FK_user", ErrJurorExists)
		}
		return JurorAssignment{}, pkgerrors.Wrap(err, "creating juror assignment")
	}

	svc.sendJurorAssignedMail(juror, c, ja)
	return ja, nil
}

func (svc *Service) sendJurorAssignedMail(juror user.User, c Call, ja JurorAssignment) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: juror.FullName(), Address: juror.Email}},
		Subject:      "Asignación de jurado",
		TemplateName: jurorAssignedTmpl,
		TemplateData: map[string]interface{}{
			"Name":      juror.FirstName,
			"CallTitle": c.Title,
			"Notes":     ja.Notes,
			"URL":       fmt.Sprintf("%s/dashboard/calls/%d", svc.conf.FrontendBaseURL, c.ID),
		},
	})
}
