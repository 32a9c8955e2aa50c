package project

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
	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound         = core.NewNotFoundError("proyecto no encontrado")
	ErrCallInactive     = errors.New("la convocatoria no está activa")
	ErrTypeNotAllowed   = errors.New("tipo de proyecto no permitido en esta convocatoria")
	ErrCatNotAllowed    = errors.New("categoría no permitida en esta convocatoria")
	ErrInvalidReference = errors.New("el registro no existe")
	ErrInvalidMember    = errors.New("el integrante no existe o está inactivo")

	projectSubmittedTmpl = "project_submitted"
)

func init() {
	core.RegisterEmailTemplate(projectSubmittedTmpl,
		`Hola {{.Name}},

Tu proyecto "{{.ProjectTitle}}" fue enviado a la convocatoria "{{.CallTitle}}".
Te avisaremos cuando el jurado lo haya evaluado.`,
		`<p>Hola {{.Name}},</p>
<p>Tu proyecto <strong>{{.ProjectTitle}}</strong> fue enviado a la convocatoria <strong>{{.CallTitle}}</strong>.</p>
<p>Te avisaremos cuando el jurado lo haya evaluado.</p>`,
	)
}

type (
	Repository interface {
		// CreateProject inserts the project, its members and the history entry atomically.
		CreateProject(ctx context.Context, p Project, members []Member, entry audit.Entry) (Project, error)
		QueryProjects(ctx context.Context, filter QueryFilter) ([]Project, error)
		GetProject(ctx context.Context, id int) (Project, error)
		QueryMembers(ctx context.Context, projectIDs ...int) ([]Member, error)
		UpdateProject(ctx context.Context, p Project, entry audit.Entry) (Project, error)
	}

	// CatalogFinder resolves the project classification.
	CatalogFinder interface {
		Get(ctx context.Context, kind catalog.Kind, id int) (catalog.Item, error)
		GetByName(ctx context.Context, kind catalog.Kind, name string) (catalog.Item, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id int) (user.User, error)
	}

	Service struct {
		repo    Repository
		catalog CatalogFinder
		users   UserFinder
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, catalog CatalogFinder, users UserFinder, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, catalog: catalog, users: users, mailSvc: mailSvc}
}

// Create submits a project to c, with leader as its leading member.
func (svc *Service) Create(ctx context.Context, c call.Call, np NewProject, leader user.User, actor audit.Actor) (Detail, error) {
	if !c.IsActive {
		return Detail{}, core.NewValidationError(ErrCallInactive)
	}

	projType, err := svc.classification(ctx, catalog.KindProjectType, np.TypeID, "FK_type")
	if err != nil {
		return Detail{}, err
	}
	if !allowed(c.AllowedProjectTypes, projType.Name) {
		return Detail{}, core.NewValidationError(ErrTypeNotAllowed,
			core.FieldError{Field: "FK_type", Error: ErrTypeNotAllowed.Error()})
	}
	category, err := svc.classification(ctx, catalog.KindCategory, np.CategoryID, "FK_category")
	if err != nil {
		return Detail{}, err
	}
	if !allowed(c.AllowedCategories, category.Name) {
		return Detail{}, core.NewValidationError(ErrCatNotAllowed,
			core.FieldError{Field: "FK_category", Error: ErrCatNotAllowed.Error()})
	}

	statusName := catalog.StatusPending
	if np.IsDraft {
		statusName = catalog.StatusDraft
	}
	status, err := svc.catalog.GetByName(ctx, catalog.KindStatus, statusName)
	if err != nil {
		// missing seed data: reported as an internal error, never as a 404
		return Detail{}, pkgerrors.Errorf("project status %q is not configured: %v", statusName, err)
	}

	members := []Member{{
		UserID:    leader.ID,
		Role:      RoleLeader,
		IsLeader:  true,
		FirstName: leader.FirstName,
		LastName:  leader.LastName,
		Email:     leader.Email,
	}}
	if !c.IsIndividual {
		others, err := svc.teamMembers(ctx, leader.ID, np.Members)
		if err != nil {
			return Detail{}, err
		}
		members = append(members, others...)

		if !c.TeamSizeAllows(len(members)) {
			msg := teamSizeMessage(c)
			return Detail{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "members", Error: msg})
		}
	}

	now := NowFunc().UTC()
	p := Project{
		CallID:       c.ID,
		OwnerID:      leader.ID,
		TypeID:       projType.ID,
		CategoryID:   category.ID,
		StatusID:     status.ID,
		Title:        np.Title,
		Summary:      np.Summary,
		Problem:      np.Problem,
		Solution:     np.Solution,
		CoverImage:   null.NewString(np.CoverImage, np.CoverImage != ""),
		RepoURL:      null.NewString(np.RepoURL, np.RepoURL != ""),
		DemoURL:      null.NewString(np.DemoURL, np.DemoURL != ""),
		VideoURL:     null.NewString(np.VideoURL, np.VideoURL != ""),
		Technologies: pq.StringArray(np.Technologies),
		Tags:         pq.StringArray(np.Tags),
		CreatedAt:    now,
		UpdatedAt:    now,
		TypeName:     projType.Name,
		CategoryName: category.Name,
		StatusName:   status.Name,
	}
	p, err = svc.repo.CreateProject(ctx, p, members, audit.Created(audit.EntityProject, actor))
	if err != nil {
		return Detail{}, pkgerrors.Wrap(err, "creating project")
	}
	for i := range members {
		members[i].ProjectID = p.ID
	}

	if !np.IsDraft {
		svc.sendProjectSubmittedMail(leader, c, p)
	}
	return Detail{Project: p, Members: members}, nil
}

func (svc *Service) classification(ctx context.Context, kind catalog.Kind, id int, field string) (catalog.Item, error) {
	item, err := svc.catalog.Get(ctx, kind, id)
	if err != nil {
		if core.IsNotFound(err) {
			return catalog.Item{}, core.NewValidationError(ErrInvalidReference,
				core.FieldError{Field: field, Error: ErrInvalidReference.Error()})
		}
		return catalog.Item{}, pkgerrors.Wrapf(err, "finding %s", kind)
	}
	if !item.IsActive {
		return catalog.Item{}, core.NewValidationError(ErrInvalidReference,
			core.FieldError{Field: field, Error: ErrInvalidReference.Error()})
	}
	return item, nil
}

// teamMembers resolves the non-leader members, dropping duplicates and the leader.
func (svc *Service) teamMembers(ctx context.Context, leaderID int, nms []NewMember) ([]Member, error) {
	seen := map[int]bool{leaderID: true}
	members := make([]Member, 0, len(nms))
	for _, nm := range nms {
		if seen[nm.UserID] {
			continue
		}
		seen[nm.UserID] = true

		usr, err := svc.users.GetByID(ctx, nm.UserID)
		if err != nil && !core.IsNotFound(err) {
			return nil, pkgerrors.Wrap(err, "finding member")
		}
		if err != nil || !usr.IsActive {
			return nil, core.NewValidationError(ErrInvalidMember,
				core.FieldError{Field: "members", Error: fmt.Sprintf("%s (%d)", ErrInvalidMember, nm.UserID)})
		}

		role := nm.Role
		if role == "" {
			role = RoleMember
		}
		members = append(members, Member{
			UserID:    usr.ID,
			Role:      role,
			FirstName: usr.FirstName,
			LastName:  usr.LastName,
			Email:     usr.Email,
		})
	}
	return members, nil
}

func allowed(set []string, name string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}

func teamSizeMessage(c call.Call) string {
	switch {
	case c.MinTeamMembers.Valid && c.MaxTeamMembers.Valid:
		return fmt.Sprintf("el equipo debe tener entre %d y %d integrantes", c.MinTeamMembers.Int, c.MaxTeamMembers.Int)
	case c.MinTeamMembers.Valid:
		return fmt.Sprintf("el equipo debe tener al menos %d integrantes", c.MinTeamMembers.Int)
	default:
		return fmt.Sprintf("el equipo no puede tener más de %d integrantes", c.MaxTeamMembers.Int)
	}
}

func (svc *Service) sendProjectSubmittedMail(leader user.User, c call.Call, p Project) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: leader.FullName(), Address: leader.Email}},
		Subject:      "Proyecto enviado",
		TemplateName: projectSubmittedTmpl,
		TemplateData: map[string]interface{}{
			"Name":         leader.FirstName,
			"ProjectTitle": p.Title,
			"CallTitle":    c.Title,
		},
	})
}

// ListForCall lists the projects submitted to the call.
func (svc *Service) ListForCall(ctx context.Context, callID int) ([]Project, error) {
	return svc.repo.QueryProjects(ctx, QueryFilter{CallID: callID})
}

// GetForCall returns the project with its members. A project of another call is reported as not found.
func (svc *Service) GetForCall(ctx context.Context, callID, id int) (Detail, error) {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if p.CallID != callID {
		return Detail{}, ErrNotFound
	}
	return svc.withMembers(ctx, p)
}

func (svc *Service) withMembers(ctx context.Context, p Project) (Detail, error) {
	members, err := svc.repo.QueryMembers(ctx, p.ID)
	if err != nil {
		return Detail{}, pkgerrors.Wrap(err, "querying members")
	}
	return Detail{Project: p, Members: members}, nil
}

// Update changes the status and publication flags. It reports changed=false, without writing, when nothing differs.
func (svc *Service) Update(ctx context.Context, callID, id int, up UpdateProject, actor audit.Actor) (Project, bool, error) {
	orig, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, false, err
	}
	if orig.CallID != callID {
		return Project{}, false, ErrNotFound
	}
	p := orig
	changes := make(audit.Changes)

	if up.StatusID != nil && *up.StatusID != orig.StatusID {
		status, err := svc.classification(ctx, catalog.KindStatus, *up.StatusID, "FK_status")
		if err != nil {
			return Project{}, false, err
		}
		changes.Track("FK_status", orig.StatusID, status.ID)
		p.StatusID = status.ID
		p.StatusName = status.Name
	}
	if up.IsPublished != nil {
		changes.Track("isPublished", orig.IsPublished, *up.IsPublished)
		p.IsPublished = *up.IsPublished
	}
	if up.IsFeatured != nil {
		changes.Track("isFeatured", orig.IsFeatured, *up.IsFeatured)
		p.IsFeatured = *up.IsFeatured
	}

	if changes.IsEmpty() {
		return orig, false, nil
	}
	p.UpdatedAt = NowFunc().UTC()
	p, err = svc.repo.UpdateProject(ctx, p, audit.Updated(audit.EntityProject, p.ID, actor, changes))
	if err != nil {
		return Project{}, false, pkgerrors.Wrap(err, "updating project")
	}
	return p, true, nil
}

// Landing

// Published lists the published projects for the public site.
func (svc *Service) Published(ctx context.Context, lf LandingFilter) ([]Project, error) {
	lf.Clean()
	return svc.repo.QueryProjects(ctx, QueryFilter{
		PublishedOnly: true,
		FeaturedOnly:  lf.Featured,
		Search:        lf.Search,
	})
}

// PublishedDetail returns a published project; member emails are left out.
func (svc *Service) PublishedDetail(ctx context.Context, id int) (Detail, error) {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !p.IsPublished {
		return Detail{}, ErrNotFound
	}
	d, err := svc.withMembers(ctx, p)
	if err != nil {
		return Detail{}, err
	}
	for i := range d.Members {
		d.Members[i].Email = ""
	}
	return d, nil
}
