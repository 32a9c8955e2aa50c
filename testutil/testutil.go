// Package testutil wires the services on a test database and creates test fixtures.
package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/review"
	"github.com/celsofranciscano/innotech/core/user"
	emailsvc "github.com/celsofranciscano/innotech/services/email"
	logsvc "github.com/celsofranciscano/innotech/services/logger"
	inmemdb "github.com/celsofranciscano/innotech/storage/database/inmem"
	pgrepos "github.com/celsofranciscano/innotech/storage/database/postgres"
)

// SystemActor authors the fixtures.
var SystemActor = audit.Actor{UserID: 0, UserRole: "Sistema", UserName: "sistema"}

// Env holds every service of the app backed by one database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	DB         *inmemdb.DB // nil on postgres
	SQL        *sqlx.DB    // nil in memory
	MailSvc    *emailsvc.ConsoleServiceMock
	Validate   *validator.Validate
	Translator ut.Translator

	UserRepo    user.Repository
	CallRepo    call.Repository
	ProjectRepo project.Repository
	ReviewRepo  review.Repository

	UserSvc    *user.Service
	CallSvc    *call.Service
	ProjectSvc *project.Service
	ReviewSvc  *review.Service
	CatalogSvc *catalog.Service
	AuditSvc   *audit.Service
}

type repositories struct {
	users    user.Repository
	devices  user.DeviceRepository
	catalog  catalog.Repository
	calls    call.Repository
	projects project.Repository
	reviews  review.Repository
	audit    audit.Repository
}

func NewEnv() *Env {
	db := inmemdb.Open()
	env := newEnv(repositories{
		users:    inmemdb.NewUserRepository(db),
		devices:  inmemdb.NewDeviceRepository(db),
		catalog:  inmemdb.NewCatalogRepository(db),
		calls:    inmemdb.NewCallRepository(db),
		projects: inmemdb.NewProjectRepository(db),
		reviews:  inmemdb.NewReviewRepository(db),
		audit:    inmemdb.NewAuditRepository(db),
	})
	env.DB = db
	return env
}

// NewPostgresEnv wires the services on the database named by TestDatabaseURLEnv.
// The test is skipped when the variable is unset.
func NewPostgresEnv(t *testing.T) *Env {
	db := OpenDB(t)
	env := newEnv(repositories{
		users:    pgrepos.NewUserRepository(db),
		devices:  pgrepos.NewDeviceRepository(db),
		catalog:  pgrepos.NewCatalogRepository(db),
		calls:    pgrepos.NewCallRepository(db),
		projects: pgrepos.NewProjectRepository(db),
		reviews:  pgrepos.NewReviewRepository(db),
		audit:    pgrepos.NewAuditRepository(db),
	})
	env.SQL = db
	return env
}

func newEnv(repos repositories) *Env {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	call.InitValidators(validate, translator)

	usrSvc := user.NewService(repos.users, repos.devices, mailSvc, conf)
	catalogSvc := catalog.NewService(repos.catalog)
	callSvc := call.NewService(repos.calls, usrSvc, mailSvc, conf)
	projectSvc := project.NewService(repos.projects, catalogSvc, usrSvc, mailSvc)

	return &Env{
		Conf:        conf,
		Logger:      logger,
		MailSvc:     mailSvc,
		Validate:    validate,
		Translator:  translator,
		UserRepo:    repos.users,
		CallRepo:    repos.calls,
		ProjectRepo: repos.projects,
		ReviewRepo:  repos.reviews,
		UserSvc:     usrSvc,
		CallSvc:     callSvc,
		ProjectSvc:  projectSvc,
		ReviewSvc:   review.NewService(repos.reviews, callSvc, projectSvc),
		CatalogSvc:  catalogSvc,
		AuditSvc:    audit.NewService(repos.audit),
	}
}

// Privilege returns the privilege of role, creating it on first use.
func (env *Env) Privilege(t *testing.T, role user.Role) user.Privilege {
	ctx := context.Background()
	priv, err := env.UserRepo.GetPrivilegeByName(ctx, role)
	if err == nil {
		return priv
	}
	if !core.IsNotFound(err) {
		t.Fatalf("Privilege() failed: %v", err)
	}
	now := time.Now().UTC()
	priv = user.Privilege{Name: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
	priv, err = env.UserRepo.CreatePrivilege(ctx, priv, audit.Created(audit.EntityPrivilege, SystemActor))
	if err != nil {
		t.Fatalf("Privilege() failed: %v", err)
	}
	return priv
}

func (env *Env) CreateUser(
	t *testing.T,
	firstName, lastName, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	priv := env.Privilege(t, role)
	usr := user.User{
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		PrivilegeID: priv.ID,
		Role:        priv.Name,
		IsActive:    isActive,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := env.UserRepo.CreateUser(context.Background(), usr, audit.Created(audit.EntityUser, SystemActor))
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Catalog is the classification every project fixture uses.
type Catalog struct {
	Category    catalog.Item
	ProjectType catalog.Item
	Statuses    map[string]catalog.Item
}

// SeedCatalog creates every project status, one category and one project type.
func (env *Env) SeedCatalog(t *testing.T) Catalog {
	ctx := context.Background()
	create := func(kind catalog.Kind, name string) catalog.Item {
		item, err := env.CatalogSvc.Create(ctx, kind, catalog.NewItem{Name: name}, SystemActor)
		if err != nil {
			t.Fatalf("SeedCatalog() failed: %v", err)
		}
		return item
	}

	cat := Catalog{Statuses: make(map[string]catalog.Item, len(catalog.AllStatuses))}
	for _, name := range catalog.AllStatuses {
		cat.Statuses[name] = create(catalog.KindStatus, name)
	}
	cat.Category = create(catalog.KindCategory, "Tecnología")
	cat.ProjectType = create(catalog.KindProjectType, "Software")
	return cat
}

// NewCall returns a valid team call request, open since yesterday for a week.
func NewCall(title string) call.NewCall {
	open := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)
	closeAt := open.Add(7 * 24 * time.Hour)
	minTeam, maxTeam := 1, 4
	return call.NewCall{
		Title:           title,
		Description:     "Feria de innovación tecnológica",
		SubmissionOpen:  &open,
		SubmissionClose: &closeAt,
		MinTeamMembers:  &minTeam,
		MaxTeamMembers:  &maxTeam,
		Prizes:          []string{"Primer lugar", "Segundo lugar"},
		Subject:         "Ingeniería de Software",
		Semester:        "2024-I",
	}
}

func (env *Env) CreateCall(t *testing.T, owner user.User, nc call.NewCall) call.Call {
	actor := audit.Actor{UserID: owner.ID, UserRole: owner.Role.String(), UserName: owner.FullName()}
	c, err := env.CallSvc.Create(context.Background(), nc, owner, actor)
	if err != nil {
		t.Fatalf("CreateCall() failed: %v", err)
	}
	return c
}

func (env *Env) CreateCriterion(t *testing.T, c call.Call, name string, maxScore float64) call.Criterion {
	nc := call.NewCriterion{Name: name, MaxScore: &maxScore}
	cr, err := env.CallSvc.CreateCriterion(context.Background(), c, nc, SystemActor)
	if err != nil {
		t.Fatalf("CreateCriterion() failed: %v", err)
	}
	return cr
}

func (env *Env) AssignJuror(t *testing.T, c call.Call, juror user.User) call.JurorAssignment {
	ja, err := env.CallSvc.AssignJuror(context.Background(), c, call.NewJurorAssignment{UserID: juror.ID}, SystemActor)
	if err != nil {
		t.Fatalf("AssignJuror() failed: %v", err)
	}
	return ja
}

// NewProject returns a valid project request classified with cat.
func NewProject(title string, cat Catalog) project.NewProject {
	return project.NewProject{
		Title:        title,
		Summary:      "Resumen de " + title,
		Problem:      "Las filas en la biblioteca son muy largas",
		Solution:     "Una app de reservas",
		TypeID:       cat.ProjectType.ID,
		CategoryID:   cat.Category.ID,
		Technologies: []string{"Go", "PostgreSQL"},
		Tags:         []string{"educación"},
	}
}

func (env *Env) CreateProject(t *testing.T, c call.Call, leader user.User, np project.NewProject) project.Detail {
	actor := audit.Actor{UserID: leader.ID, UserRole: leader.Role.String(), UserName: leader.FullName()}
	d, err := env.ProjectSvc.Create(context.Background(), c, np, leader, actor)
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return d
}

// Score submits one rating per criterion, in order.
func (env *Env) Score(t *testing.T, c call.Call, p project.Project, juror user.User, criteria []call.Criterion, scores ...float64) []review.Detail {
	sub := review.Submission{}
	for i, cr := range criteria {
		score := scores[i]
		sub.Ratings = append(sub.Ratings, review.Rating{CriterionID: cr.ID, Score: &score})
	}
	details, err := env.ReviewSvc.SubmitScores(context.Background(), c.ID, p.ID, juror, sub, SystemActor)
	if err != nil {
		t.Fatalf("Score() failed: %v", err)
	}
	return details
}
