// Package di wires the API dependencies into a dig.Container.
package di

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/celsofranciscano/innotech/apps/api/echo"
	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/review"
	"github.com/celsofranciscano/innotech/core/user"
	emailsvc "github.com/celsofranciscano/innotech/services/email"
	logsvc "github.com/celsofranciscano/innotech/services/logger"
	"github.com/celsofranciscano/innotech/storage/database"
	pgrepos "github.com/celsofranciscano/innotech/storage/database/postgres"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	call.InitValidators(validate, translator)
	return validate
}

func newCallService(repo call.Repository, users *user.Service, mailSvc core.EmailService, conf *core.Config) *call.Service {
	return call.NewService(repo, users, mailSvc, conf)
}

func newProjectService(repo project.Repository, catalogSvc *catalog.Service, users *user.Service, mailSvc core.EmailService) *project.Service {
	return project.NewService(repo, catalogSvc, users, mailSvc)
}

func newReviewService(repo review.Repository, calls *call.Service, projects *project.Service) *review.Service {
	return review.NewService(repo, calls, projects)
}

type depsParams struct {
	dig.In

	UserSvc    *user.Service
	CallSvc    *call.Service
	ProjectSvc *project.Service
	ReviewSvc  *review.Service
	CatalogSvc *catalog.Service
	AuditSvc   *audit.Service
}

func newDeps(p depsParams) *echoapi.Deps {
	return &echoapi.Deps{
		UserSvc:    p.UserSvc,
		CallSvc:    p.CallSvc,
		ProjectSvc: p.ProjectSvc,
		ReviewSvc:  p.ReviewSvc,
		CatalogSvc: p.CatalogSvc,
		AuditSvc:   p.AuditSvc,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	provideApp(c)
	return c
}

// provideApp provides the repositories, the services and the server on top of the
// config, loggers, database, email service, translator and validator of c.
func provideApp(c *dig.Container) {
	// repositories
	must(c.Provide(newRepositories))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(audit.NewService))
	must(c.Provide(newCallService))
	must(c.Provide(newProjectService))
	must(c.Provide(newReviewService))

	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))
}

type repositories struct {
	dig.Out

	Users    user.Repository
	Devices  user.DeviceRepository
	Catalog  catalog.Repository
	Calls    call.Repository
	Projects project.Repository
	Reviews  review.Repository
	Audit    audit.Repository
}

func newRepositories(db core.DB) repositories {
	return repositories{
		Users:    pgrepos.NewUserRepository(db),
		Devices:  pgrepos.NewDeviceRepository(db),
		Catalog:  pgrepos.NewCatalogRepository(db),
		Calls:    pgrepos.NewCallRepository(db),
		Projects: pgrepos.NewProjectRepository(db),
		Reviews:  pgrepos.NewReviewRepository(db),
		Audit:    pgrepos.NewAuditRepository(db),
	}
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
