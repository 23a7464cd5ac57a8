package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/schoolhub/apps/api/echo"
	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/classroom"
	"github.com/trezcool/schoolhub/core/course"
	"github.com/trezcool/schoolhub/core/user"
	"github.com/trezcool/schoolhub/services/email"
	"github.com/trezcool/schoolhub/services/logger"
	"github.com/trezcool/schoolhub/services/oembed"
	"github.com/trezcool/schoolhub/services/upload"
	"github.com/trezcool/schoolhub/storage/database"
	"github.com/trezcool/schoolhub/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf         *core.Config
	Logger       core.Logger
	UserSvc      user.Service
	BillingSvc   *billing.Service
	ClassroomSvc *classroom.Service
	CourseSvc    *course.Service
	Validate     *validator.Validate
	Translator   ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
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

		if err = database.Migrate(db); err != nil {
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

func newFileStore(conf *core.Config, logger core.Logger) core.FileStore {
	files, err := uploadsvc.NewFileStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file store: %v", err), err)
	}
	return files
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// the user service is both the billing directory and the classroom roster

func newBillingUsers(svc user.Service) billing.Users { return svc }

func newRoster(svc user.Service) classroom.Roster { return svc }

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		UserSvc:      p.UserSvc,
		BillingSvc:   p.BillingSvc,
		ClassroomSvc: p.ClassroomSvc,
		CourseSvc:    p.CourseSvc,
		Validate:     p.Validate,
		Translator:   p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newFileStore))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewBillingRepository))
	must(c.Provide(sqlxrepos.NewClassroomRepository))
	must(c.Provide(sqlxrepos.NewCourseRepository))
	must(c.Provide(oembedsvc.NewYoutubeResolver))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(newBillingUsers))
	must(c.Provide(newRoster))
	must(c.Provide(billing.NewService))
	must(c.Provide(billing.NewScheduler))
	must(c.Provide(classroom.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
