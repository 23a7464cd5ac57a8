package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/enrollment"
	"github.com/trezcool/schoolhub/core/user"
	"github.com/trezcool/schoolhub/services/email"
	"github.com/trezcool/schoolhub/services/logger"
	"github.com/trezcool/schoolhub/storage/database"
	"github.com/trezcool/schoolhub/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf.Auth)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	usrSvc := user.NewService(conf, sqlxrepos.NewUserRepository(db), emailsvc.NewConsoleService(conf, logger))

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrSvc:     usrSvc,
		billingSvc: billing.NewService(conf, sqlxrepos.NewBillingRepository(db), usrSvc),
		validate:   validate,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
