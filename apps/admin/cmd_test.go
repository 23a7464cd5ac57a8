package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/enrollment"
	"github.com/trezcool/schoolhub/core/user"
	"github.com/trezcool/schoolhub/services/email"
	"github.com/trezcool/schoolhub/storage/database/dummy"
	"github.com/trezcool/schoolhub/tests"
)

var (
	usrRepo  user.Repository
	billRepo billing.Repository
)

func setup(t *testing.T) *commandLine {
	conf := core.NewTestConfig()

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf.Auth)

	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo = dummydb.NewUserRepository(db)
	billRepo = dummydb.NewBillingRepository(db)
	usrSvc := user.NewServiceMock(conf, usrRepo, emailsvc.NewConsoleServiceMock(conf))

	// start CLI
	return &commandLine{
		usrSvc:     usrSvc,
		billingSvc: billing.NewService(conf, billRepo, usrSvc),
		validate:   validate,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v %s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		if _, err := fs.Stat(fsys, dir+"/00001_users.sql"); err != nil {
			return err
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "exam_terms", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli := setup(t)
	testutil.CreateStudent(t, usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"createadmin"}, wantErr: errHelp},
		{name: "name but no email", args: []string{"createadmin", "-name", "Root"}, wantErr: errHelp},
		{name: "no password", args: []string{"createadmin", "-name", "Root", "-email", "root@gmail.com"}, wantErr: errHelp},
		{
			name: "email taken", args: []string{"createadmin", "-name", "Root", "-email", "Asha@Gmail.com"},
			extra: "S3cure-Passw0rd", wantErrStr: user.ErrEmailExists.Error(),
		},
		{name: "created", args: []string{"createadmin", "-name", "Root", "-email", "root@gmail.com"}, extra: "S3cure-Passw0rd"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	admin, err := usrRepo.GetUserByEmail(context.Background(), "root@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.True(t, admin.IsApproved)
	assert.NoError(t, admin.CheckPassword("S3cure-Passw0rd"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateTeacher(t, usrRepo, "Ravi", "ravi@gmail.com", "mdr", []string{"10th"}, []string{"Physics"}, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@gmail.com"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@gmail.com"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: "lol"},
		{name: "reset with uppercase email", args: []string{"resetpassword", "-email", "RAVI@gmail.com"}, extra: "lmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err != nil {
				return
			}

			refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
			require.NoError(t, err)
			if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
				t.Error("failed to update new password")
			}
			assert.NoError(t, refreshedUsr.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_generate(t *testing.T) {
	cli := setup(t)
	testutil.CreateStudent(t, usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, true)
	testutil.CreateStudent(t, usrRepo, "Pending", "pending@gmail.com", "", "10th", nil, false)
	testutil.CreateTeacher(t, usrRepo, "Ravi", "ravi@gmail.com", "", []string{"10th"}, []string{"Physics"}, true)

	tests := []cliTest{
		{name: "no args", args: []string{"generate"}, wantErr: errHelp},
		{name: "unknown kind", args: []string{"generate", "-kind", "bonus"}, wantErr: billing.ErrInvalidKind},
		{name: "fees", args: []string{"generate", "-kind", "fee", "-month", "2025-03"}},
		{name: "salaries with a title", args: []string{"generate", "-kind", "salary", "-title", "Diwali Bonus"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	t.Run("invalid month", func(t *testing.T) {
		_, err := cli.generate(billing.KindFee, billing.GenerateRequest{Month: "March"})
		assert.Error(t, err)
	})

	t.Run("cycles are generated once", func(t *testing.T) {
		n, err := cli.generate(billing.KindFee, billing.GenerateRequest{Month: "2025-03"})
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = cli.generate(billing.KindFee, billing.GenerateRequest{Month: "2025-04"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
