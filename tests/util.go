package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/enrollment"
	"github.com/trezcool/schoolhub/core/user"
)

func createUser(t *testing.T, repo user.Repository, usr user.User, pwd string, createdAt []time.Time) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr.CreatedAt = tstamp
	usr.UpdatedAt = tstamp
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudent stores a student enrolled in standard. Approved students pay 5000 a month.
func CreateStudent(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, standard string,
	subjects []string,
	approved bool,
	createdAt ...time.Time,
) user.User {
	s := enrollment.Student{Standard: standard, Subjects: subjects}
	if enrollment.IsSenior(standard) {
		s.Stream = enrollment.StreamScience
	}
	s.Normalize()

	usr := user.User{
		Role:             user.RoleStudent,
		Name:             name,
		Email:            email,
		Phone:            "9876543210",
		IsApproved:       approved,
		Standard:         s.Standard,
		Stream:           s.Stream,
		EnrolledSubjects: s.Subjects,
	}
	if approved {
		usr.MonthlyFeeAmount = 5000
	}
	return createUser(t, repo, usr, pwd, createdAt)
}

// CreateTeacher stores a teacher of classes. Approved teachers get a fixed salary of 15000,
// unless salaryType says otherwise.
func CreateTeacher(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	classes, subjects []string,
	approved bool,
	salaryType ...string,
) user.User {
	a := enrollment.Teacher{Classes: classes, Subjects: subjects}
	a.Normalize()

	usr := user.User{
		Role:          user.RoleTeacher,
		Name:          name,
		Email:         email,
		Phone:         "9876543210",
		IsApproved:    approved,
		ClassesTaught: a.Classes,
		Subjects:      a.Subjects,
	}
	if approved {
		usr.SalaryType = user.SalaryFixed
		if len(salaryType) > 0 {
			usr.SalaryType = salaryType[0]
		}
		if usr.SalaryType == user.SalaryFixed {
			usr.Salary = 15000
		}
	}
	return createUser(t, repo, usr, pwd, nil)
}

func CreateAdmin(t *testing.T, repo user.Repository, name, email, pwd string) user.User {
	return createUser(t, repo, user.User{
		Role:       user.RoleAdmin,
		Name:       name,
		Email:      email,
		IsApproved: true,
	}, pwd, nil)
}

// CreateRecord stores a pending record of kind for usr.
func CreateRecord(
	t *testing.T,
	repo billing.Repository,
	usr user.User,
	kind billing.Kind,
	title string,
	amount int64,
	createdAt ...time.Time,
) billing.Record {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	r, err := repo.CreateRecord(context.Background(), billing.Record{
		Kind:      kind,
		UserID:    usr.ID,
		UserName:  usr.Name,
		UserEmail: usr.Email,
		UserClass: usr.Class(),
		Title:     title,
		Amount:    amount,
		Status:    billing.StatusPending,
		Date:      time.Date(tstamp.Year(), tstamp.Month(), tstamp.Day(), 0, 0, 0, 0, time.UTC),
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return r
}
