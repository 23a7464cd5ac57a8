package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/enrollment"
)

// Roles
const (
	RoleStudent = string(enrollment.RoleStudent)
	RoleTeacher = string(enrollment.RoleTeacher)
	RoleAdmin   = "admin"
)

// Salary types
const (
	SalaryFixed      = "Fixed"
	SalaryCommission = "Commission"
)

var (
	AllRoles    = []string{RoleStudent, RoleTeacher, RoleAdmin}
	SalaryTypes = []string{SalaryFixed, SalaryCommission}
)

type User struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PasswordHash []byte `json:"-"`
	IsApproved   bool   `json:"is_approved"`

	// student
	Standard         string   `json:"standard,omitempty"`
	Stream           string   `json:"stream,omitempty"`
	EnrolledSubjects []string `json:"enrolled_subjects,omitempty"`
	MonthlyFeeAmount int64    `json:"monthly_fee_amount,omitempty"`

	// teacher
	ClassesTaught []string `json:"classes_taught,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`
	Salary        int64    `json:"salary,omitempty"`
	SalaryType    string   `json:"salary_type,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
	LastLogin null.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

// Class returns the standard of a student, "N/A" for everybody else.
func (u User) Class() string {
	if u.IsStudent() && u.Standard != "" {
		return u.Standard
	}
	return enrollment.StreamNA
}

// Teaches reports whether a teacher is assigned to class, a teacher class or a student standard.
func (u User) Teaches(class string) bool {
	if !u.IsTeacher() {
		return false
	}
	return core.StringInSlice(class, u.ClassesTaught) || core.StringInSlice(class, u.TaughtStandards())
}

// VisibleClasses returns the class ids whose records a student can read.
func (u User) VisibleClasses() []string {
	if !u.IsStudent() || u.Standard == "" {
		return nil
	}
	classes := []string{u.Standard}
	if tc := enrollment.TeacherClassOf(u.Standard); tc != u.Standard {
		classes = append(classes, tc)
	}
	return classes
}

// TaughtStandards returns the student standards covered by the classes of a teacher.
func (u User) TaughtStandards() []string {
	var standards []string
	for _, c := range u.ClassesTaught {
		standards = append(standards, enrollment.StudentStandardsOf(c)...)
	}
	return standards
}

func (u User) Enrollment() enrollment.Student {
	return enrollment.Student{Standard: u.Standard, Stream: u.Stream, Subjects: u.EnrolledSubjects}
}

func (u User) Assignment() enrollment.Teacher {
	return enrollment.Teacher{Classes: u.ClassesTaught, Subjects: u.Subjects}
}

type Contact struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email,email_domain"`
	Phone    string `json:"phone" validate:"required,phone"`
	Password string `json:"password" validate:"required"`
}

func (c *Contact) clean() {
	c.Name = core.CleanString(c.Name)
	c.Email = core.CleanString(c.Email, true /* lower */)
	c.Phone = core.CleanString(c.Phone)
}

// NewStudent contains information needed to sign up a student.
type NewStudent struct {
	Contact
	enrollment.Student
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.Contact.clean()
	ns.Student.Normalize()

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, ns.Email)
}

// NewTeacher contains information needed to sign up a teacher.
type NewTeacher struct {
	Contact
	enrollment.Teacher
}

func (nt *NewTeacher) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nt.Contact.clean()
	nt.Teacher.Normalize()

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, nt.Email)
}

// NewAdmin contains information needed to create an admin account.
type NewAdmin struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (na *NewAdmin) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, na.Email)
}

// UpdateStudent defines what an admin may modify on a student.
type UpdateStudent struct {
	Name             string `json:"name" validate:"required"`
	Phone            string `json:"phone" validate:"omitempty,phone"`
	MonthlyFeeAmount int64  `json:"monthly_fee_amount" validate:"required,gt=0"`
	enrollment.Student
}

func (us *UpdateStudent) Validate(origUsr User, validate *validator.Validate) error {
	if !origUsr.IsStudent() {
		return ErrRoleMismatch
	}
	us.Name = core.CleanString(us.Name)
	if phone := core.CleanString(us.Phone); phone != "" {
		us.Phone = phone
	} else {
		us.Phone = origUsr.Phone
	}
	us.Student.Normalize()
	return validate.Struct(us)
}

// UpdateTeacher defines what an admin may modify on a teacher.
type UpdateTeacher struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
	SalaryType string `json:"salary_type" validate:"required,oneof=Fixed Commission"`
	Salary     int64  `json:"salary" validate:"gte=0"`
	enrollment.Teacher
}

func (ut *UpdateTeacher) Validate(origUsr User, validate *validator.Validate) error {
	if !origUsr.IsTeacher() {
		return ErrRoleMismatch
	}
	ut.Name = core.CleanString(ut.Name)
	if phone := core.CleanString(ut.Phone); phone != "" {
		ut.Phone = phone
	} else {
		ut.Phone = origUsr.Phone
	}
	ut.SalaryType = core.CleanString(ut.SalaryType)
	if ut.SalaryType == "" {
		ut.SalaryType = origUsr.SalaryType
	}
	if ut.SalaryType == SalaryCommission {
		ut.Salary = 0
	}
	ut.Teacher.Normalize()
	return validate.Struct(ut)
}

// Approval holds the billing defaults set when approving an account.
// Zero values fall back to the configured defaults.
type Approval struct {
	MonthlyFeeAmount int64  `json:"monthly_fee_amount" validate:"gte=0"`
	SalaryType       string `json:"salary_type" validate:"omitempty,oneof=Fixed Commission"`
	Salary           int64  `json:"salary" validate:"gte=0"`
}

func (a *Approval) Validate(validate *validator.Validate) error {
	a.SalaryType = core.CleanString(a.SalaryType)
	return validate.Struct(a)
}

// SetPassword is used by admins to reset a password.
type SetPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	name, email string // for the similarity check
}

func (sp *SetPassword) Validate(usr User, validate *validator.Validate) error {
	sp.name = usr.Name
	sp.email = usr.Email
	return validate.Struct(sp)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsApproved  *bool     `query:"is_approved"`
	Standards   []string  `query:"standard"`
	SalaryType  string    `query:"salary_type"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsApproved == nil && qf.Standards == nil &&
		qf.SalaryType == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.SalaryType = core.CleanString(qf.SalaryType)
	qf.Roles = core.CleanStrings(qf.Roles)
	qf.Standards = core.CleanStrings(qf.Standards)
}
