package user

import (
	"context"
	"net/mail"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolhub/core"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrAlreadyApproved = errors.New("user is already approved")
	ErrNotApprovable   = errors.New("only students and teachers need approval")
	ErrRoleMismatch    = errors.New("user role does not match this operation")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Email or User.Phone.
		FilterUsers(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		// UpdateUser saves every mutable field of usr except IsApproved.
		UpdateUser(ctx context.Context, usr User) (User, error)
		// ApproveUser sets IsApproved and the billing fields of usr, only if the stored user is still pending.
		// It returns ErrAlreadyApproved otherwise.
		ApproveUser(ctx context.Context, usr User) (User, error)
		// DeleteUser deletes usr along with its dependent records in one transaction:
		// fees and exam results of a student, homework, materials and attendance of a teacher.
		DeleteUser(ctx context.Context, usr User) error
	}

	Service interface {
		CheckEmailUniqueness(ctx context.Context, email string, exclUsers ...User) error
		SignUpStudent(ctx context.Context, ns NewStudent) (User, error)
		SignUpTeacher(ctx context.Context, nt NewTeacher) (User, error)
		CreateAdmin(ctx context.Context, na NewAdmin) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		StudentsOf(ctx context.Context, teacher User) ([]User, error)
		Approve(ctx context.Context, usr User, a Approval) (User, error)
		UpdateStudent(ctx context.Context, usr User, us UpdateStudent) (User, error)
		UpdateTeacher(ctx context.Context, usr User, ut UpdateTeacher) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, usr User) error
	}

	service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
	).CheckAndPanic()

	return &service{conf: conf, repo: repo, mailSvc: mailSvc}
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewFieldError("email", err)
		}
		return err
	}
	return nil
}

func (svc *service) create(ctx context.Context, usr User, pwd string) (User, error) {
	now := core.NowFunc().UTC()
	usr.CreatedAt = now
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// SignUpStudent creates a pending student account.
func (svc *service) SignUpStudent(ctx context.Context, ns NewStudent) (User, error) {
	return svc.create(ctx, User{
		Role:             RoleStudent,
		Name:             ns.Name,
		Email:            ns.Email,
		Phone:            ns.Phone,
		Standard:         ns.Standard,
		Stream:           ns.Stream,
		EnrolledSubjects: ns.Subjects,
	}, ns.Password)
}

// SignUpTeacher creates a pending teacher account.
func (svc *service) SignUpTeacher(ctx context.Context, nt NewTeacher) (User, error) {
	return svc.create(ctx, User{
		Role:          RoleTeacher,
		Name:          nt.Name,
		Email:         nt.Email,
		Phone:         nt.Phone,
		ClassesTaught: nt.Classes,
		Subjects:      nt.Subjects,
	}, nt.Password)
}

// CreateAdmin creates an admin account; admins need no approval.
func (svc *service) CreateAdmin(ctx context.Context, na NewAdmin) (User, error) {
	return svc.create(ctx, User{
		Role:       RoleAdmin,
		Name:       na.Name,
		Email:      na.Email,
		IsApproved: true,
	}, na.Password)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter, orderings...)
}

// StudentsOf returns the approved students of the classes taught by teacher, sorted by class then name.
func (svc *service) StudentsOf(ctx context.Context, teacher User) ([]User, error) {
	standards := teacher.TaughtStandards()
	if !teacher.IsTeacher() || len(standards) == 0 {
		return []User{}, nil
	}
	approved := true
	return svc.repo.FilterUsers(
		ctx,
		QueryFilter{Roles: []string{RoleStudent}, IsApproved: &approved, Standards: standards},
		core.DBOrdering{Field: "standard", Ascending: true},
		core.DBOrdering{Field: "name", Ascending: true},
	)
}

// approve applies the approval defaults to usr and saves it.
func (svc *service) approve(ctx context.Context, usr User, a Approval) (User, error) {
	if usr.IsApproved {
		return User{}, ErrAlreadyApproved
	}

	switch usr.Role {
	case RoleStudent:
		usr.MonthlyFeeAmount = a.MonthlyFeeAmount
		if usr.MonthlyFeeAmount <= 0 {
			usr.MonthlyFeeAmount = svc.conf.Billing.DefaultFeeAmount
		}
	case RoleTeacher:
		usr.SalaryType = a.SalaryType
		if usr.SalaryType == "" {
			usr.SalaryType = SalaryFixed
		}
		switch usr.SalaryType {
		case SalaryCommission:
			usr.Salary = 0
		default:
			usr.Salary = a.Salary
			if usr.Salary <= 0 {
				usr.Salary = svc.conf.Billing.ApprovalSalary
			}
		}
	default:
		return User{}, ErrNotApprovable
	}

	usr.IsApproved = true
	usr.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.ApproveUser(ctx, usr)
}

// Approve moves a pending student or teacher to approved, with its billing defaults,
// and notifies them by email.
func (svc *service) Approve(ctx context.Context, usr User, a Approval) (User, error) {
	usr, err := svc.approve(ctx, usr, a)
	if err != nil {
		return User{}, err
	}
	go svc.sendApprovalMail(usr)
	return usr, nil
}

func (svc *service) sendApprovalMail(usr User) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your account has been approved",
		TemplateName: "account_approved",
		TemplateData: usr,
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) UpdateStudent(ctx context.Context, usr User, us UpdateStudent) (User, error) {
	usr.Name = us.Name
	usr.Phone = us.Phone
	usr.Standard = us.Standard
	usr.Stream = us.Stream
	usr.EnrolledSubjects = us.Subjects
	usr.MonthlyFeeAmount = us.MonthlyFeeAmount
	usr.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) UpdateTeacher(ctx context.Context, usr User, ut UpdateTeacher) (User, error) {
	usr.Name = ut.Name
	usr.Phone = ut.Phone
	usr.ClassesTaught = ut.Classes
	usr.Subjects = ut.Subjects
	usr.SalaryType = ut.SalaryType
	usr.Salary = ut.Salary
	usr.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(core.NowFunc().UTC())
	return svc.repo.UpdateUser(ctx, usr)
}

// Delete removes usr and its dependent records.
func (svc *service) Delete(ctx context.Context, usr User) error {
	return svc.repo.DeleteUser(ctx, usr)
}
