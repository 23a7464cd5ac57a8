package user_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/classroom"
	"github.com/trezcool/schoolhub/core/enrollment"
	"github.com/trezcool/schoolhub/core/user"
	"github.com/trezcool/schoolhub/services/email"
	"github.com/trezcool/schoolhub/services/logger"
	"github.com/trezcool/schoolhub/storage/database/dummy"
	"github.com/trezcool/schoolhub/tests"
)

type deps struct {
	conf       *core.Config
	db         *dummydb.DB
	repo       user.Repository
	svc        user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func setup(t *testing.T) deps {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	core.ParseEmailTemplates(conf, logger)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf.Auth)

	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewUserRepository(db)
	emailsvc.ResetSentMessages()

	return deps{
		conf:       conf,
		db:         db,
		repo:       repo,
		svc:        user.NewServiceMock(conf, repo, emailsvc.NewConsoleServiceMock(conf)),
		validate:   validate,
		translator: translator,
	}
}

func fieldErrors(t *testing.T, err error, translator ut.Translator) map[string]string {
	switch e := err.(type) {
	case validator.ValidationErrors:
		return core.TranslateErrors(e, translator)
	case *core.ValidationError:
		flds := make(map[string]string, len(e.Fields))
		for _, f := range e.Fields {
			flds[f.Field] = f.Error
		}
		return flds
	}
	t.Fatalf("unexpected error type %T: %v", err, err)
	return nil
}

func TestNewStudent_Validate(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	testutil.CreateStudent(t, d.repo, "Taken", "taken@gmail.com", "", "5th", nil, false)

	valid := func() user.NewStudent {
		return user.NewStudent{
			Contact: user.Contact{Name: "Asha Rao", Email: " Asha@Gmail.com ", Phone: "9876543210", Password: "gr8-schooldays"},
			Student: enrollment.Student{Standard: "11th", Stream: enrollment.StreamScience, Subjects: []string{"Physics"}},
		}
	}
	tests := []struct {
		name    string
		edit    func(ns *user.NewStudent)
		wantErr map[string]string
	}{
		{name: "valid", edit: func(ns *user.NewStudent) {}},
		{
			name:    "email domain",
			edit:    func(ns *user.NewStudent) { ns.Email = "asha@yahoo.com" },
			wantErr: map[string]string{"email": "email must be a @gmail.com address"},
		},
		{
			name:    "email taken",
			edit:    func(ns *user.NewStudent) { ns.Email = "taken@gmail.com" },
			wantErr: map[string]string{"email": user.ErrEmailExists.Error()},
		},
		{
			name:    "short phone",
			edit:    func(ns *user.NewStudent) { ns.Phone = "12345" },
			wantErr: map[string]string{"phone": "phone number must contain at least 10 characters"},
		},
		{
			name:    "short password",
			edit:    func(ns *user.NewStudent) { ns.Password = "abc12" },
			wantErr: map[string]string{"password": "password must contain at least 8 characters"},
		},
		{
			name:    "numeric password",
			edit:    func(ns *user.NewStudent) { ns.Password = "1234567890" },
			wantErr: map[string]string{"password": "password cannot be entirely numeric"},
		},
		{
			name:    "password like email",
			edit:    func(ns *user.NewStudent) { ns.Password = "asha@gmail.co" },
			wantErr: map[string]string{"password": "password cannot be similar to user attributes"},
		},
		{
			name:    "senior without stream",
			edit:    func(ns *user.NewStudent) { ns.Stream = "" },
			wantErr: map[string]string{"stream": "please select a stream"},
		},
		{
			name: "missing fields",
			edit: func(ns *user.NewStudent) { *ns = user.NewStudent{} },
			wantErr: map[string]string{
				"name":     "this field is required",
				"email":    "this field is required",
				"phone":    "this field is required",
				"password": "this field is required",
				"standard": "this field is required",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := valid()
			tt.edit(&ns)
			err := ns.Validate(ctx, d.validate, d.svc)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.Equal(t, "asha@gmail.com", ns.Email)
				return
			}
			assert.Equal(t, tt.wantErr, fieldErrors(t, err, d.translator))
		})
	}
}

func TestNewTeacher_Validate(t *testing.T) {
	d := setup(t)

	nt := user.NewTeacher{
		Contact: user.Contact{Name: "Ravi Kumar", Email: "ravi@gmail.com", Phone: "9876543210", Password: "chalk&board"},
		Teacher: enrollment.Teacher{Classes: []string{enrollment.TeacherStandard3rd}, Subjects: []string{"Physics"}},
	}
	require.NoError(t, nt.Validate(context.Background(), d.validate, d.svc))
	assert.Equal(t, []string{enrollment.AllSubjects}, nt.Subjects, "junior classes lock subjects")

	nt.Classes = []string{enrollment.TeacherStandard3rd, "10th"}
	err := nt.Validate(context.Background(), d.validate, d.svc)
	assert.Equal(t,
		map[string]string{"classes_taught": "a junior class cannot be combined with other classes"},
		fieldErrors(t, err, d.translator))
}

func TestUpdateTeacher_Validate(t *testing.T) {
	d := setup(t)
	teacher := testutil.CreateTeacher(t, d.repo, "Ravi", "ravi@gmail.com", "", []string{"10th"}, []string{"Physics"}, true)

	upd := user.UpdateTeacher{Name: "Ravi K", SalaryType: user.SalaryFixed, Teacher: teacher.Assignment()}
	err := upd.Validate(teacher, d.validate)
	assert.Equal(t, map[string]string{"salary": "salary is required for fixed salary teachers"}, fieldErrors(t, err, d.translator))

	upd.SalaryType = user.SalaryCommission
	upd.Salary = 1000
	require.NoError(t, upd.Validate(teacher, d.validate))
	assert.Zero(t, upd.Salary, "commission teachers have no fixed salary")
	assert.Equal(t, teacher.Phone, upd.Phone)

	student := testutil.CreateStudent(t, d.repo, "Asha", "asha@gmail.com", "", "5th", nil, true)
	assert.Equal(t, user.ErrRoleMismatch, upd.Validate(student, d.validate))
}

func TestService_SignUp(t *testing.T) {
	d := setup(t)
	ctx := context.Background()

	student, err := d.svc.SignUpStudent(ctx, user.NewStudent{
		Contact: user.Contact{Name: "Asha", Email: "asha@gmail.com", Phone: "9876543210", Password: "gr8-schooldays"},
		Student: enrollment.Student{Standard: "5th", Stream: enrollment.StreamNA, Subjects: []string{enrollment.AllSubjects}},
	})
	require.NoError(t, err)
	assert.False(t, student.IsApproved, "students wait for approval")
	assert.Equal(t, user.RoleStudent, student.Role)
	assert.NoError(t, student.CheckPassword("gr8-schooldays"))

	teacher, err := d.svc.SignUpTeacher(ctx, user.NewTeacher{
		Contact: user.Contact{Name: "Ravi", Email: "ravi@gmail.com", Phone: "9876543210", Password: "chalk&board"},
		Teacher: enrollment.Teacher{Classes: []string{"10th"}, Subjects: []string{"Physics"}},
	})
	require.NoError(t, err)
	assert.False(t, teacher.IsApproved, "teachers wait for approval")

	admin, err := d.svc.CreateAdmin(ctx, user.NewAdmin{Name: "Root", Email: "root@school.in", Password: "keep-it-safe"})
	require.NoError(t, err)
	assert.True(t, admin.IsApproved, "admins need no approval")

	_, err = d.svc.SignUpStudent(ctx, user.NewStudent{
		Contact: user.Contact{Name: "Asha", Email: "asha@gmail.com", Password: "gr8-schooldays"},
	})
	assert.Equal(t, user.ErrEmailExists, err)
}

func TestService_Approve(t *testing.T) {
	d := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, d.repo, "Asha", "asha@gmail.com", "", "5th", nil, false)
	kiran := testutil.CreateStudent(t, d.repo, "Kiran", "kiran@gmail.com", "", "9th", nil, false)
	fixed := testutil.CreateTeacher(t, d.repo, "Ravi", "ravi@gmail.com", "", []string{"10th"}, []string{"Physics"}, false)
	commission := testutil.CreateTeacher(t, d.repo, "Meena", "meena@gmail.com", "", []string{"9th"}, []string{"Hindi"}, false)
	admin := testutil.CreateAdmin(t, d.repo, "Root", "root@school.in", "")

	tests := []struct {
		name       string
		usr        user.User
		approval   user.Approval
		wantErr    error
		wantFee    int64
		wantSalary int64
		wantType   string
	}{
		{name: "student defaults", usr: student, wantFee: d.conf.Billing.DefaultFeeAmount},
		{name: "already approved", usr: student, wantErr: user.ErrAlreadyApproved},
		{name: "student fee", usr: kiran, approval: user.Approval{MonthlyFeeAmount: 3000}, wantFee: 3000},
		{name: "fixed teacher", usr: fixed, approval: user.Approval{Salary: 20000}, wantSalary: 20000, wantType: user.SalaryFixed},
		{
			name: "commission teacher", usr: commission,
			approval: user.Approval{SalaryType: user.SalaryCommission, Salary: 20000}, wantType: user.SalaryCommission,
		},
		{name: "admin", usr: admin, wantErr: user.ErrAlreadyApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := d.svc.GetByID(ctx, tt.usr.ID)
			require.NoError(t, err)

			approved, err := d.svc.Approve(ctx, usr, tt.approval)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, approved.IsApproved)
			assert.Equal(t, tt.wantFee, approved.MonthlyFeeAmount)
			assert.Equal(t, tt.wantSalary, approved.Salary)
			assert.Equal(t, tt.wantType, approved.SalaryType)
			assert.Len(t, emailsvc.SentTo(usr.Email), 1, "approval email")
		})
	}

	t.Run("stale copy", func(t *testing.T) {
		// an approval racing with another one must not apply twice
		_, err := d.svc.Approve(ctx, student, user.Approval{MonthlyFeeAmount: 100})
		assert.Equal(t, user.ErrAlreadyApproved, err)
	})
}

func TestService_StudentsOf(t *testing.T) {
	d := setup(t)
	ctx := context.Background()

	prep := testutil.CreateStudent(t, d.repo, "Zara", "zara@gmail.com", "", enrollment.StandardPrep, nil, true)
	second := testutil.CreateStudent(t, d.repo, "Arjun", "arjun@gmail.com", "", "2nd", nil, true)
	testutil.CreateStudent(t, d.repo, "Pending", "pending@gmail.com", "", "1st", nil, false)
	testutil.CreateStudent(t, d.repo, "Other", "other@gmail.com", "", "3rd", nil, true)
	teacher := testutil.CreateTeacher(t, d.repo, "Ravi", "ravi@gmail.com", "", []string{enrollment.TeacherStandardPrepTo2nd}, nil, true)

	students, err := d.svc.StudentsOf(ctx, teacher)
	require.NoError(t, err)
	if assert.Len(t, students, 2) {
		assert.Equal(t, second.ID, students[0].ID, "sorted by class")
		assert.Equal(t, prep.ID, students[1].ID)
	}

	students, err = d.svc.StudentsOf(ctx, prep)
	require.NoError(t, err)
	assert.Empty(t, students, "only teachers have students")
}

func TestService_Delete(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	billingRepo := dummydb.NewBillingRepository(d.db)
	classRepo := dummydb.NewClassroomRepository(d.db)

	student := testutil.CreateStudent(t, d.repo, "Asha", "asha@gmail.com", "", "10th", nil, true)
	other := testutil.CreateStudent(t, d.repo, "Arjun", "arjun@gmail.com", "", "10th", nil, true)
	teacher := testutil.CreateTeacher(t, d.repo, "Ravi", "ravi@gmail.com", "", []string{"10th"}, []string{"Physics"}, true)

	testutil.CreateRecord(t, billingRepo, student, billing.KindFee, "Tuition Fee - March 2025", 5000)
	kept := testutil.CreateRecord(t, billingRepo, other, billing.KindFee, "Tuition Fee - March 2025", 5000)
	testutil.CreateRecord(t, billingRepo, teacher, billing.KindSalary, "Salary - March 2025", 15000)

	_, err := classRepo.CreateExamResults(ctx, []classroom.ExamResult{
		{ExamTitle: "Unit 1", MaxScore: 50, ClassID: "10th", Subject: "Physics", TeacherID: teacher.ID, StudentID: student.ID, Score: 40},
		{ExamTitle: "Unit 1", MaxScore: 50, ClassID: "10th", Subject: "Physics", TeacherID: teacher.ID, StudentID: other.ID, Score: 35},
	})
	require.NoError(t, err)
	_, err = classRepo.CreateAssignment(ctx, classroom.Assignment{
		Kind: classroom.KindHomework, TeacherID: teacher.ID, ClassID: "10th", Subject: "Physics", Title: "Ch. 1",
	})
	require.NoError(t, err)
	_, err = classRepo.CreateAttendance(ctx, classroom.Attendance{
		ID: "10th_Physics_01-03-2025", ClassID: "10th", Subject: "Physics", TeacherID: teacher.ID,
		Records: map[string]classroom.AttendanceStatus{student.ID: classroom.Present},
	})
	require.NoError(t, err)

	// student: fees and exam results go
	require.NoError(t, d.svc.Delete(ctx, student))
	_, err = d.svc.GetByID(ctx, student.ID)
	assert.Equal(t, user.ErrNotFound, err)

	fees, err := billingRepo.FilterRecords(ctx, billing.QueryFilter{Kind: billing.KindFee})
	require.NoError(t, err)
	if assert.Len(t, fees, 1) {
		assert.Equal(t, kept.ID, fees[0].ID)
	}
	results, err := classRepo.FilterExamResults(ctx, classroom.Filter{})
	require.NoError(t, err)
	if assert.Len(t, results, 1) {
		assert.Equal(t, other.ID, results[0].StudentID)
	}

	// teacher: homework and attendance go, salaries stay
	require.NoError(t, d.svc.Delete(ctx, teacher))
	homework, err := classRepo.FilterAssignments(ctx, classroom.Filter{Kind: classroom.KindHomework})
	require.NoError(t, err)
	assert.Empty(t, homework)
	roll, err := classRepo.FilterAttendance(ctx, classroom.Filter{})
	require.NoError(t, err)
	assert.Empty(t, roll)
	salaries, err := billingRepo.FilterRecords(ctx, billing.QueryFilter{Kind: billing.KindSalary})
	require.NoError(t, err)
	assert.Len(t, salaries, 1)

	assert.Equal(t, user.ErrNotFound, d.svc.Delete(ctx, teacher), "deleting twice")
}
