package classroom

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/enrollment"
	"github.com/trezcool/schoolhub/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("record not found")
	ErrAttendanceLocked   = errors.New("attendance was already submitted for this class, subject and date")
	ErrNotTeachingClass   = errors.New("you do not teach this class")
	ErrNotTeachingSubject = errors.New("you do not teach this subject")
	ErrUnknownStudent     = errors.New("one or more students are not enrolled in this class and subject")
	ErrLinkAndAttachment  = errors.New("provide either a link or an attachment")
	ErrNoLeaveForAdmins   = errors.New("admins do not request leaves")
)

const attachmentsDir = "assignments"

type (
	Repository interface {
		CreateNotice(ctx context.Context, n Notice) (Notice, error)
		DeleteNotice(ctx context.Context, id string) error
		// FilterNotices uses Filter.Audiences, newest first.
		FilterNotices(ctx context.Context, filter Filter) ([]Notice, error)

		CreateClassNotice(ctx context.Context, n ClassNotice) (ClassNotice, error)
		// FilterClassNotices uses Filter.OwnerID and Filter.Classes, newest first.
		FilterClassNotices(ctx context.Context, filter Filter) ([]ClassNotice, error)

		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, kind AssignmentKind, id string) (Assignment, error)
		DeleteAssignment(ctx context.Context, kind AssignmentKind, id string) error
		// FilterAssignments uses Filter.Kind, Filter.OwnerID, Filter.Classes and Filter.Subject, newest first.
		FilterAssignments(ctx context.Context, filter Filter) ([]Assignment, error)

		// CreateAttendance returns ErrAttendanceLocked if an attendance with the same id exists.
		CreateAttendance(ctx context.Context, a Attendance) (Attendance, error)
		GetAttendanceByID(ctx context.Context, id string) (Attendance, error)
		// FilterAttendance uses Filter.OwnerID, Filter.Classes, Filter.Subject and Filter.Date, newest first.
		FilterAttendance(ctx context.Context, filter Filter) ([]Attendance, error)

		CreateLeave(ctx context.Context, l Leave) (Leave, error)
		// FilterLeaves uses Filter.LeaveKind, Filter.OwnerID and Filter.Classes, newest first.
		FilterLeaves(ctx context.Context, filter Filter) ([]Leave, error)

		// CreateExamResults inserts the results of one exam in one transaction.
		CreateExamResults(ctx context.Context, results []ExamResult) ([]ExamResult, error)
		// FilterExamResults uses Filter.OwnerID, Filter.StudentID, Filter.Classes and Filter.Subject, newest first.
		FilterExamResults(ctx context.Context, filter Filter) ([]ExamResult, error)
	}

	// Roster lists the students of a teacher.
	Roster interface {
		StudentsOf(ctx context.Context, teacher user.User) ([]user.User, error)
	}

	Service struct {
		repo   Repository
		roster Roster
		files  core.FileStore
	}
)

func NewService(repo Repository, roster Roster, files core.FileStore) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(roster, "roster"),
		vala.IsNotNil(files, "files"),
	).CheckAndPanic()

	return &Service{repo: repo, roster: roster, files: files}
}

// Notices

func (svc *Service) PostNotice(ctx context.Context, author user.User, nn NewNotice) (Notice, error) {
	return svc.repo.CreateNotice(ctx, Notice{
		Title:     nn.Title,
		Message:   nn.Message,
		Audience:  nn.Audience,
		CreatedBy: author.ID,
		CreatedAt: core.NowFunc().UTC(),
	})
}

func (svc *Service) DeleteNotice(ctx context.Context, id string) error {
	return svc.repo.DeleteNotice(ctx, id)
}

// Notices returns the notices addressed to usr. Admins read them all.
func (svc *Service) Notices(ctx context.Context, usr user.User) ([]Notice, error) {
	var filter Filter
	switch {
	case usr.IsStudent():
		filter.Audiences = []Audience{AudienceAll, AudienceStudents}
	case usr.IsTeacher():
		filter.Audiences = []Audience{AudienceAll, AudienceTeachers}
	}
	return svc.repo.FilterNotices(ctx, filter)
}

// Class notices

func (svc *Service) PostClassNotice(ctx context.Context, teacher user.User, nc NewClassNotice) (ClassNotice, error) {
	if err := checkTeaches(teacher, nc.ClassID, nc.Subject); err != nil {
		return ClassNotice{}, err
	}
	return svc.repo.CreateClassNotice(ctx, ClassNotice{
		TeacherID:   teacher.ID,
		TeacherName: teacher.Name,
		ClassID:     nc.ClassID,
		Subject:     nc.Subject,
		Title:       nc.Title,
		Message:     nc.Message,
		Type:        ClassUpdate,
		CreatedAt:   core.NowFunc().UTC(),
	})
}

// ClassNotices returns the notices posted by a teacher, or posted to the class of a student.
func (svc *Service) ClassNotices(ctx context.Context, usr user.User) ([]ClassNotice, error) {
	filter, ok := scopeFilter(usr)
	if !ok {
		return []ClassNotice{}, nil
	}
	return svc.repo.FilterClassNotices(ctx, filter)
}

// Homework & materials

// PostAssignment shares a homework or a material. attachment is optional and is saved in the file store.
func (svc *Service) PostAssignment(
	ctx context.Context, teacher user.User, kind AssignmentKind, na NewAssignment, attachment *core.File,
) (Assignment, error) {
	if !kind.IsValid() {
		return Assignment{}, errors.Errorf("invalid assignment kind %q", kind)
	}
	if err := checkTeaches(teacher, na.ClassID, na.Subject); err != nil {
		return Assignment{}, err
	}
	if attachment != nil && na.Link != "" {
		return Assignment{}, core.NewFieldError("link", ErrLinkAndAttachment)
	}

	date, err := ParseDate(na.Date)
	if err != nil {
		return Assignment{}, core.NewFieldError("date", err)
	}

	a := Assignment{
		Kind:        kind,
		TeacherID:   teacher.ID,
		TeacherName: teacher.Name,
		ClassID:     na.ClassID,
		Subject:     na.Subject,
		Title:       na.Title,
		Description: na.Description,
		Link:        na.Link,
		Date:        date,
		CreatedAt:   core.NowFunc().UTC(),
	}
	if attachment != nil {
		stored, err := svc.files.Save(ctx, attachmentsDir+"/"+string(kind), *attachment)
		if err != nil {
			return Assignment{}, errors.Wrap(err, "saving attachment")
		}
		a.Link = stored.URL
		a.AttachmentName = stored.Name
	}
	return svc.repo.CreateAssignment(ctx, a)
}

// Assignments returns the assignments of kind shared by a teacher, or shared to the class of a student.
func (svc *Service) Assignments(ctx context.Context, usr user.User, kind AssignmentKind, subject string) ([]Assignment, error) {
	filter, ok := scopeFilter(usr)
	if !ok {
		return []Assignment{}, nil
	}
	filter.Kind = kind
	filter.Subject = core.CleanString(subject)
	return svc.repo.FilterAssignments(ctx, filter)
}

// DeleteAssignment deletes an assignment. Teachers can only delete their own.
func (svc *Service) DeleteAssignment(ctx context.Context, usr user.User, kind AssignmentKind, id string) error {
	a, err := svc.repo.GetAssignmentByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if !usr.IsAdmin() && a.TeacherID != usr.ID {
		return core.ErrForbidden
	}
	return svc.repo.DeleteAssignment(ctx, kind, id)
}

// Attendance

// SubmitAttendance records the roll call of a class. Every student must belong to the class and subject.
// A roll call cannot be submitted twice.
func (svc *Service) SubmitAttendance(ctx context.Context, teacher user.User, na NewAttendance) (Attendance, error) {
	if err := checkTeaches(teacher, na.ClassID, na.Subject); err != nil {
		return Attendance{}, err
	}
	date, err := ParseDate(na.Date)
	if err != nil {
		return Attendance{}, core.NewFieldError("date", err)
	}

	id := AttendanceID(na.ClassID, na.Subject, date)
	if _, err = svc.repo.GetAttendanceByID(ctx, id); err == nil {
		return Attendance{}, ErrAttendanceLocked
	} else if errors.Cause(err) != ErrNotFound {
		return Attendance{}, errors.Wrap(err, "checking attendance")
	}

	students, err := svc.StudentsOf(ctx, teacher, na.ClassID, na.Subject)
	if err != nil {
		return Attendance{}, err
	}
	enrolled := make(map[string]struct{}, len(students))
	for _, s := range students {
		enrolled[s.ID] = struct{}{}
	}

	records := make(map[string]AttendanceStatus, len(na.Records))
	for studentID, status := range na.Records {
		if _, ok := enrolled[studentID]; !ok {
			return Attendance{}, core.NewFieldError("records", ErrUnknownStudent)
		}
		records[studentID] = AttendanceStatus(status)
	}

	return svc.repo.CreateAttendance(ctx, Attendance{
		ID:        id,
		ClassID:   na.ClassID,
		Subject:   na.Subject,
		Date:      date,
		TeacherID: teacher.ID,
		Records:   records,
		CreatedAt: core.NowFunc().UTC(),
	})
}

func (svc *Service) GetAttendance(ctx context.Context, class, subject string, date time.Time) (Attendance, error) {
	return svc.repo.GetAttendanceByID(ctx, AttendanceID(class, subject, date))
}

// Attendance returns the roll calls submitted by a teacher. Admins read them all.
func (svc *Service) Attendance(ctx context.Context, usr user.User, class, subject string) ([]Attendance, error) {
	filter := Filter{Subject: core.CleanString(subject)}
	if class = core.CleanString(class); class != "" {
		filter.Classes = []string{class}
	}
	switch {
	case usr.IsTeacher():
		filter.OwnerID = usr.ID
	case !usr.IsAdmin():
		return []Attendance{}, nil
	}
	return svc.repo.FilterAttendance(ctx, filter)
}

// StudentAttendance returns the daily status of a student, for every roll call of their class they are part of.
func (svc *Service) StudentAttendance(ctx context.Context, student user.User) ([]DailyStatus, error) {
	if !student.IsStudent() || student.Standard == "" {
		return []DailyStatus{}, nil
	}
	roll, err := svc.repo.FilterAttendance(ctx, Filter{Classes: []string{student.Standard}})
	if err != nil {
		return nil, err
	}

	statuses := make([]DailyStatus, 0, len(roll))
	for _, a := range roll {
		status, ok := a.Records[student.ID]
		if !ok {
			continue
		}
		statuses = append(statuses, DailyStatus{
			AttendanceID: a.ID,
			ClassID:      a.ClassID,
			Subject:      a.Subject,
			Date:         a.Date,
			Status:       status,
		})
	}
	return statuses, nil
}

// Leaves

// RequestLeave informs the school of an absence of usr.
func (svc *Service) RequestLeave(ctx context.Context, usr user.User, nl NewLeave) (Leave, error) {
	l := Leave{
		UserID:    usr.ID,
		UserName:  usr.Name,
		Reason:    nl.Reason,
		Status:    LeaveInformed,
		CreatedAt: core.NowFunc().UTC(),
	}
	switch {
	case usr.IsStudent():
		l.Kind = LeaveStudent
		l.ClassID = usr.Standard
	case usr.IsTeacher():
		l.Kind = LeaveTeacher
	default:
		return Leave{}, ErrNoLeaveForAdmins
	}

	var err error
	if l.StartDate, err = time.Parse(DateLayout, nl.StartDate); err != nil {
		return Leave{}, core.NewFieldError("start_date", err)
	}
	if l.EndDate, err = time.Parse(DateLayout, nl.EndDate); err != nil {
		return Leave{}, core.NewFieldError("end_date", err)
	}
	return svc.repo.CreateLeave(ctx, l)
}

// MyLeaves returns the leaves requested by usr.
func (svc *Service) MyLeaves(ctx context.Context, usr user.User) ([]Leave, error) {
	return svc.repo.FilterLeaves(ctx, Filter{OwnerID: usr.ID})
}

// Leaves returns the leaves usr has to know about:
// teacher leaves for admins, leaves of the students of their classes for teachers.
func (svc *Service) Leaves(ctx context.Context, usr user.User) ([]Leave, error) {
	switch {
	case usr.IsAdmin():
		return svc.repo.FilterLeaves(ctx, Filter{LeaveKind: LeaveTeacher})
	case usr.IsTeacher():
		standards := usr.TaughtStandards()
		if len(standards) == 0 {
			return []Leave{}, nil
		}
		return svc.repo.FilterLeaves(ctx, Filter{LeaveKind: LeaveStudent, Classes: standards})
	}
	return []Leave{}, nil
}

// Exam results

// PublishExam saves the scores of an exam, one result per student, as one batch.
func (svc *Service) PublishExam(ctx context.Context, teacher user.User, ne NewExam) ([]ExamResult, error) {
	if err := checkTeaches(teacher, ne.ClassID, ne.Subject); err != nil {
		return nil, err
	}
	date, err := ParseDate(ne.Date)
	if err != nil {
		return nil, core.NewFieldError("date", err)
	}

	students, err := svc.StudentsOf(ctx, teacher, ne.ClassID, ne.Subject)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.ID] = s.Name
	}

	now := core.NowFunc().UTC()
	results := make([]ExamResult, 0, len(ne.Scores))
	for studentID, score := range ne.Scores {
		name, ok := names[studentID]
		if !ok {
			return nil, core.NewFieldError("scores", ErrUnknownStudent)
		}
		results = append(results, ExamResult{
			ExamTitle:   ne.ExamTitle,
			MaxScore:    ne.MaxScore,
			ClassID:     ne.ClassID,
			Subject:     ne.Subject,
			TeacherID:   teacher.ID,
			Date:        date,
			StudentID:   studentID,
			StudentName: name,
			Score:       score,
			CreatedAt:   now,
		})
	}
	return svc.repo.CreateExamResults(ctx, results)
}

// ExamResults returns the results of a student, or the results published by a teacher. Admins read them all.
func (svc *Service) ExamResults(ctx context.Context, usr user.User) ([]ExamResult, error) {
	var filter Filter
	switch {
	case usr.IsStudent():
		filter.StudentID = usr.ID
	case usr.IsTeacher():
		filter.OwnerID = usr.ID
	}
	return svc.repo.FilterExamResults(ctx, filter)
}

// StudentsOf returns the approved students of class a teacher can grade or call for subject.
func (svc *Service) StudentsOf(ctx context.Context, teacher user.User, class, subject string) ([]user.User, error) {
	all, err := svc.roster.StudentsOf(ctx, teacher)
	if err != nil {
		return nil, errors.Wrap(err, "listing students")
	}
	standards := enrollment.StudentStandardsOf(class)

	students := make([]user.User, 0, len(all))
	for _, s := range all {
		if core.StringInSlice(s.Standard, standards) && takesSubject(s, subject) {
			students = append(students, s)
		}
	}
	return students, nil
}

func takesSubject(student user.User, subject string) bool {
	return subject == "" ||
		student.Standard == enrollment.StandardCS ||
		core.StringInSlice(enrollment.AllSubjects, student.EnrolledSubjects) ||
		core.StringInSlice(subject, student.EnrolledSubjects)
}

func checkTeaches(teacher user.User, class, subject string) error {
	if !teacher.Teaches(class) {
		return core.NewFieldError("class_id", ErrNotTeachingClass)
	}
	if len(teacher.Subjects) > 0 && !core.StringInSlice(subject, teacher.Subjects) {
		return core.NewFieldError("subject", ErrNotTeachingSubject)
	}
	return nil
}

// scopeFilter limits a listing to the records of a teacher, or to the classes of a student.
// Admins are not limited. ok is false when usr cannot see any record.
func scopeFilter(usr user.User) (filter Filter, ok bool) {
	switch {
	case usr.IsTeacher():
		filter.OwnerID = usr.ID
	case usr.IsStudent():
		filter.Classes = usr.VisibleClasses()
		if len(filter.Classes) == 0 {
			return filter, false
		}
	}
	return filter, true
}
