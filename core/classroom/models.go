// Package classroom holds the day to day records of a class: notices, homework and materials,
// attendance, leaves and exam results.
package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core"
)

type (
	Audience         string
	AssignmentKind   string
	AttendanceStatus string
	LeaveKind        string
)

const (
	AudienceAll      Audience = "all"
	AudienceStudents Audience = "students"
	AudienceTeachers Audience = "teachers"

	KindHomework AssignmentKind = "homework"
	KindMaterial AssignmentKind = "material"

	Present AttendanceStatus = "Present"
	Absent  AttendanceStatus = "Absent"

	LeaveStudent LeaveKind = "student"
	LeaveTeacher LeaveKind = "teacher"

	ClassUpdate   = "Class Update"
	LeaveInformed = "Informed"

	DateLayout = "2006-01-02"

	attendanceDateLayout = "02-01-2006"
)

func (k AssignmentKind) IsValid() bool { return k == KindHomework || k == KindMaterial }

// ParseDate parses a YYYY-MM-DD date, today when s is empty.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return Today(), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parsing date")
	}
	return t, nil
}

// Today returns the current day at UTC midnight.
func Today() time.Time {
	y, m, d := core.NowFunc().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Notice is a school wide announcement posted by an admin.
type Notice struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Audience  Audience  `json:"audience"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewNotice struct {
	Title    string   `json:"title" validate:"required"`
	Message  string   `json:"message" validate:"required"`
	Audience Audience `json:"audience" validate:"omitempty,oneof=all students teachers"`
}

func (nn *NewNotice) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	if nn.Audience == "" {
		nn.Audience = AudienceAll
	}
	return validate.Struct(nn)
}

// ClassNotice is an update posted by a teacher to one of their classes.
type ClassNotice struct {
	ID          string    `json:"id"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	ClassID     string    `json:"class_id"`
	Subject     string    `json:"subject"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type NewClassNotice struct {
	ClassID string `json:"class_id" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
}

func (nc *NewClassNotice) Validate(validate *validator.Validate) error {
	nc.ClassID = core.CleanString(nc.ClassID)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Title = core.CleanString(nc.Title)
	nc.Message = core.CleanString(nc.Message)
	return validate.Struct(nc)
}

// Assignment is a homework or a study material shared by a teacher.
type Assignment struct {
	ID             string         `json:"id"`
	Kind           AssignmentKind `json:"kind"`
	TeacherID      string         `json:"teacher_id"`
	TeacherName    string         `json:"teacher_name"`
	ClassID        string         `json:"class_id"`
	Subject        string         `json:"subject"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Link           string         `json:"link"`
	AttachmentName string         `json:"attachment_name"`
	Date           time.Time      `json:"date"`
	CreatedAt      time.Time      `json:"created_at"` // UTC
}

type NewAssignment struct {
	ClassID     string `json:"class_id" form:"class_id" validate:"required"`
	Subject     string `json:"subject" form:"subject" validate:"required"`
	Title       string `json:"title" form:"title" validate:"required"`
	Description string `json:"description" form:"description"`
	Link        string `json:"link" form:"link" validate:"omitempty,url"`
	Date        string `json:"date" form:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.ClassID = core.CleanString(na.ClassID)
	na.Subject = core.CleanString(na.Subject)
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.Link = core.CleanString(na.Link)
	na.Date = core.CleanString(na.Date)
	return validate.Struct(na)
}

// Attendance is the roll call of a class for one subject and one day. It cannot change once submitted.
type Attendance struct {
	ID        string                      `json:"id"`
	ClassID   string                      `json:"class_id"`
	Subject   string                      `json:"subject"`
	Date      time.Time                   `json:"date"`
	TeacherID string                      `json:"teacher_id"`
	Records   map[string]AttendanceStatus `json:"records"` // by student id
	CreatedAt time.Time                   `json:"created_at"` // UTC
}

// AttendanceID returns the natural key of the attendance of class for subject on date.
func AttendanceID(class, subject string, date time.Time) string {
	return class + "_" + subject + "_" + date.Format(attendanceDateLayout)
}

type NewAttendance struct {
	ClassID string            `json:"class_id" validate:"required"`
	Subject string            `json:"subject" validate:"required"`
	Date    string            `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Records map[string]string `json:"records" validate:"required,min=1,dive,keys,required,endkeys,oneof=Present Absent"`
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.ClassID = core.CleanString(na.ClassID)
	na.Subject = core.CleanString(na.Subject)
	na.Date = core.CleanString(na.Date)
	return validate.Struct(na)
}

// DailyStatus is the attendance of one student for one subject and day.
type DailyStatus struct {
	AttendanceID string           `json:"attendance_id"`
	ClassID      string           `json:"class_id"`
	Subject      string           `json:"subject"`
	Date         time.Time        `json:"date"`
	Status       AttendanceStatus `json:"status"`
}

// Leave informs the school that a student or a teacher will be absent.
type Leave struct {
	ID        string    `json:"id"`
	Kind      LeaveKind `json:"kind"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	ClassID   string    `json:"class_id"`
	Reason    string    `json:"reason"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewLeave struct {
	Reason    string `json:"reason" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func (nl *NewLeave) Validate(validate *validator.Validate) error {
	nl.Reason = core.CleanString(nl.Reason)
	nl.StartDate = core.CleanString(nl.StartDate)
	nl.EndDate = core.CleanString(nl.EndDate)
	return validate.Struct(nl)
}

// ExamResult is the score of one student at one exam.
type ExamResult struct {
	ID          string    `json:"id"`
	ExamTitle   string    `json:"exam_title"`
	MaxScore    int       `json:"max_score"`
	ClassID     string    `json:"class_id"`
	Subject     string    `json:"subject"`
	TeacherID   string    `json:"teacher_id"`
	Date        time.Time `json:"date"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Score       int       `json:"score"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewExam publishes the scores of an exam, by student id.
type NewExam struct {
	ExamTitle string         `json:"exam_title" validate:"required"`
	MaxScore  int            `json:"max_score" validate:"required,gt=0"`
	ClassID   string         `json:"class_id" validate:"required"`
	Subject   string         `json:"subject" validate:"required"`
	Date      string         `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Scores    map[string]int `json:"scores" validate:"required,min=1,dive,keys,required,endkeys,gte=0"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.ExamTitle = core.CleanString(ne.ExamTitle)
	ne.ClassID = core.CleanString(ne.ClassID)
	ne.Subject = core.CleanString(ne.Subject)
	ne.Date = core.CleanString(ne.Date)
	return validate.Struct(ne)
}

// Filter narrows down listings. Empty fields are ignored.
type Filter struct {
	OwnerID   string   // teacher_id, or user_id for leaves
	StudentID string   // exam results only
	Classes   []string // any of
	Subject   string
	Audiences []Audience // notices only, any of
	LeaveKind LeaveKind
	Kind      AssignmentKind
	Date      time.Time // attendance only
}
