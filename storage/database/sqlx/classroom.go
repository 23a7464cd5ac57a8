package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/classroom"
)

var (
	noticeColumns      = []string{"id", "title", "message", "audience", "created_by", "created_at"}
	classNoticeColumns = []string{
		"id", "teacher_id", "teacher_name", "class_id", "subject", "title", "message", "type", "created_at",
	}
	assignmentColumns = []string{
		"id", "kind", "teacher_id", "teacher_name", "class_id", "subject",
		"title", "description", "link", "attachment_name", "date", "created_at",
	}
	attendanceColumns = []string{"id", "class_id", "subject", "date", "teacher_id", "records", "created_at"}
	leaveColumns      = []string{
		"id", "kind", "user_id", "user_name", "class_id", "reason", "start_date", "end_date", "status", "created_at",
	}
	examResultColumns = []string{
		"id", "exam_title", "max_score", "class_id", "subject", "teacher_id",
		"date", "student_id", "student_name", "score", "created_at",
	}
)

type (
	noticeRow struct {
		ID        string    `db:"id"`
		Title     string    `db:"title"`
		Message   string    `db:"message"`
		Audience  string    `db:"audience"`
		CreatedBy string    `db:"created_by"`
		CreatedAt time.Time `db:"created_at"`
	}

	classNoticeRow struct {
		ID          string    `db:"id"`
		TeacherID   string    `db:"teacher_id"`
		TeacherName string    `db:"teacher_name"`
		ClassID     string    `db:"class_id"`
		Subject     string    `db:"subject"`
		Title       string    `db:"title"`
		Message     string    `db:"message"`
		Type        string    `db:"type"`
		CreatedAt   time.Time `db:"created_at"`
	}

	assignmentRow struct {
		ID             string    `db:"id"`
		Kind           string    `db:"kind"`
		TeacherID      string    `db:"teacher_id"`
		TeacherName    string    `db:"teacher_name"`
		ClassID        string    `db:"class_id"`
		Subject        string    `db:"subject"`
		Title          string    `db:"title"`
		Description    string    `db:"description"`
		Link           string    `db:"link"`
		AttachmentName string    `db:"attachment_name"`
		Date           time.Time `db:"date"`
		CreatedAt      time.Time `db:"created_at"`
	}

	attendanceRow struct {
		ID        string         `db:"id"`
		ClassID   string         `db:"class_id"`
		Subject   string         `db:"subject"`
		Date      time.Time      `db:"date"`
		TeacherID string         `db:"teacher_id"`
		Records   types.JSONText `db:"records"`
		CreatedAt time.Time      `db:"created_at"`
	}

	leaveRow struct {
		ID        string    `db:"id"`
		Kind      string    `db:"kind"`
		UserID    string    `db:"user_id"`
		UserName  string    `db:"user_name"`
		ClassID   string    `db:"class_id"`
		Reason    string    `db:"reason"`
		StartDate time.Time `db:"start_date"`
		EndDate   time.Time `db:"end_date"`
		Status    string    `db:"status"`
		CreatedAt time.Time `db:"created_at"`
	}

	examResultRow struct {
		ID          string    `db:"id"`
		ExamTitle   string    `db:"exam_title"`
		MaxScore    int       `db:"max_score"`
		ClassID     string    `db:"class_id"`
		Subject     string    `db:"subject"`
		TeacherID   string    `db:"teacher_id"`
		Date        time.Time `db:"date"`
		StudentID   string    `db:"student_id"`
		StudentName string    `db:"student_name"`
		Score       int       `db:"score"`
		CreatedAt   time.Time `db:"created_at"`
	}
)

func (r attendanceRow) attendance() (classroom.Attendance, error) {
	a := classroom.Attendance{
		ID:        r.ID,
		ClassID:   r.ClassID,
		Subject:   r.Subject,
		Date:      r.Date,
		TeacherID: r.TeacherID,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(r.Records, &a.Records); err != nil {
		return classroom.Attendance{}, errors.Wrap(err, "decoding attendance records")
	}
	return a, nil
}

// whereClasses adds the filters shared by the classroom listings.
func whereClasses(q sq.SelectBuilder, filter classroom.Filter, ownerColumn string) sq.SelectBuilder {
	if filter.OwnerID != "" && ownerColumn != "" {
		q = q.Where(sq.Eq{ownerColumn: filter.OwnerID})
	}
	if len(filter.Classes) > 0 {
		q = q.Where(sq.Eq{"class_id": filter.Classes})
	}
	if filter.Subject != "" {
		q = q.Where(sq.Eq{"subject": filter.Subject})
	}
	return q
}

type classroomRepository struct {
	db core.DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db core.DB) classroom.Repository {
	return &classroomRepository{db: db}
}

// notices

func (repo *classroomRepository) CreateNotice(ctx context.Context, n classroom.Notice) (classroom.Notice, error) {
	n.ID = newID()
	q := psql.Insert("notices").Columns(noticeColumns...).
		Values(n.ID, n.Title, n.Message, string(n.Audience), n.CreatedBy, n.CreatedAt)
	if _, err := exec(ctx, repo.db, q); err != nil {
		return classroom.Notice{}, errors.Wrap(err, "inserting notice")
	}
	return n, nil
}

func (repo *classroomRepository) DeleteNotice(ctx context.Context, id string) error {
	return execAffecting(ctx, repo.db, psql.Delete("notices").Where(sq.Eq{"id": id}), classroom.ErrNotFound)
}

func (repo *classroomRepository) FilterNotices(ctx context.Context, filter classroom.Filter) ([]classroom.Notice, error) {
	q := psql.Select(noticeColumns...).From("notices").OrderBy("created_at DESC")
	if len(filter.Audiences) > 0 {
		audiences := make([]string, 0, len(filter.Audiences))
		for _, a := range filter.Audiences {
			audiences = append(audiences, string(a))
		}
		q = q.Where(sq.Eq{"audience": audiences})
	}

	var rows []noticeRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting notices")
	}
	notices := make([]classroom.Notice, 0, len(rows))
	for _, r := range rows {
		notices = append(notices, classroom.Notice{
			ID:        r.ID,
			Title:     r.Title,
			Message:   r.Message,
			Audience:  classroom.Audience(r.Audience),
			CreatedBy: r.CreatedBy,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return notices, nil
}

// class notices

func (repo *classroomRepository) CreateClassNotice(ctx context.Context, n classroom.ClassNotice) (classroom.ClassNotice, error) {
	n.ID = newID()
	q := psql.Insert("class_notices").Columns(classNoticeColumns...).
		Values(n.ID, n.TeacherID, n.TeacherName, n.ClassID, n.Subject, n.Title, n.Message, n.Type, n.CreatedAt)
	if _, err := exec(ctx, repo.db, q); err != nil {
		return classroom.ClassNotice{}, errors.Wrap(err, "inserting class notice")
	}
	return n, nil
}

func (repo *classroomRepository) FilterClassNotices(
	ctx context.Context, filter classroom.Filter,
) ([]classroom.ClassNotice, error) {
	q := whereClasses(psql.Select(classNoticeColumns...).From("class_notices"), filter, "teacher_id").
		OrderBy("created_at DESC")

	var rows []classNoticeRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting class notices")
	}
	notices := make([]classroom.ClassNotice, 0, len(rows))
	for _, r := range rows {
		notices = append(notices, classroom.ClassNotice{
			ID:          r.ID,
			TeacherID:   r.TeacherID,
			TeacherName: r.TeacherName,
			ClassID:     r.ClassID,
			Subject:     r.Subject,
			Title:       r.Title,
			Message:     r.Message,
			Type:        r.Type,
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}
	return notices, nil
}

// homework & materials

func (r assignmentRow) assignment() classroom.Assignment {
	return classroom.Assignment{
		ID:             r.ID,
		Kind:           classroom.AssignmentKind(r.Kind),
		TeacherID:      r.TeacherID,
		TeacherName:    r.TeacherName,
		ClassID:        r.ClassID,
		Subject:        r.Subject,
		Title:          r.Title,
		Description:    r.Description,
		Link:           r.Link,
		AttachmentName: r.AttachmentName,
		Date:           r.Date,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func (repo *classroomRepository) CreateAssignment(ctx context.Context, a classroom.Assignment) (classroom.Assignment, error) {
	a.ID = newID()
	q := psql.Insert("assignments").Columns(assignmentColumns...).Values(
		a.ID, string(a.Kind), a.TeacherID, a.TeacherName, a.ClassID, a.Subject,
		a.Title, a.Description, a.Link, a.AttachmentName, a.Date, a.CreatedAt,
	)
	if _, err := exec(ctx, repo.db, q); err != nil {
		return classroom.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo *classroomRepository) GetAssignmentByID(
	ctx context.Context, kind classroom.AssignmentKind, id string,
) (classroom.Assignment, error) {
	var row assignmentRow
	q := psql.Select(assignmentColumns...).From("assignments").Where(sq.Eq{"id": id, "kind": string(kind)})
	if err := get(ctx, repo.db, &row, q); err != nil {
		return classroom.Assignment{}, notFoundOr(err, classroom.ErrNotFound)
	}
	return row.assignment(), nil
}

func (repo *classroomRepository) DeleteAssignment(ctx context.Context, kind classroom.AssignmentKind, id string) error {
	q := psql.Delete("assignments").Where(sq.Eq{"id": id, "kind": string(kind)})
	return execAffecting(ctx, repo.db, q, classroom.ErrNotFound)
}

func (repo *classroomRepository) FilterAssignments(
	ctx context.Context, filter classroom.Filter,
) ([]classroom.Assignment, error) {
	q := whereClasses(psql.Select(assignmentColumns...).From("assignments"), filter, "teacher_id").
		OrderBy("created_at DESC")
	if filter.Kind != "" {
		q = q.Where(sq.Eq{"kind": string(filter.Kind)})
	}

	var rows []assignmentRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	assignments := make([]classroom.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.assignment())
	}
	return assignments, nil
}

// attendance

func (repo *classroomRepository) CreateAttendance(ctx context.Context, a classroom.Attendance) (classroom.Attendance, error) {
	records, err := toJSON(a.Records)
	if err != nil {
		return classroom.Attendance{}, err
	}
	q := psql.Insert("attendance").Columns(attendanceColumns...).
		Values(a.ID, a.ClassID, a.Subject, a.Date, a.TeacherID, records, a.CreatedAt)
	if _, err = exec(ctx, repo.db, q); err != nil {
		if isUniqueViolation(err) {
			return classroom.Attendance{}, classroom.ErrAttendanceLocked
		}
		return classroom.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return a, nil
}

func (repo *classroomRepository) GetAttendanceByID(ctx context.Context, id string) (classroom.Attendance, error) {
	var row attendanceRow
	if err := get(ctx, repo.db, &row, psql.Select(attendanceColumns...).From("attendance").Where(sq.Eq{"id": id})); err != nil {
		return classroom.Attendance{}, notFoundOr(err, classroom.ErrNotFound)
	}
	return row.attendance()
}

func (repo *classroomRepository) FilterAttendance(
	ctx context.Context, filter classroom.Filter,
) ([]classroom.Attendance, error) {
	q := whereClasses(psql.Select(attendanceColumns...).From("attendance"), filter, "teacher_id").
		OrderBy("date DESC", "created_at DESC")
	if !filter.Date.IsZero() {
		q = q.Where(sq.Eq{"date": filter.Date})
	}

	var rows []attendanceRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	roll := make([]classroom.Attendance, 0, len(rows))
	for _, r := range rows {
		a, err := r.attendance()
		if err != nil {
			return nil, err
		}
		roll = append(roll, a)
	}
	return roll, nil
}

// leaves

func (repo *classroomRepository) CreateLeave(ctx context.Context, l classroom.Leave) (classroom.Leave, error) {
	l.ID = newID()
	q := psql.Insert("leaves").Columns(leaveColumns...).Values(
		l.ID, string(l.Kind), l.UserID, l.UserName, l.ClassID, l.Reason, l.StartDate, l.EndDate, l.Status, l.CreatedAt,
	)
	if _, err := exec(ctx, repo.db, q); err != nil {
		return classroom.Leave{}, errors.Wrap(err, "inserting leave")
	}
	return l, nil
}

func (repo *classroomRepository) FilterLeaves(ctx context.Context, filter classroom.Filter) ([]classroom.Leave, error) {
	q := whereClasses(psql.Select(leaveColumns...).From("leaves"), filter, "user_id").OrderBy("created_at DESC")
	if filter.LeaveKind != "" {
		q = q.Where(sq.Eq{"kind": string(filter.LeaveKind)})
	}

	var rows []leaveRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting leaves")
	}
	leaves := make([]classroom.Leave, 0, len(rows))
	for _, r := range rows {
		leaves = append(leaves, classroom.Leave{
			ID:        r.ID,
			Kind:      classroom.LeaveKind(r.Kind),
			UserID:    r.UserID,
			UserName:  r.UserName,
			ClassID:   r.ClassID,
			Reason:    r.Reason,
			StartDate: r.StartDate,
			EndDate:   r.EndDate,
			Status:    r.Status,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return leaves, nil
}

// exam results

func (repo *classroomRepository) CreateExamResults(
	ctx context.Context, results []classroom.ExamResult,
) ([]classroom.ExamResult, error) {
	if len(results) == 0 {
		return []classroom.ExamResult{}, nil
	}
	for i := range results {
		results[i].ID = newID()
	}

	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := psql.Insert("exam_results").Columns(examResultColumns...)
		for _, r := range results {
			q = q.Values(
				r.ID, r.ExamTitle, r.MaxScore, r.ClassID, r.Subject, r.TeacherID,
				r.Date, r.StudentID, r.StudentName, r.Score, r.CreatedAt,
			)
		}
		_, err := exec(ctx, tx, q)
		return errors.Wrap(err, "inserting exam results")
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (repo *classroomRepository) FilterExamResults(
	ctx context.Context, filter classroom.Filter,
) ([]classroom.ExamResult, error) {
	q := whereClasses(psql.Select(examResultColumns...).From("exam_results"), filter, "teacher_id").
		OrderBy("created_at DESC", "student_name ASC")
	if filter.StudentID != "" {
		q = q.Where(sq.Eq{"student_id": filter.StudentID})
	}

	var rows []examResultRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting exam results")
	}
	results := make([]classroom.ExamResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, classroom.ExamResult{
			ID:          r.ID,
			ExamTitle:   r.ExamTitle,
			MaxScore:    r.MaxScore,
			ClassID:     r.ClassID,
			Subject:     r.Subject,
			TeacherID:   r.TeacherID,
			Date:        r.Date,
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Score:       r.Score,
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}
	return results, nil
}
