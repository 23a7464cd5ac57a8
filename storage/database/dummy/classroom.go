package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/schoolhub/core/classroom"
)

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db}
}

// notices

func (repo *classroomRepository) CreateNotice(_ context.Context, n classroom.Notice) (classroom.Notice, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.ID = newID()
	stored := n
	repo.db.notices[n.ID] = &stored
	return n, nil
}

func (repo *classroomRepository) DeleteNotice(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.notices[id]; !ok {
		return classroom.ErrNotFound
	}
	delete(repo.db.notices, id)
	return nil
}

func (repo *classroomRepository) FilterNotices(_ context.Context, filter classroom.Filter) ([]classroom.Notice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	audiences := make([]string, 0, len(filter.Audiences))
	for _, a := range filter.Audiences {
		audiences = append(audiences, string(a))
	}

	notices := make([]classroom.Notice, 0)
	for _, n := range repo.db.notices {
		if matchesAny(string(n.Audience), audiences) {
			notices = append(notices, *n)
		}
	}
	sortNewest(notices, func(n classroom.Notice) time.Time { return n.CreatedAt })
	return notices, nil
}

// class notices

func (repo *classroomRepository) CreateClassNotice(_ context.Context, n classroom.ClassNotice) (classroom.ClassNotice, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.ID = newID()
	stored := n
	repo.db.classNotices[n.ID] = &stored
	return n, nil
}

func (repo *classroomRepository) FilterClassNotices(
	_ context.Context, filter classroom.Filter,
) ([]classroom.ClassNotice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	notices := make([]classroom.ClassNotice, 0)
	for _, n := range repo.db.classNotices {
		if (filter.OwnerID == "" || n.TeacherID == filter.OwnerID) && matchesAny(n.ClassID, filter.Classes) {
			notices = append(notices, *n)
		}
	}
	sortNewest(notices, func(n classroom.ClassNotice) time.Time { return n.CreatedAt })
	return notices, nil
}

// homework & materials

func (repo *classroomRepository) CreateAssignment(_ context.Context, a classroom.Assignment) (classroom.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = newID()
	stored := a
	repo.db.assignments[a.ID] = &stored
	return a, nil
}

func (repo *classroomRepository) GetAssignmentByID(
	_ context.Context, kind classroom.AssignmentKind, id string,
) (classroom.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok && a.Kind == kind {
		return *a, nil
	}
	return classroom.Assignment{}, classroom.ErrNotFound
}

func (repo *classroomRepository) DeleteAssignment(_ context.Context, kind classroom.AssignmentKind, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if a, ok := repo.db.assignments[id]; !ok || a.Kind != kind {
		return classroom.ErrNotFound
	}
	delete(repo.db.assignments, id)
	return nil
}

func (repo *classroomRepository) FilterAssignments(
	_ context.Context, filter classroom.Filter,
) ([]classroom.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]classroom.Assignment, 0)
	for _, a := range repo.db.assignments {
		switch {
		case filter.Kind != "" && a.Kind != filter.Kind,
			filter.OwnerID != "" && a.TeacherID != filter.OwnerID,
			filter.Subject != "" && a.Subject != filter.Subject,
			!matchesAny(a.ClassID, filter.Classes):
			continue
		}
		assignments = append(assignments, *a)
	}
	sortNewest(assignments, func(a classroom.Assignment) time.Time { return a.CreatedAt })
	return assignments, nil
}

// attendance

func cloneAttendance(a *classroom.Attendance) classroom.Attendance {
	cp := *a
	cp.Records = make(map[string]classroom.AttendanceStatus, len(a.Records))
	for k, v := range a.Records {
		cp.Records[k] = v
	}
	return cp
}

func (repo *classroomRepository) CreateAttendance(_ context.Context, a classroom.Attendance) (classroom.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.attendance[a.ID]; ok {
		return classroom.Attendance{}, classroom.ErrAttendanceLocked
	}
	stored := cloneAttendance(&a)
	repo.db.attendance[a.ID] = &stored
	return a, nil
}

func (repo *classroomRepository) GetAttendanceByID(_ context.Context, id string) (classroom.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.attendance[id]; ok {
		return cloneAttendance(a), nil
	}
	return classroom.Attendance{}, classroom.ErrNotFound
}

func (repo *classroomRepository) FilterAttendance(
	_ context.Context, filter classroom.Filter,
) ([]classroom.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	roll := make([]classroom.Attendance, 0)
	for _, a := range repo.db.attendance {
		switch {
		case filter.OwnerID != "" && a.TeacherID != filter.OwnerID,
			filter.Subject != "" && a.Subject != filter.Subject,
			!filter.Date.IsZero() && !a.Date.Equal(filter.Date),
			!matchesAny(a.ClassID, filter.Classes):
			continue
		}
		roll = append(roll, cloneAttendance(a))
	}
	sort.SliceStable(roll, func(i, j int) bool {
		if !roll[i].Date.Equal(roll[j].Date) {
			return roll[i].Date.After(roll[j].Date)
		}
		return roll[i].CreatedAt.After(roll[j].CreatedAt)
	})
	return roll, nil
}

// leaves

func (repo *classroomRepository) CreateLeave(_ context.Context, l classroom.Leave) (classroom.Leave, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	l.ID = newID()
	stored := l
	repo.db.leaves[l.ID] = &stored
	return l, nil
}

func (repo *classroomRepository) FilterLeaves(_ context.Context, filter classroom.Filter) ([]classroom.Leave, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	leaves := make([]classroom.Leave, 0)
	for _, l := range repo.db.leaves {
		switch {
		case filter.LeaveKind != "" && l.Kind != filter.LeaveKind,
			filter.OwnerID != "" && l.UserID != filter.OwnerID,
			!matchesAny(l.ClassID, filter.Classes):
			continue
		}
		leaves = append(leaves, *l)
	}
	sortNewest(leaves, func(l classroom.Leave) time.Time { return l.CreatedAt })
	return leaves, nil
}

// exam results

func (repo *classroomRepository) CreateExamResults(
	_ context.Context, results []classroom.ExamResult,
) ([]classroom.ExamResult, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]classroom.ExamResult, 0, len(results))
	for _, r := range results {
		r.ID = newID()
		stored := r
		repo.db.examResults[r.ID] = &stored
		created = append(created, r)
	}
	return created, nil
}

func (repo *classroomRepository) FilterExamResults(
	_ context.Context, filter classroom.Filter,
) ([]classroom.ExamResult, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]classroom.ExamResult, 0)
	for _, r := range repo.db.examResults {
		switch {
		case filter.OwnerID != "" && r.TeacherID != filter.OwnerID,
			filter.StudentID != "" && r.StudentID != filter.StudentID,
			filter.Subject != "" && r.Subject != filter.Subject,
			!matchesAny(r.ClassID, filter.Classes):
			continue
		}
		results = append(results, *r)
	}
	sortNewest(results, func(r classroom.ExamResult) time.Time { return r.CreatedAt })
	return results, nil
}
