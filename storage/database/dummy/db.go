// Package dummydb is an in-memory storage for tests and local development.
// Every table lives behind one lock, so multi-table writes are atomic.
package dummydb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/classroom"
	"github.com/trezcool/schoolhub/core/course"
	"github.com/trezcool/schoolhub/core/user"
)

type DB struct {
	sync.RWMutex

	users        map[string]*user.User
	records      map[string]*billing.Record
	notices      map[string]*classroom.Notice
	classNotices map[string]*classroom.ClassNotice
	assignments  map[string]*classroom.Assignment
	attendance   map[string]*classroom.Attendance
	leaves       map[string]*classroom.Leave
	examResults  map[string]*classroom.ExamResult
	courses      map[string]*course.Course
}

func Open() (*DB, error) {
	db := &DB{}
	db.Reset()
	return db, nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()

	db.users = make(map[string]*user.User)
	db.records = make(map[string]*billing.Record)
	db.notices = make(map[string]*classroom.Notice)
	db.classNotices = make(map[string]*classroom.ClassNotice)
	db.assignments = make(map[string]*classroom.Assignment)
	db.attendance = make(map[string]*classroom.Attendance)
	db.leaves = make(map[string]*classroom.Leave)
	db.examResults = make(map[string]*classroom.ExamResult)
	db.courses = make(map[string]*course.Course)
}

func newID() string {
	return uuid.New().String()
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	cp := make([]string, len(ss))
	copy(cp, ss)
	return cp
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func matchesAny(s string, values []string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// sortNewest sorts rows by creation time, newest first.
func sortNewest[T any](rows []T, createdAt func(T) time.Time) {
	sort.SliceStable(rows, func(i, j int) bool { return createdAt(rows[i]).After(createdAt(rows[j])) })
}
