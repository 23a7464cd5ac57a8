package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/schoolhub/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func cloneCourse(c *course.Course) course.Course {
	cp := *c
	cp.Playlist = append([]course.Video(nil), c.Playlist...)
	return cp
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c.ID = newID()
	stored := cloneCourse(&c)
	repo.db.courses[c.ID] = &stored
	return c, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return cloneCourse(c), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) FilterCourses(_ context.Context, targets []string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if matchesAny(c.Target, targets) {
			courses = append(courses, cloneCourse(c))
		}
	}
	sortNewest(courses, func(c course.Course) time.Time { return c.CreatedAt })
	return courses, nil
}
