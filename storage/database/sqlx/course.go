package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/course"
)

var courseColumns = []string{"id", "title", "description", "thumbnail", "target", "playlist", "created_by", "created_at"}

type courseRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Thumbnail   string         `db:"thumbnail"`
	Target      string         `db:"target"`
	Playlist    types.JSONText `db:"playlist"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r courseRow) course() (course.Course, error) {
	c := course.Course{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Thumbnail:   r.Thumbnail,
		Target:      r.Target,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(r.Playlist, &c.Playlist); err != nil {
		return course.Course{}, errors.Wrap(err, "decoding playlist")
	}
	return c, nil
}

type courseRepository struct {
	db core.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	playlist, err := toJSON(c.Playlist)
	if err != nil {
		return course.Course{}, err
	}
	c.ID = newID()
	q := psql.Insert("courses").Columns(courseColumns...).
		Values(c.ID, c.Title, c.Description, c.Thumbnail, c.Target, playlist, c.CreatedBy, c.CreatedAt)
	if _, err = exec(ctx, repo.db, q); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	if err := get(ctx, repo.db, &row, psql.Select(courseColumns...).From("courses").Where(sq.Eq{"id": id})); err != nil {
		return course.Course{}, notFoundOr(err, course.ErrNotFound)
	}
	return row.course()
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	return execAffecting(ctx, repo.db, psql.Delete("courses").Where(sq.Eq{"id": id}), course.ErrNotFound)
}

func (repo *courseRepository) FilterCourses(ctx context.Context, targets []string) ([]course.Course, error) {
	q := psql.Select(courseColumns...).From("courses").OrderBy("created_at DESC")
	if len(targets) > 0 {
		q = q.Where(sq.Eq{"target": targets})
	}

	var rows []courseRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		c, err := r.course()
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, nil
}
