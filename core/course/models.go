// Package course manages the video courses published by admins to guests and students.
package course

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/enrollment"
	"github.com/trezcool/schoolhub/core/user"
)

const TargetGuest = "Guest"

var (
	// subjects a senior course can target
	subjects = []string{
		"Physics", "Chemistry", "Mathematics", "Biology",
		"Accountancy", "Business Studies", "Economics",
		"History", "Geography", "Political Science",
		"English", "Hindi", "Computer Science",
	}

	targets = buildTargets()

	courseTargetTag  = "course_target"
	courseTargetText = "unknown course audience"
)

func buildTargets() []string {
	t := []string{TargetGuest}
	for _, std := range enrollment.GetCatalog().StudentStandards {
		if std != enrollment.StandardCS && !enrollment.IsSenior(std) {
			t = append(t, std)
		}
	}
	for _, std := range []string{enrollment.Standard11th, enrollment.Standard12th} {
		for _, s := range subjects {
			t = append(t, std+" "+s)
		}
	}
	return append(t, enrollment.StandardCS)
}

// Targets returns every audience a course can be published to.
func Targets() []string {
	cp := make([]string, len(targets))
	copy(cp, targets)
	return cp
}

// StudentTargets returns the course audiences a student belongs to:
// their class for CS and junior students, one per enrolled subject for senior students.
func StudentTargets(student user.User) []string {
	switch {
	case !student.IsStudent() || student.Standard == "":
		return nil
	case student.Standard == enrollment.StandardCS:
		return []string{enrollment.StandardCS}
	case !enrollment.IsSenior(student.Standard),
		core.StringInSlice(enrollment.AllSubjects, student.EnrolledSubjects):
		return []string{student.Standard}
	}
	t := make([]string, 0, len(student.EnrolledSubjects))
	for _, s := range student.EnrolledSubjects {
		t = append(t, student.Standard+" "+s)
	}
	return t
}

type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	VideoID   string `json:"video_id"`
	Thumbnail string `json:"thumbnail"`
}

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Thumbnail   string    `json:"thumbnail"`
	Target      string    `json:"target"`
	Playlist    []Video   `json:"playlist"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewCourse contains information needed to publish a course.
// Title defaults to the title of the first video.
type NewCourse struct {
	Title       string   `json:"title" form:"title"`
	Description string   `json:"description" form:"description"`
	Target      string   `json:"target" form:"target" validate:"required,course_target"`
	Links       []string `json:"links" form:"links"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Target = core.CleanString(nc.Target)
	if nc.Target == "" {
		nc.Target = TargetGuest
	}
	nc.Links = core.CleanStrings(nc.Links)
	return validate.Struct(nc)
}

// InitValidators registers the course validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseTargetTag, func(fl validator.FieldLevel) bool {
		return core.StringInSlice(fl.Field().String(), targets)
	})
	core.RegisterCustomTranslation(validate, translator, courseTargetTag, courseTargetText)
}
