package enrollment

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolhub/core"
)

// ResolveSubjects returns the subjects selectable by role for standard (and stream, for senior classes).
// An empty result means that no subject applies, or, for a senior class without a stream,
// that a stream must be selected first.
func ResolveSubjects(standard, stream string, role Role) []string {
	switch role {
	case RoleStudent:
		switch {
		case !IsStudentStandard(standard), standard == StandardCS:
			return []string{}
		case IsSenior(standard):
			return copyOf(streamSubjects[stream])
		default:
			return copyOf(juniorStudentSubjects)
		}
	case RoleTeacher:
		switch {
		case !IsTeacherStandard(standard), standard == StandardCS:
			return []string{}
		case IsJunior(standard, RoleTeacher):
			return []string{AllSubjects}
		default:
			return copyOf(teacherSubjects)
		}
	}
	return []string{}
}

// ResolveTeacherSubjects returns the subjects selectable by a teacher of classes.
func ResolveTeacherSubjects(classes []string) []string {
	if len(classes) == 0 {
		return []string{}
	}
	for _, c := range classes {
		if IsJunior(c, RoleTeacher) {
			return []string{AllSubjects}
		}
	}
	if len(classes) == 1 && classes[0] == StandardCS {
		return []string{}
	}
	return copyOf(teacherSubjects)
}

// SubjectsLocked reports whether the subjects of a teacher of classes are fixed by the catalog.
func SubjectsLocked(classes []string) bool {
	for _, c := range classes {
		if IsJunior(c, RoleTeacher) {
			return true
		}
	}
	return len(classes) == 1 && classes[0] == StandardCS
}

// Student is the enrollment part of a student record.
type Student struct {
	Standard string   `json:"standard" validate:"required"`
	Stream   string   `json:"stream"`
	Subjects []string `json:"enrolled_subjects"`
}

// Normalize cleans the selection and applies the catalog defaults:
// CS has no stream nor subjects, junior classes have no stream and default to "All Subjects".
func (s *Student) Normalize() {
	s.Standard = core.CleanString(s.Standard)
	s.Stream = core.CleanString(s.Stream)
	s.Subjects = core.CleanStrings(s.Subjects)

	switch {
	case s.Standard == StandardCS:
		s.Stream = StreamNA
		s.Subjects = []string{}
	case IsSenior(s.Standard):
		if s.Stream == "" {
			s.Stream = StreamNA
		}
	case IsStudentStandard(s.Standard):
		s.Stream = StreamNA
		if len(s.Subjects) == 0 {
			s.Subjects = []string{AllSubjects}
		}
	}
	if s.Subjects == nil {
		s.Subjects = []string{}
	}
}

// Teacher is the teaching-assignment part of a teacher record.
type Teacher struct {
	Classes  []string `json:"classes_taught" validate:"required,min=1"`
	Subjects []string `json:"subjects"`
}

// Normalize cleans the selection and applies the catalog defaults:
// junior classes lock subjects to "All Subjects", a CS-only teacher has no subjects.
func (t *Teacher) Normalize() {
	t.Classes = core.CleanStrings(t.Classes)
	t.Subjects = core.CleanStrings(t.Subjects)

	switch {
	case SubjectsLocked(t.Classes):
		t.Subjects = ResolveTeacherSubjects(t.Classes)
	default:
		subjects := make([]string, 0, len(t.Subjects))
		for _, s := range t.Subjects {
			if s != AllSubjects {
				subjects = append(subjects, s)
			}
		}
		t.Subjects = subjects
	}
}

// ValidateStudent normalizes and validates a student enrollment.
func ValidateStudent(validate *validator.Validate, s *Student) error {
	s.Normalize()
	return validate.Struct(s)
}

// ValidateTeacher normalizes and validates a teaching assignment.
func ValidateTeacher(validate *validator.Validate, t *Teacher) error {
	t.Normalize()
	return validate.Struct(t)
}
