package enrollment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolhub/core"
)

var (
	studentStandardTag  = "student_standard"
	teacherStandardTag  = "teacher_standard"
	unknownStandardText = "unknown class"

	streamRequiredTag  = "stream_required"
	streamRequiredText = "please select a stream"

	subjectsRequiredTag  = "subjects_required"
	subjectsRequiredText = "please select at least one subject"

	subjectsAllowedTag  = "subjects_allowed"
	subjectsAllowedText = "one or more subjects are not offered for this class"

	juniorExclusiveTag  = "junior_exclusive"
	juniorExclusiveText = "a junior class cannot be combined with other classes"
)

// InitValidators registers the enrollment validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(studentStructValidation, Student{})
	validate.RegisterStructValidation(teacherStructValidation, Teacher{})

	core.RegisterCustomTranslation(validate, translator, studentStandardTag, unknownStandardText)
	core.RegisterCustomTranslation(validate, translator, teacherStandardTag, unknownStandardText)
	core.RegisterCustomTranslation(validate, translator, streamRequiredTag, streamRequiredText)
	core.RegisterCustomTranslation(validate, translator, subjectsRequiredTag, subjectsRequiredText)
	core.RegisterCustomTranslation(validate, translator, subjectsAllowedTag, subjectsAllowedText)
	core.RegisterCustomTranslation(validate, translator, juniorExclusiveTag, juniorExclusiveText)
}

// studentStructValidation checks the class, stream and subjects of a student against the catalog.
// Student is expected to be normalized.
func studentStructValidation(sl validator.StructLevel) {
	s := sl.Current().Interface().(Student)
	if s.Standard == "" {
		return // reported by `required`
	}
	if !IsStudentStandard(s.Standard) {
		sl.ReportError(s.Standard, "standard", "Standard", studentStandardTag, "")
		return
	}
	if IsSenior(s.Standard) && !IsStream(s.Stream) {
		sl.ReportError(s.Stream, "stream", "Stream", streamRequiredTag, "")
		return
	}
	if s.Standard == StandardCS {
		return
	}

	validateSubjects(sl, s.Subjects, ResolveSubjects(s.Standard, s.Stream, RoleStudent), "enrolled_subjects")
}

// teacherStructValidation checks the classes and subjects of a teacher against the catalog.
// Teacher is expected to be normalized.
func teacherStructValidation(sl validator.StructLevel) {
	t := sl.Current().Interface().(Teacher)
	if len(t.Classes) == 0 {
		return // reported by `required`
	}

	var hasJunior bool
	for _, c := range t.Classes {
		if !IsTeacherStandard(c) {
			sl.ReportError(t.Classes, "classes_taught", "Classes", teacherStandardTag, "")
			return
		}
		if IsJunior(c, RoleTeacher) {
			hasJunior = true
		}
	}
	if hasJunior && len(t.Classes) > 1 {
		sl.ReportError(t.Classes, "classes_taught", "Classes", juniorExclusiveTag, "")
		return
	}
	if SubjectsLocked(t.Classes) {
		return
	}

	validateSubjects(sl, t.Subjects, ResolveTeacherSubjects(t.Classes), "subjects")
}

func validateSubjects(sl validator.StructLevel, subjects, allowed []string, field string) {
	if len(subjects) == 0 {
		sl.ReportError(subjects, field, "Subjects", subjectsRequiredTag, "")
		return
	}
	for _, s := range subjects {
		if !core.StringInSlice(s, allowed) {
			sl.ReportError(subjects, field, "Subjects", subjectsAllowedTag, "")
			return
		}
	}
}
