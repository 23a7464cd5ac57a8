// Package enrollment holds the school catalog (classes, streams, subjects)
// and the rules deciding which subjects a student or a teacher may select.
package enrollment

import "github.com/trezcool/schoolhub/core"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Standards
const (
	StandardCS   = "CS"
	StandardPrep = "Prep"
	Standard11th = "11th"
	Standard12th = "12th"

	TeacherStandardPrepTo2nd = "Prep to 2nd"
	TeacherStandard3rd       = "3rd"
)

// Streams
const (
	StreamNA       = "N/A"
	StreamScience  = "Science"
	StreamCommerce = "Commerce"
	StreamArts     = "Arts"
)

// Subjects
const (
	AllSubjects     = "All Subjects"
	ComputerScience = "Computer Science"
)

var (
	studentStandards = []string{
		StandardCS, StandardPrep, "1st", "2nd", "3rd", "4th", "5th",
		"6th", "7th", "8th", "9th", "10th", Standard11th, Standard12th,
	}
	teacherStandards = []string{
		TeacherStandardPrepTo2nd, TeacherStandard3rd, "4th", "5th",
		"6th", "7th", "8th", "9th", "10th", Standard11th, Standard12th, StandardCS,
	}
	seniorStandards        = []string{Standard11th, Standard12th}
	teacherJuniorStandards = []string{TeacherStandardPrepTo2nd, TeacherStandard3rd}

	streams        = []string{StreamScience, StreamCommerce, StreamArts}
	streamSubjects = map[string][]string{
		StreamScience:  {"Physics", "Chemistry", "Mathematics", "Economics", "English", ComputerScience},
		StreamCommerce: {"Accountancy", "Business Studies", "Economics", "English", ComputerScience},
		StreamArts:     {"History", "Political Science", "Geography", "Economics", "English", ComputerScience},
	}
	juniorStudentSubjects = []string{AllSubjects, ComputerScience}
	teacherSubjects       = []string{
		"Mathematics", "Physics", "Chemistry", "Biology",
		"English", "Hindi", "CS", "Science", "Social Science",
		"Accountancy", "Business Studies", "Economics",
		"History", "Geography", "Political Science",
	}
)

// Catalog is the read-only view of the lookup tables.
type Catalog struct {
	StudentStandards       []string            `json:"student_standards"`
	TeacherStandards       []string            `json:"teacher_standards"`
	SeniorStandards        []string            `json:"senior_standards"`
	TeacherJuniorStandards []string            `json:"teacher_junior_standards"`
	Streams                []string            `json:"streams"`
	StreamSubjects         map[string][]string `json:"stream_subjects"`
	JuniorStudentSubjects  []string            `json:"junior_student_subjects"`
	TeacherSubjects        []string            `json:"teacher_subjects"`
}

// GetCatalog returns a copy of the lookup tables.
func GetCatalog() Catalog {
	ss := make(map[string][]string, len(streamSubjects))
	for stream, subjects := range streamSubjects {
		ss[stream] = copyOf(subjects)
	}
	return Catalog{
		StudentStandards:       copyOf(studentStandards),
		TeacherStandards:       copyOf(teacherStandards),
		SeniorStandards:        copyOf(seniorStandards),
		TeacherJuniorStandards: copyOf(teacherJuniorStandards),
		Streams:                copyOf(streams),
		StreamSubjects:         ss,
		JuniorStudentSubjects:  copyOf(juniorStudentSubjects),
		TeacherSubjects:        copyOf(teacherSubjects),
	}
}

func IsStudentStandard(standard string) bool { return core.StringInSlice(standard, studentStandards) }
func IsTeacherStandard(standard string) bool { return core.StringInSlice(standard, teacherStandards) }
func IsStream(stream string) bool             { return core.StringInSlice(stream, streams) }

// IsSenior reports whether standard requires a stream.
func IsSenior(standard string) bool { return core.StringInSlice(standard, seniorStandards) }

// IsJunior reports whether standard has no subject specialization for role.
func IsJunior(standard string, role Role) bool {
	switch role {
	case RoleStudent:
		return IsStudentStandard(standard) && standard != StandardCS && !IsSenior(standard)
	case RoleTeacher:
		return core.StringInSlice(standard, teacherJuniorStandards)
	}
	return false
}

// StudentStandardsOf returns the student standards grouped under the teacher class.
func StudentStandardsOf(class string) []string {
	if class == TeacherStandardPrepTo2nd {
		return []string{StandardPrep, "1st", "2nd"}
	}
	if IsStudentStandard(class) {
		return []string{class}
	}
	return nil
}

// TeacherClassOf returns the teacher class covering the student standard.
func TeacherClassOf(standard string) string {
	switch standard {
	case StandardPrep, "1st", "2nd":
		return TeacherStandardPrepTo2nd
	}
	return standard
}

func copyOf(ss []string) []string {
	cp := make([]string, len(ss))
	copy(cp, ss)
	return cp
}
