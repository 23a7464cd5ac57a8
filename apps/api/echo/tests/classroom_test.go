package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolhub/core/classroom"
	"github.com/trezcool/schoolhub/core/user"
	"github.com/trezcool/schoolhub/tests"
)

type classroomUsers struct {
	admin, ravi, asha, arjun, kiran user.User
}

// createClassroomUsers stores an admin, a 10th Physics teacher, two 10th students and one 9th student.
func createClassroomUsers(t *testing.T, e env) classroomUsers {
	return classroomUsers{
		admin: testutil.CreateAdmin(t, e.usrRepo, "Root", "root@gmail.com", ""),
		ravi:  testutil.CreateTeacher(t, e.usrRepo, "Ravi", "ravi@gmail.com", "", []string{"10th"}, []string{"Physics"}, true),
		asha:  testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, true),
		arjun: testutil.CreateStudent(t, e.usrRepo, "Arjun", "arjun@gmail.com", "", "10th", nil, true),
		kiran: testutil.CreateStudent(t, e.usrRepo, "Kiran", "kiran@gmail.com", "", "9th", nil, true),
	}
}

func Test_classroomApi_notices(t *testing.T) {
	e := setup(t)
	u := createClassroomUsers(t, e)
	adminToken := getToken(t, e.conf, u.admin)

	post := func(title string, audience classroom.Audience) classroom.Notice {
		tt := httpTest{
			method: http.MethodPost, path: "/v1/notices", token: adminToken, wantCode: http.StatusCreated,
			body: marchallObj(t, classroom.NewNotice{Title: title, Message: "Read me", Audience: audience}),
		}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)
		var n classroom.Notice
		unmarshal(t, rec, &n)
		return n
	}
	all := post("Holiday", "")
	students := post("Exams", classroom.AudienceStudents)
	teachers := post("Staff meeting", classroom.AudienceTeachers)
	assert.Equal(t, classroom.AudienceAll, all.Audience)

	tests := []httpTest{
		{
			name: "admins only can post", method: http.MethodPost, path: "/v1/notices", token: getToken(t, e.conf, u.ravi),
			body: marchallObj(t, classroom.NewNotice{Title: "Hi", Message: "Hello"}), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/notices", token: adminToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required", "message": "this field is required"}),
		},
		{
			name: "students", method: http.MethodGet, path: "/v1/notices", token: getToken(t, e.conf, u.asha),
			wantCode: http.StatusOK, wantData: marchallList(t, all, students),
		},
		{
			name: "teachers", method: http.MethodGet, path: "/v1/notices", token: getToken(t, e.conf, u.ravi),
			wantCode: http.StatusOK, wantData: marchallList(t, all, teachers),
		},
		{
			name: "admins", method: http.MethodGet, path: "/v1/notices", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, all, students, teachers),
		},
		{name: "delete", method: http.MethodDelete, path: "/v1/notices/" + teachers.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "delete (not found)", method: http.MethodDelete, path: "/v1/notices/" + teachers.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: classroom.ErrNotFound.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}
}

func Test_classroomApi_classNotices(t *testing.T) {
	e := setup(t)
	u := createClassroomUsers(t, e)
	raviToken := getToken(t, e.conf, u.ravi)

	body := func(class, subject string) []byte {
		return marchallObj(t, classroom.NewClassNotice{ClassID: class, Subject: subject, Title: "Lab", Message: "Bring coats"})
	}
	tests := []httpTest{
		{
			name: "class not taught", body: body("9th", "Physics"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"class_id": classroom.ErrNotTeachingClass.Error()}),
		},
		{
			name: "subject not taught", body: body("10th", "Hindi"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject": classroom.ErrNotTeachingSubject.Error()}),
		},
		{name: "posted", body: body("10th", "Physics"), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/class-notices"
		tt.token = raviToken

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	for _, c := range []struct {
		usr  user.User
		want int
	}{{usr: u.asha, want: 1}, {usr: u.kiran, want: 0}, {usr: u.ravi, want: 1}} {
		tt := httpTest{method: http.MethodGet, path: "/v1/class-notices", token: getToken(t, e.conf, c.usr), wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var notices []classroom.ClassNotice
		unmarshal(t, rec, &notices)
		assert.Len(t, notices, c.want, c.usr.Name)
	}
}

func Test_classroomApi_homework(t *testing.T) {
	e := setup(t)
	u := createClassroomUsers(t, e)
	raviToken := getToken(t, e.conf, u.ravi)

	t.Run("with attachment", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/homework", raviToken, map[string][]string{
			"class_id": {"10th"},
			"subject":  {"Physics"},
			"title":    {"Chapter 3"},
			"date":     {"2025-03-03"},
		}, map[string]string{"attachment": "chapter3.pdf"})
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var a classroom.Assignment
		unmarshal(t, rec, &a)
		assert.Equal(t, classroom.KindHomework, a.Kind)
		assert.Equal(t, "/uploads/assignments/homework/chapter3.pdf", a.Link)
		assert.Equal(t, "chapter3.pdf", a.AttachmentName)
		assert.Equal(t, "2025-03-03", a.Date.Format(classroom.DateLayout))
	})

	t.Run("link and attachment", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/homework", raviToken, map[string][]string{
			"class_id": {"10th"},
			"subject":  {"Physics"},
			"title":    {"Chapter 4"},
			"link":     {"https://example.com/ch4"},
		}, map[string]string{"attachment": "chapter4.pdf"})
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var material classroom.Assignment
	t.Run("material as json", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/v1/materials", token: raviToken, wantCode: http.StatusCreated,
			body: marchallObj(t, classroom.NewAssignment{
				ClassID: "10th", Subject: "Physics", Title: "Notes", Link: "https://example.com/notes",
			}),
		}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)
		unmarshal(t, rec, &material)
		assert.Equal(t, classroom.KindMaterial, material.Kind)
	})

	t.Run("students of the class", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/homework?subject=Physics", token: getToken(t, e.conf, u.asha), wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var homework []classroom.Assignment
		unmarshal(t, rec, &homework)
		require.Len(t, homework, 1)
		assert.Equal(t, "Chapter 3", homework[0].Title)

		tt.token = getToken(t, e.conf, u.kiran)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, e.serve(tt))
	})

	t.Run("delete", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodDelete, path: "/v1/homework/" + material.ID, token: raviToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: classroom.ErrNotFound.Error()}),
		}
		checkCodeAndData(t, tt, e.serve(tt))

		tt.path = "/v1/materials/" + material.ID
		tt.token = getToken(t, e.conf, u.asha)
		tt.wantCode = http.StatusForbidden
		tt.wantData = marchallObj(t, httpErr{Error: "permission denied"})
		checkCodeAndData(t, tt, e.serve(tt))

		tt.token = raviToken
		tt.wantCode = http.StatusNoContent
		tt.wantData = nil
		checkCodeAndData(t, tt, e.serve(tt))
	})
}

func Test_classroomApi_attendance(t *testing.T) {
	e := setup(t)
	u := createClassroomUsers(t, e)
	raviToken := getToken(t, e.conf, u.ravi)

	roll := classroom.NewAttendance{
		ClassID: "10th", Subject: "Physics", Date: "2025-03-03",
		Records: map[string]string{u.asha.ID: string(classroom.Present), u.arjun.ID: string(classroom.Absent)},
	}
	intruder := roll
	intruder.Records = map[string]string{u.kiran.ID: string(classroom.Present)}

	tests := []httpTest{
		{
			name: "teachers only", token: getToken(t, e.conf, u.asha), body: marchallObj(t, roll),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "student out of class", token: raviToken, body: marchallObj(t, intruder), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"records": classroom.ErrUnknownStudent.Error()}),
		},
		{name: "submitted", token: raviToken, body: marchallObj(t, roll), wantCode: http.StatusCreated},
		{
			name: "locked", token: raviToken, body: marchallObj(t, roll), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: classroom.ErrAttendanceLocked.Error()}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/attendance"

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	t.Run("by natural key", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/attendance/10th/Physics/2025-03-03", token: raviToken, wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var a classroom.Attendance
		unmarshal(t, rec, &a)
		assert.Equal(t, "10th_Physics_03-03-2025", a.ID)
		assert.Equal(t, classroom.Absent, a.Records[u.arjun.ID])

		tt.path = "/v1/attendance/10th/Physics/2025-03-04"
		tt.wantCode = http.StatusNotFound
		checkCodeAndData(t, tt, e.serve(tt))
	})

	t.Run("student statuses", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/attendance/mine", token: getToken(t, e.conf, u.asha), wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var statuses []classroom.DailyStatus
		unmarshal(t, rec, &statuses)
		require.Len(t, statuses, 1)
		assert.Equal(t, classroom.Present, statuses[0].Status)
	})

	t.Run("teacher roll calls", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/attendance?class_id=10th", token: raviToken, wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var rolls []classroom.Attendance
		unmarshal(t, rec, &rolls)
		assert.Len(t, rolls, 1)
	})
}

func Test_classroomApi_leaves(t *testing.T) {
	e := setup(t)
	u := createClassroomUsers(t, e)

	leave := marchallObj(t, classroom.NewLeave{Reason: "Fever", StartDate: "2025-03-03", EndDate: "2025-03-04"})
	tests := []httpTest{
		{
			name: "admins do not request leaves", token: getToken(t, e.conf, u.admin), body: leave,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "end before start", token: getToken(t, e.conf, u.asha),
			body:     marchallObj(t, classroom.NewLeave{Reason: "Fever", StartDate: "2025-03-04", EndDate: "2025-03-03"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"end_date": "end date cannot be before start date"}),
		},
		{name: "student", token: getToken(t, e.conf, u.asha), body: leave, wantCode: http.StatusCreated},
		{name: "other class student", token: getToken(t, e.conf, u.kiran), body: leave, wantCode: http.StatusCreated},
		{name: "teacher", token: getToken(t, e.conf, u.ravi), body: leave, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/leaves"

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	for _, c := range []struct {
		name string
		usr  user.User
		path string
		kind classroom.LeaveKind
	}{
		{name: "admins read teacher leaves", usr: u.admin, path: "/v1/leaves", kind: classroom.LeaveTeacher},
		{name: "teachers read their students leaves", usr: u.ravi, path: "/v1/leaves", kind: classroom.LeaveStudent},
		{name: "own leaves", usr: u.asha, path: "/v1/leaves/mine", kind: classroom.LeaveStudent},
	} {
		t.Run(c.name, func(t *testing.T) {
			tt := httpTest{method: http.MethodGet, path: c.path, token: getToken(t, e.conf, c.usr), wantCode: http.StatusOK}
			rec := e.serve(tt)
			checkCodeAndData(t, tt, rec)

			var leaves []classroom.Leave
			unmarshal(t, rec, &leaves)
			require.Len(t, leaves, 1)
			assert.Equal(t, c.kind, leaves[0].Kind)
			assert.Equal(t, classroom.LeaveInformed, leaves[0].Status)
		})
	}
}

func Test_classroomApi_exams(t *testing.T) {
	e := setup(t)
	u := createClassroomUsers(t, e)
	raviToken := getToken(t, e.conf, u.ravi)

	exam := classroom.NewExam{
		ExamTitle: "Unit Test 1", MaxScore: 50, ClassID: "10th", Subject: "Physics",
		Scores: map[string]int{u.asha.ID: 42, u.arjun.ID: 38},
	}
	tooHigh := exam
	tooHigh.Scores = map[string]int{u.asha.ID: 51}

	tests := []httpTest{
		{
			name: "score above max", body: marchallObj(t, tooHigh), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"scores": "some scores exceed the max score"}),
		},
		{name: "published", body: marchallObj(t, exam), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/exams"
		tt.token = raviToken

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	t.Run("student results", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/exams", token: getToken(t, e.conf, u.asha), wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var results []classroom.ExamResult
		unmarshal(t, rec, &results)
		require.Len(t, results, 1)
		assert.Equal(t, 42, results[0].Score)
		assert.Equal(t, "Asha", results[0].StudentName)
	})

	t.Run("gradable students", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/exams/students?class_id=10th&subject=Physics", token: raviToken, wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var students []user.User
		unmarshal(t, rec, &students)
		require.Len(t, students, 2)
		assert.Equal(t, "Arjun", students[0].Name)

		tt.path = "/v1/exams/students?class_id=9th"
		tt.wantCode = http.StatusBadRequest
		tt.wantData = marchallObj(t, map[string]string{"class_id": classroom.ErrNotTeachingClass.Error()})
		checkCodeAndData(t, tt, e.serve(tt))
	})
}
