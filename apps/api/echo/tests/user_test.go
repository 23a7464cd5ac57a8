package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolhub/apps/api/echo"
	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/enrollment"
	"github.com/trezcool/schoolhub/core/user"
	"github.com/trezcool/schoolhub/services/email"
	"github.com/trezcool/schoolhub/tests"
)

const testPwd = "S3cure-Passw0rd"

func Test_userApi_signUpStudent(t *testing.T) {
	e := setup(t)
	testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", testPwd, "10th", nil, true)

	valid := func(email, standard, stream string, subjects ...string) []byte {
		return marchallObj(t, user.NewStudent{
			Contact: user.Contact{Name: "Ravi Kumar", Email: email, Phone: "9876543210", Password: testPwd},
			Student: enrollment.Student{Standard: standard, Stream: stream, Subjects: subjects},
		})
	}

	tests := []httpTest{
		{
			name: "required fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":     "this field is required",
				"email":    "this field is required",
				"phone":    "this field is required",
				"password": "this field is required",
				"standard": "this field is required",
			}),
		},
		{
			name: "email domain", body: valid("ravi@yahoo.com", "10th", ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "email must be a @gmail.com address"}),
		},
		{
			name: "unknown class", body: valid("ravi@gmail.com", "13th", ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"standard": "unknown class"}),
		},
		{
			name: "senior without stream", body: valid("ravi@gmail.com", "11th", ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"stream": "please select a stream"}),
		},
		{
			name: "subject out of stream", body: valid("ravi@gmail.com", "11th", enrollment.StreamScience, "History"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"enrolled_subjects": "one or more subjects are not offered for this class"}),
		},
		{
			name: "email taken", body: valid("ASHA@gmail.com", "10th", ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{name: "signed up", body: valid("ravi@gmail.com", "11th", enrollment.StreamScience, "Physics"), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/signup/student"

		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(tt)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode != http.StatusCreated {
				// rejected before any write
				_, err := e.usrRepo.GetUserByEmail(context.Background(), "ravi@gmail.com")
				assert.Equal(t, user.ErrNotFound, err)
				return
			}

			var usr user.User
			unmarshal(t, rec, &usr)
			assert.Equal(t, user.RoleStudent, usr.Role)
			assert.False(t, usr.IsApproved)
			assert.Equal(t, "11th", usr.Standard)
			assert.Equal(t, enrollment.StreamScience, usr.Stream)
			assert.Equal(t, []string{"Physics"}, usr.EnrolledSubjects)
			assert.Zero(t, usr.MonthlyFeeAmount)
		})
	}
}

func Test_userApi_signUpTeacher(t *testing.T) {
	e := setup(t)

	body := func(classes []string, subjects ...string) []byte {
		return marchallObj(t, user.NewTeacher{
			Contact: user.Contact{Name: "Meena", Email: "meena@gmail.com", Phone: "9876543210", Password: testPwd},
			Teacher: enrollment.Teacher{Classes: classes, Subjects: subjects},
		})
	}

	tests := []httpTest{
		{
			name: "junior combined", body: body([]string{enrollment.TeacherStandardPrepTo2nd, "10th"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"classes_taught": "a junior class cannot be combined with other classes"}),
		},
		{
			name: "subjects required", body: body([]string{"10th"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subjects": "please select at least one subject"}),
		},
		{name: "signed up", body: body([]string{enrollment.TeacherStandardPrepTo2nd}, "Physics"), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/signup/teacher"

		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(tt)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode != http.StatusCreated {
				return
			}

			var usr user.User
			unmarshal(t, rec, &usr)
			assert.Equal(t, user.RoleTeacher, usr.Role)
			assert.False(t, usr.IsApproved)
			// junior classes lock the subjects
			assert.Equal(t, []string{enrollment.AllSubjects}, usr.Subjects)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", testPwd, "10th", nil, true)
	testutil.CreateStudent(t, e.usrRepo, "Arjun", "arjun@gmail.com", testPwd, "10th", nil, false)

	failed := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name: "required fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", body: marchallObj(t, echoapi.LoginRequest{Email: "lol@gmail.com", Password: testPwd}),
			wantCode: http.StatusBadRequest, wantData: failed,
		},
		{
			name: "wrong password", body: marchallObj(t, echoapi.LoginRequest{Email: student.Email, Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: failed,
		},
		{
			name: "pending approval", body: marchallObj(t, echoapi.LoginRequest{Email: "arjun@gmail.com", Password: testPwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "your account is waiting for admin approval"}),
		},
		{
			name: "logged in", body: marchallObj(t, echoapi.LoginRequest{Email: " ASHA@gmail.com ", Password: testPwd}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/login"

		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(tt)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			require.NotNil(t, resp.User)
			assert.Equal(t, student.ID, resp.User.ID)
			assert.True(t, resp.User.LastLogin.Valid)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, true)

	now := time.Now()
	unrefreshable := jwt.NewWithClaims(jwt.SigningMethodHS256, &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    e.conf.AppName,
			Subject:   student.ID,
			ExpiresAt: now.Add(e.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * e.conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Role:         student.Role,
	})
	unrefreshableToken, err := unrefreshable.SignedString([]byte(e.conf.SecretKey))
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "Token refreshed", token: getToken(t, e.conf, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(tt)
			checkCodeAndData(t, tt, rec)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func Test_userApi_me(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, true)
	gone := testutil.CreateStudent(t, e.usrRepo, "Gone", "gone@gmail.com", "", "10th", nil, true)
	goneToken := getToken(t, e.conf, gone)
	require.NoError(t, e.usrRepo.DeleteUser(context.Background(), gone))

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Invalid token", token: "lol", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "Deleted user", token: goneToken, wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{name: "Me", token: getToken(t, e.conf, student), wantCode: http.StatusOK, wantData: marchallObj(t, student)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/auth/me"

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}
}

func Test_userApi_query(t *testing.T) {
	e := setup(t)

	path := func(search string, approved *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if approved != nil {
			if *approved {
				v.Add("is_approved", "true")
			} else {
				v.Add("is_approved", "false")
			}
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	admin := testutil.CreateAdmin(t, e.usrRepo, "Root", "root@gmail.com", "")
	asha := testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, true)
	arjun := testutil.CreateStudent(t, e.usrRepo, "Arjun", "arjun@gmail.com", "", "9th", nil, false)
	ravi := testutil.CreateTeacher(t, e.usrRepo, "Ravi", "ravi@gmail.com", "", []string{"10th"}, []string{"Physics"}, true)

	adminToken := getToken(t, e.conf, admin)
	tests := []httpTest{
		{name: "Auth required", path: path("", nil), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: path("", nil), token: getToken(t, e.conf, asha), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: path("", nil), token: adminToken, wantData: marchallList(t, admin, asha, arjun, ravi)},
		{name: "search (unknown)", path: path("lol", nil), token: adminToken, wantData: marchallList(t)},
		{name: "search=ar", path: path("AR", nil), token: adminToken, wantData: marchallList(t, arjun)},
		{name: "role=student", path: path("", nil, user.RoleStudent), token: adminToken, wantData: marchallList(t, asha, arjun)},
		{
			name: "pending approval", path: path("", bPtr(false), user.RoleStudent, user.RoleTeacher),
			token: adminToken, wantData: marchallList(t, arjun),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}
}

func Test_userApi_approve(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateAdmin(t, e.usrRepo, "Root", "root@gmail.com", "")
	asha := testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, false)
	ravi := testutil.CreateTeacher(t, e.usrRepo, "Ravi", "ravi@gmail.com", "", []string{"10th"}, []string{"Physics"}, false)
	kiran := testutil.CreateStudent(t, e.usrRepo, "Kiran", "kiran@gmail.com", "", "9th", nil, false)
	approved := testutil.CreateStudent(t, e.usrRepo, "Arjun", "arjun@gmail.com", "", "10th", nil, true)
	adminToken := getToken(t, e.conf, admin)

	tests := []struct {
		httpTest
		check func(t *testing.T, usr user.User)
	}{
		{
			httpTest: httpTest{name: "not found", path: "/v1/users/lol/approve", wantCode: http.StatusNotFound,
				wantData: marchallObj(t, httpErr{Error: "not found"})},
		},
		{
			httpTest: httpTest{name: "already approved", path: "/v1/users/" + approved.ID + "/approve",
				wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrAlreadyApproved.Error()})},
		},
		{
			httpTest: httpTest{name: "student default fee", path: "/v1/users/" + asha.ID + "/approve", body: []byte(`{}`),
				wantCode: http.StatusOK},
			check: func(t *testing.T, usr user.User) {
				assert.True(t, usr.IsApproved)
				assert.Equal(t, e.conf.Billing.DefaultFeeAmount, usr.MonthlyFeeAmount)
				assert.Len(t, emailsvc.SentTo(asha.Email), 1)
			},
		},
		{
			httpTest: httpTest{name: "student fee", path: "/v1/users/" + kiran.ID + "/approve",
				body: marchallObj(t, user.Approval{MonthlyFeeAmount: 3000}), wantCode: http.StatusOK},
			check: func(t *testing.T, usr user.User) {
				assert.True(t, usr.IsApproved)
				assert.Equal(t, int64(3000), usr.MonthlyFeeAmount)

				stored, err := e.usrRepo.GetUserByID(context.Background(), kiran.ID)
				require.NoError(t, err)
				assert.True(t, stored.IsApproved)
				assert.Equal(t, int64(3000), stored.MonthlyFeeAmount)
			},
		},
		{
			httpTest: httpTest{name: "commission teacher", path: "/v1/users/" + ravi.ID + "/approve",
				body:     marchallObj(t, user.Approval{SalaryType: user.SalaryCommission, Salary: 20000}),
				wantCode: http.StatusOK},
			check: func(t *testing.T, usr user.User) {
				assert.True(t, usr.IsApproved)
				assert.Equal(t, user.SalaryCommission, usr.SalaryType)
				assert.Zero(t, usr.Salary)
			},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.token = adminToken

		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(tt.httpTest)
			checkCodeAndData(t, tt.httpTest, rec)
			if tt.check != nil {
				var usr user.User
				unmarshal(t, rec, &usr)
				tt.check(t, usr)
			}
		})
	}
}

func Test_userApi_updateAndSetPassword(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateAdmin(t, e.usrRepo, "Root", "root@gmail.com", "")
	asha := testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, true)
	ravi := testutil.CreateTeacher(t, e.usrRepo, "Ravi", "ravi@gmail.com", "", []string{"10th"}, []string{"Physics"}, true)
	adminToken := getToken(t, e.conf, admin)

	t.Run("student fee", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPut, path: "/v1/users/" + asha.ID + "/student", token: adminToken,
			body: marchallObj(t, user.UpdateStudent{
				Name: "Asha K", MonthlyFeeAmount: 6500, Student: enrollment.Student{Standard: "10th"},
			}),
			wantCode: http.StatusOK,
		}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "Asha K", usr.Name)
		assert.EqualValues(t, 6500, usr.MonthlyFeeAmount)
	})

	t.Run("teacher endpoint on a student", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPut, path: "/v1/users/" + asha.ID + "/teacher", token: adminToken,
			body:     marchallObj(t, user.UpdateTeacher{Name: "Asha", SalaryType: user.SalaryFixed, Salary: 1}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrRoleMismatch.Error()}),
		}
		checkCodeAndData(t, tt, e.serve(tt))
	})

	t.Run("teacher salary", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPut, path: "/v1/users/" + ravi.ID + "/teacher", token: adminToken,
			body: marchallObj(t, user.UpdateTeacher{
				Name: "Ravi", SalaryType: user.SalaryFixed, Salary: 18000,
				Teacher: enrollment.Teacher{Classes: []string{"10th", "9th"}, Subjects: []string{"Physics"}},
			}),
			wantCode: http.StatusOK,
		}
		rec := e.serve(tt)
		checkCodeAndData(t, tt, rec)

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.EqualValues(t, 18000, usr.Salary)
		assert.Equal(t, []string{"10th", "9th"}, usr.ClassesTaught)
	})

	t.Run("set password", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPut, path: "/v1/users/" + asha.ID + "/password", token: adminToken,
			body:     marchallObj(t, user.SetPassword{Password: testPwd, PasswordConfirm: testPwd}),
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been updated."}),
		}
		checkCodeAndData(t, tt, e.serve(tt))

		usr, err := e.usrRepo.GetUserByID(context.Background(), asha.ID)
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword(testPwd))
	})
}

func Test_userApi_destroy(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, e.usrRepo, "Root", "root@gmail.com", "")
	asha := testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, true)
	fee := testutil.CreateRecord(t, e.billRepo, asha, billing.KindFee, "Tuition Fee - March 2025", 5000)
	adminToken := getToken(t, e.conf, admin)

	tests := []httpTest{
		{
			name: "cannot delete self", path: "/v1/users/" + admin.ID, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "deleted", path: "/v1/users/" + asha.ID, wantCode: http.StatusNoContent},
		{name: "not found", path: "/v1/users/" + asha.ID, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
	}
	for _, tt := range tests {
		tt.method = http.MethodDelete
		tt.token = adminToken

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	// fees go away with the student
	_, err := e.billRepo.GetRecordByID(ctx, billing.KindFee, fee.ID)
	assert.Equal(t, billing.ErrNotFound, err)
}

func Test_userApi_myStudents(t *testing.T) {
	e := setup(t)
	ravi := testutil.CreateTeacher(t, e.usrRepo, "Ravi", "ravi@gmail.com", "", []string{"10th"}, []string{"Physics"}, true)
	asha := testutil.CreateStudent(t, e.usrRepo, "Asha", "asha@gmail.com", "", "10th", nil, true)
	arjun := testutil.CreateStudent(t, e.usrRepo, "Arjun", "arjun@gmail.com", "", "10th", nil, true)
	testutil.CreateStudent(t, e.usrRepo, "Pending", "pending@gmail.com", "", "10th", nil, false)
	testutil.CreateStudent(t, e.usrRepo, "Kiran", "kiran@gmail.com", "", "9th", nil, true)

	tests := []httpTest{
		{
			name: "teachers only", token: getToken(t, e.conf, asha), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		// sorted by class then name
		{name: "approved students of taught classes", token: getToken(t, e.conf, ravi), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/students"

		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(tt)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				var students []user.User
				unmarshal(t, rec, &students)
				require.Len(t, students, 2)
				assert.Equal(t, arjun.ID, students[0].ID)
				assert.Equal(t, asha.ID, students[1].ID)
			}
		})
	}
}
