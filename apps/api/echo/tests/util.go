package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolhub/apps/api/echo"
	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/classroom"
	"github.com/trezcool/schoolhub/core/course"
	"github.com/trezcool/schoolhub/core/enrollment"
	"github.com/trezcool/schoolhub/core/user"
	"github.com/trezcool/schoolhub/services/email"
	"github.com/trezcool/schoolhub/services/logger"
	"github.com/trezcool/schoolhub/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type videoResolverMock struct {
	mu    sync.Mutex
	infos map[string]course.VideoInfo
}

func (vr *videoResolverMock) Resolve(_ context.Context, videoID string) (course.VideoInfo, error) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	info, ok := vr.infos[videoID]
	if !ok {
		return course.VideoInfo{}, errors.New("video not found")
	}
	return info, nil
}

type fileStoreMock struct {
	mu    sync.Mutex
	saved []string
}

var _ core.FileStore = (*fileStoreMock)(nil) // interface compliance check

func (fs *fileStoreMock) Save(_ context.Context, dir string, f core.File) (core.StoredFile, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	key := dir + "/" + f.Name
	fs.saved = append(fs.saved, key)
	return core.StoredFile{Key: key, URL: "/uploads/" + key, Name: f.Name, ContentType: f.ContentType, Size: f.Size}, nil
}

func (fs *fileStoreMock) SaveImage(ctx context.Context, dir string, f core.File, _, _ int) (core.StoredFile, error) {
	return fs.Save(ctx, dir, f)
}

func (fs *fileStoreMock) Delete(context.Context, string) error { return nil }

type env struct {
	conf     *core.Config
	usrRepo  user.Repository
	billRepo billing.Repository
	videos   *videoResolverMock
	files    *fileStoreMock
	app      *echoapi.Server
}

func setup(t *testing.T) env {
	conf := core.NewTestConfig()
	lgr := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	lgr.Enable(false)
	core.ParseEmailTemplates(conf, lgr)
	emailsvc.ResetSentMessages()

	// validation
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf.Auth)
	classroom.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	e := env{
		conf:     conf,
		usrRepo:  dummydb.NewUserRepository(db),
		billRepo: dummydb.NewBillingRepository(db),
		videos:   &videoResolverMock{infos: map[string]course.VideoInfo{}},
		files:    &fileStoreMock{},
	}

	// set up services
	usrSvc := user.NewServiceMock(conf, e.usrRepo, emailsvc.NewConsoleServiceMock(conf))

	// set up server
	e.app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       lgr,
		UserSvc:      usrSvc,
		BillingSvc:   billing.NewService(conf, e.billRepo, usrSvc),
		ClassroomSvc: classroom.NewService(dummydb.NewClassroomRepository(db), usrSvc, e.files),
		CourseSvc:    course.NewService(dummydb.NewCourseRepository(db), e.videos, e.files, lgr),
		Validate:     validate,
		Translator:   translator,
	})
	t.Cleanup(func() { _ = e.app.Shutdown(context.Background()) })
	return e
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (e env) serve(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	e.app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newMultipartRequest builds a multipart/form-data request with fields and one file per entry of files.
func newMultipartRequest(
	t *testing.T, method, path, token string, fields map[string][]string, files map[string]string,
) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(name, v))
		}
	}
	for field, filename := range files {
		fw, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("content of " + filename))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(conf, usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
