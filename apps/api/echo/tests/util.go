package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/homeroom/apps/api/echo"
	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/attendance"
	"github.com/trezcool/homeroom/core/school"
	"github.com/trezcool/homeroom/core/user"
	"github.com/trezcool/homeroom/services/email"
	"github.com/trezcool/homeroom/storage/database/inmem"
	"github.com/trezcool/homeroom/storage/repos"
	"github.com/trezcool/homeroom/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*echoapi.Server
	conf          *core.Config
	usrRepo       user.Repository
	schoolSvc     school.Service
	attendanceSvc attendance.Service
	mailSvc       *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NopLogger()
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := inmemdb.New()
	t.Cleanup(func() { _ = db.Close() })
	usrRepo := docrepos.NewUserRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewServiceMock(usrRepo, user.NewLocalProvider(conf), mailSvc, validate, logger)
	schoolSvc := school.NewService(docrepos.NewSchoolRepository(db, logger), validate)
	cal, err := attendance.NewCalendarFromConfig(conf)
	require.NoError(t, err)
	attendanceSvc := attendance.NewService(
		docrepos.NewAttendanceRepository(db), schoolSvc, cal, conf.Attendance, validate, logger,
	)

	// set up server
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		SchoolSvc:     schoolSvc,
		AttendanceSvc: attendanceSvc,
		MailSvc:       mailSvc,
		Validate:      validate,
		Translator:    translator,
	})
	return &testApp{
		Server:        srv,
		conf:          conf,
		usrRepo:       usrRepo,
		schoolSvc:     schoolSvc,
		attendanceSvc: attendanceSvc,
		mailSvc:       mailSvc,
	}
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.Token(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// serve runs a request against the app and decodes the JSON response into dst, if not nil.
func (app *testApp) serve(t *testing.T, method, path, token string, body []byte, dst interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, body)
	app.ServeHTTP(rec, req)
	if dst != nil && rec.Code < http.StatusBadRequest {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
	}
	return rec
}

func (app *testApp) ctx() context.Context { return context.Background() }

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
	extra    interface{}
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

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
