package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeroom/core/school"
	"github.com/trezcool/homeroom/core/user"
	"github.com/trezcool/homeroom/tests"
)

type schoolFixture struct {
	section          school.Section
	homeroom, music  school.Subject
	ann, bo, outside school.Student
}

// seedSchool creates section 7A with 2 students, a Homeroom and a Music subject held on week2 Tuesdays.
func seedSchool(t *testing.T, app *testApp) schoolFixture {
	t.Helper()
	var (
		f   schoolFixture
		err error
	)
	ctx := app.ctx()

	f.section, err = app.schoolSvc.CreateSection(ctx, school.NewSection{Name: "7A", Year: "7"})
	require.NoError(t, err)
	other, err := app.schoolSvc.CreateSection(ctx, school.NewSection{Name: "8B", Year: "8"})
	require.NoError(t, err)

	f.homeroom, err = app.schoolSvc.CreateSubject(ctx, school.NewSubject{Name: "Homeroom", IsHomeroom: true})
	require.NoError(t, err)
	f.music, err = app.schoolSvc.CreateSubject(ctx, school.NewSubject{
		Name:     "Music",
		Schedule: school.Schedule{Week2: []school.Slot{{Day: "tuesday", Period: 2}}},
	})
	require.NoError(t, err)

	f.ann, err = app.schoolSvc.CreateStudent(ctx, school.NewStudent{
		StudentID: "2024-001", FirstName: "Ann", LastName: "Lee", Year: "7", Section: f.section.ID,
		SelectedSubjects: []string{f.music.ID},
	})
	require.NoError(t, err)
	f.bo, err = app.schoolSvc.CreateStudent(ctx, school.NewStudent{
		StudentID: "2024-002", FirstName: "Bo", LastName: "Chan", Year: "7", Section: "7A", // by name
	})
	require.NoError(t, err)
	f.outside, err = app.schoolSvc.CreateStudent(ctx, school.NewStudent{
		StudentID: "2024-003", FirstName: "Cy", LastName: "Diaz", Year: "8", Section: other.ID,
	})
	require.NoError(t, err)
	return f
}

func Test_schoolApi_permissions(t *testing.T) {
	app := setup(t)
	f := seedSchool(t, app)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	nobody := testutil.CreateUser(t, app.usrRepo, "Nobody", "nobody", "nobody@test.cd", "", nil, true)

	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Staff required", method: http.MethodGet, path: "/v1/students", token: app.token(t, nobody), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "Teacher reads", method: http.MethodGet, path: "/v1/sections/" + f.section.ID, token: app.token(t, teacher), wantCode: http.StatusOK, wantData: marchallObj(t, f.section)},
		{
			name: "Teacher cannot write", method: http.MethodPost, path: "/v1/sections", token: app.token(t, teacher),
			body: marchallObj(t, school.NewSection{Name: "9C"}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Teacher cannot delete", method: http.MethodDelete, path: "/v1/students/" + f.ann.ID, token: app.token(t, teacher),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_schoolApi_students(t *testing.T) {
	app := setup(t)
	f := seedSchool(t, app)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	token := app.token(t, admin)

	tests := []httpTest{
		{name: "list (by name)", path: "/v1/students", wantData: marchallList(t, f.ann, f.bo, f.outside)},
		{name: "by section id", path: "/v1/students?section=" + f.section.ID, wantData: marchallList(t, f.ann, f.bo)},
		{name: "by section name", path: "/v1/students?section=7a", wantData: marchallList(t, f.ann, f.bo)},
		{name: "search", path: "/v1/students?search=2024-003", wantData: marchallList(t, f.outside)},
		{name: "ordering", path: "/v1/students?ordering=-studentId", wantData: marchallList(t, f.outside, f.bo, f.ann)},
		{name: "section roster", path: "/v1/sections/" + f.section.ID + "/students", wantData: marchallList(t, f.ann, f.bo)},
		{name: "detail", path: "/v1/students/" + f.ann.ID, wantData: marchallObj(t, f.ann)},
		{name: "not found", path: "/v1/students/lol", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"})},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.token = token
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("create: required fields", func(t *testing.T) {
		rec := app.serve(t, http.MethodPost, "/v1/students", token, marchallObj(t, school.NewStudent{}), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"firstName": "this field is required", "lastName": "this field is required"}`, rec.Body.String())
	})

	t.Run("create, update & delete", func(t *testing.T) {
		var stu school.Student
		rec := app.serve(t, http.MethodPost, "/v1/students", token,
			[]byte(`{"firstName": " Dee ", "lastName": "Kim", "year": 7, "section": "7A"}`), &stu)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "Dee", stu.FirstName)
		assert.Equal(t, school.Grade("7"), stu.Year)

		rec = app.serve(t, http.MethodPut, "/v1/students/"+stu.ID, token,
			marchallObj(t, school.NewStudent{FirstName: "Dee", LastName: "Kimura", Section: "8B"}), &stu)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Kimura", stu.LastName)
		assert.Equal(t, "8B", stu.Section)

		rec = app.serve(t, http.MethodDelete, "/v1/students/"+stu.ID, token, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.serve(t, http.MethodDelete, "/v1/students/"+stu.ID, token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_schoolApi_sectionsAndSubjects(t *testing.T) {
	app := setup(t)
	f := seedSchool(t, app)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	token := app.token(t, admin)

	t.Run("sections search", func(t *testing.T) {
		var sections []school.Section
		rec := app.serve(t, http.MethodGet, "/v1/sections?search=7", token, nil, &sections)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, sections, 1)
		assert.Equal(t, f.section.ID, sections[0].ID)
	})

	t.Run("update section", func(t *testing.T) {
		var sec school.Section
		rec := app.serve(t, http.MethodPut, "/v1/sections/"+f.section.ID, token, marchallObj(t, school.NewSection{Name: "7A", Room: "B12"}), &sec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "B12", sec.Room)
	})

	t.Run("subject validation", func(t *testing.T) {
		rec := app.serve(t, http.MethodPost, "/v1/subjects", token, []byte(`{"name": "Art", "schedule": {"week1": [{"day": "someday"}]}}`), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("subjects list", func(t *testing.T) {
		var subjects []school.Subject
		rec := app.serve(t, http.MethodGet, "/v1/subjects?ordering=name", token, nil, &subjects)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, subjects, 2)
		assert.Equal(t, "Homeroom", subjects[0].Name)
		assert.Equal(t, "Music", subjects[1].Name)
	})

	t.Run("delete subject", func(t *testing.T) {
		rec := app.serve(t, http.MethodDelete, "/v1/subjects/"+f.music.ID, token, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.serve(t, http.MethodGet, "/v1/subjects/"+f.music.ID, token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error": "subject not found"}`, rec.Body.String())
	})
}

func Test_schoolApi_schedule(t *testing.T) {
	app := setup(t)
	f := seedSchool(t, app)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	token := app.token(t, teacher)

	tests := []httpTest{
		{name: "week2 tuesday", path: "/v1/schedule?date=2024-09-10", wantData: marchallList(t, f.homeroom, f.music)},
		{name: "week1 tuesday", path: "/v1/schedule?date=2024-09-03", wantData: marchallList(t, f.homeroom)},
		{name: "bad date", path: "/v1/schedule?date=10/09/2024", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.token = token
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
