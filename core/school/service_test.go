package school

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeroom/core"
)

type memRepo struct {
	mu       sync.Mutex
	students map[string]Student
	sections map[string]Section
	subjects map[string]Subject
}

var _ Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		students: make(map[string]Student),
		sections: make(map[string]Section),
		subjects: make(map[string]Subject),
	}
}

func (r *memRepo) CreateStudent(_ context.Context, s Student) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[s.ID] = s
	return s, nil
}

func (r *memRepo) GetStudent(_ context.Context, id string) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.students[id]; ok {
		return s, nil
	}
	return Student{}, ErrStudentNotFound
}

func (r *memRepo) QueryStudents(context.Context) ([]Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Student, 0, len(r.students))
	for _, s := range r.students {
		res = append(res, s)
	}
	return res, nil
}

func (r *memRepo) UpdateStudent(ctx context.Context, s Student) (Student, error) {
	return r.CreateStudent(ctx, s)
}

func (r *memRepo) DeleteStudent(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.students, id)
	return nil
}

func (r *memRepo) WatchStudents(context.Context) (<-chan []Student, error) {
	return make(chan []Student), nil
}

func (r *memRepo) CreateSection(_ context.Context, s Section) (Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sections[s.ID] = s
	return s, nil
}

func (r *memRepo) GetSection(_ context.Context, id string) (Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sections[id]; ok {
		return s, nil
	}
	return Section{}, ErrSectionNotFound
}

func (r *memRepo) QuerySections(context.Context) ([]Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Section, 0, len(r.sections))
	for _, s := range r.sections {
		res = append(res, s)
	}
	return res, nil
}

func (r *memRepo) UpdateSection(ctx context.Context, s Section) (Section, error) {
	return r.CreateSection(ctx, s)
}

func (r *memRepo) DeleteSection(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sections, id)
	return nil
}

func (r *memRepo) CreateSubject(_ context.Context, s Subject) (Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects[s.ID] = s
	return s, nil
}

func (r *memRepo) GetSubject(_ context.Context, id string) (Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subjects[id]; ok {
		return s, nil
	}
	return Subject{}, ErrSubjectNotFound
}

func (r *memRepo) QuerySubjects(context.Context) ([]Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Subject, 0, len(r.subjects))
	for _, s := range r.subjects {
		res = append(res, s)
	}
	return res, nil
}

func (r *memRepo) UpdateSubject(ctx context.Context, s Subject) (Subject, error) {
	return r.CreateSubject(ctx, s)
}

func (r *memRepo) DeleteSubject(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subjects, id)
	return nil
}

func newTestService(t *testing.T) Service {
	t.Helper()
	enLoc := en.New()
	translator, _ := ut.New(enLoc, enLoc).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return NewService(newMemRepo(), validate)
}

func TestService_Students(t *testing.T) {
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	NowFunc = func() time.Time { return now }
	defer func() { NowFunc = time.Now }()

	svc := newTestService(t)
	ctx := context.Background()

	sec, err := svc.CreateSection(ctx, NewSection{Name: " 7A "})
	require.NoError(t, err)
	assert.Equal(t, "7A", sec.Name)

	_, err = svc.CreateStudent(ctx, NewStudent{FirstName: "Ann"})
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	assert.Equal(t, "lastName", vErrs[0].Field())

	ann, err := svc.CreateStudent(ctx, NewStudent{
		StudentID: "2024-001", FirstName: " Ann ", LastName: "Lee", Section: sec.ID, Email: "ANN@school.test",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ann.ID)
	assert.Equal(t, "Ann", ann.FirstName)
	assert.Equal(t, "ann@school.test", ann.Email)
	assert.Equal(t, now, ann.CreatedAt)

	_, err = svc.CreateStudent(ctx, NewStudent{FirstName: "Bo", LastName: "Chan", Section: "7a"})
	require.NoError(t, err)
	_, err = svc.CreateStudent(ctx, NewStudent{FirstName: "Cy", LastName: "Diaz", Section: "8B"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter QueryFilter
		want   []string
	}{
		{name: "all", filter: QueryFilter{}, want: []string{"Ann Lee", "Bo Chan", "Cy Diaz"}},
		{name: "section by id", filter: QueryFilter{Section: sec.ID}, want: []string{"Ann Lee", "Bo Chan"}},
		{name: "section by name", filter: QueryFilter{Section: "7A"}, want: []string{"Ann Lee", "Bo Chan"}},
		{name: "unknown section name", filter: QueryFilter{Section: "8b"}, want: []string{"Cy Diaz"}},
		{name: "search", filter: QueryFilter{Search: "2024-0"}, want: []string{"Ann Lee"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students, err := svc.QueryStudents(ctx, tt.filter)
			require.NoError(t, err)
			names := make([]string, 0, len(students))
			for _, s := range students {
				names = append(names, s.FullName())
			}
			assert.Equal(t, tt.want, names)
		})
	}

	members, err := svc.SectionStudents(ctx, sec)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	inactive := false
	ann, err = svc.UpdateStudent(ctx, ann.ID, NewStudent{FirstName: "Ann", LastName: "Lee", Section: sec.ID, Active: &inactive})
	require.NoError(t, err)
	assert.False(t, ann.IsActive())
	members, err = svc.SectionStudents(ctx, sec)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	require.NoError(t, svc.DeleteStudent(ctx, ann.ID))
	_, err = svc.GetStudent(ctx, ann.ID)
	assert.Equal(t, ErrStudentNotFound, err)
	_, err = svc.UpdateStudent(ctx, ann.ID, NewStudent{FirstName: "Ann", LastName: "Lee"})
	assert.Equal(t, ErrStudentNotFound, err)
}

func TestService_Subjects(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSubject(ctx, NewSubject{
		Name:     "Math",
		Schedule: Schedule{Week1: []Slot{{Day: "someday"}}},
	})
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	assert.Equal(t, "weekday", vErrs[0].Tag())

	math, err := svc.CreateSubject(ctx, NewSubject{
		Name:     "Math",
		Code:     "MTH-7",
		Color:    "#ff0000",
		Schedule: Schedule{Week1: []Slot{{Day: " Monday ", Period: 1, Time: "8:00-8:45"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "monday", math.Schedule.Week1[0].Day)
	assert.True(t, math.IsActive())

	_, err = svc.CreateSubject(ctx, NewSubject{Name: "Homeroom", IsHomeroom: true, TeacherIDs: []string{"t1"}})
	require.NoError(t, err)

	subjects, err := svc.QuerySubjects(ctx, QueryFilter{Search: "mth"})
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, math.ID, subjects[0].ID)

	math, err = svc.UpdateSubject(ctx, math.ID, NewSubject{Name: "Mathematics", TeacherIDs: []string{"t2"}})
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", math.Name)
	assert.True(t, math.TaughtBy("t2"))
	assert.False(t, math.TaughtBy("t1"))

	require.NoError(t, svc.DeleteSubject(ctx, math.ID))
	_, err = svc.GetSubject(ctx, math.ID)
	assert.Equal(t, ErrSubjectNotFound, err)
}

func TestService_Sections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"8B", "7A", "7b"} {
		_, err := svc.CreateSection(ctx, NewSection{Name: name})
		require.NoError(t, err)
	}
	_, err := svc.CreateSection(ctx, NewSection{})
	assert.Error(t, err)

	sections, err := svc.QuerySections(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "7A", sections[0].Name)
	assert.Equal(t, "8B", sections[2].Name)

	sections, err = svc.QuerySections(ctx, QueryFilter{Search: "7"})
	require.NoError(t, err)
	assert.Len(t, sections, 2)

	sec, err := svc.UpdateSection(ctx, sections[0].ID, NewSection{Name: "7C", Room: "101"})
	require.NoError(t, err)
	assert.Equal(t, "101", sec.Room)

	require.NoError(t, svc.DeleteSection(ctx, sec.ID))
	_, err = svc.GetSection(ctx, sec.ID)
	assert.Equal(t, ErrSectionNotFound, err)
}
