package attendance

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/school"
)

type fakeRepo struct {
	mu      sync.Mutex
	docs    map[string]core.Document
	saveErr error
	watch   chan []RawSnapshot
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[string]core.Document), watch: make(chan []RawSnapshot, 1)}
}

func (r *fakeRepo) SaveSnapshot(_ context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.docs[snap.ID] = core.NormalizeValue(map[string]interface{}(snap.Document())).(map[string]interface{})
	return nil
}

func (r *fakeRepo) put(doc core.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID()] = core.NormalizeValue(map[string]interface{}(doc)).(map[string]interface{})
}

func (r *fakeRepo) GetSnapshot(_ context.Context, id string) (RawSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return RawSnapshot{}, ErrSnapshotNotFound
	}
	return RawSnapshotFromDocument(doc), nil
}

func (r *fakeRepo) QuerySnapshots(_ context.Context, sectionID, date string) ([]RawSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []RawSnapshot
	for _, doc := range r.docs {
		if rs := RawSnapshotFromDocument(doc); rs.SectionID == sectionID && rs.Date == date {
			res = append(res, rs)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *fakeRepo) WatchSnapshots(context.Context) (<-chan []RawSnapshot, error) { return r.watch, nil }

type fakeRoster struct {
	mu       sync.Mutex
	sections []school.Section
	subjects []school.Subject
	students []school.Student
	watch    chan []school.Student
}

var _ Roster = (*fakeRoster)(nil)

func (r *fakeRoster) GetSection(_ context.Context, id string) (school.Section, error) {
	for _, s := range r.sections {
		if s.ID == id || s.Name == id {
			return s, nil
		}
	}
	return school.Section{}, school.ErrSectionNotFound
}

func (r *fakeRoster) GetSubject(_ context.Context, id string) (school.Subject, error) {
	for _, s := range r.subjects {
		if s.ID == id {
			return s, nil
		}
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (r *fakeRoster) GetStudent(_ context.Context, id string) (school.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.students {
		if s.ID == id {
			return s, nil
		}
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (r *fakeRoster) QuerySubjects(context.Context, school.QueryFilter) ([]school.Subject, error) {
	return r.subjects, nil
}

func (r *fakeRoster) SectionStudents(_ context.Context, section school.Section) ([]school.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return school.StudentsOf(r.students, section), nil
}

func (r *fakeRoster) WatchStudents(context.Context) (<-chan []school.Student, error) { return r.watch, nil }

type testLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

var _ core.Logger = (*testLogger)(nil)

func (l *testLogger) Debug(string, ...interface{}) {}
func (l *testLogger) Info(string, ...interface{})  {}
func (l *testLogger) Fatal(string, ...interface{}) {}

func (l *testLogger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *testLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type serviceTest struct {
	svc    Service
	repo   *fakeRepo
	roster *fakeRoster
	logger *testLogger
}

func newServiceTest(t *testing.T) *serviceTest {
	t.Helper()
	enLoc := en.New()
	translator, _ := ut.New(enLoc, enLoc).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	RegisterValidators(validate, translator)

	music := school.Subject{ID: "music", Name: "Music", Schedule: school.Schedule{
		Week2: []school.Slot{{Day: "tuesday", Period: 2}},
	}}
	roster := &fakeRoster{
		sections: []school.Section{{ID: "S1", Name: "7A"}},
		subjects: []school.Subject{{ID: "hr", Name: "Homeroom"}, music},
		students: []school.Student{
			{ID: "st1", FirstName: "Ann", LastName: "Lee", Section: "S1", SelectedSubjects: []string{"music"}},
			{ID: "st2", FirstName: "Bo", LastName: "Chan", Section: "7A"},
			{ID: "st3", FirstName: "Cy", LastName: "Diaz", Section: "8B"},
		},
		watch: make(chan []school.Student, 1),
	}
	repo := newFakeRepo()
	logger := new(testLogger)
	svc := NewService(repo, roster, testCalendar(t), core.AttendanceConfig{SaveTimeout: time.Second}, validate, logger)
	return &serviceTest{svc: svc, repo: repo, roster: roster, logger: logger}
}

func TestService_OpenSession_Validation(t *testing.T) {
	st := newServiceTest(t)
	ctx := context.Background()

	_, err := st.svc.OpenSession(ctx, OpenRequest{SectionID: "S1", SubjectID: "music", Date: "10/09/2024"}, "")
	var vErrs validator.ValidationErrors
	require.True(t, errors.As(err, &vErrs))
	assert.Equal(t, "date", vErrs[0].Field())

	_, err = st.svc.OpenSession(ctx, OpenRequest{SectionID: "nope", SubjectID: "music", Date: "2024-09-10"}, "")
	assert.Equal(t, ErrUnknownSection, err)

	_, err = st.svc.OpenSession(ctx, OpenRequest{SectionID: "S1", SubjectID: "nope", Date: "2024-09-10"}, "")
	assert.Equal(t, ErrUnknownSubject, err)
}

func TestService_SessionLifecycle(t *testing.T) {
	st := newServiceTest(t)
	ctx := context.Background()
	st.repo.put(core.Document{
		"id": "2024-09-10_S1_hr", "sectionId": "S1", "subjectId": "hr", "date": "2024-09-10",
		"records": map[string]interface{}{
			"st2": map[string]interface{}{"status": "late"},
		},
	})

	req := OpenRequest{SectionID: " S1 ", SubjectID: "music", Date: "2024-09-10"}
	sess, err := st.svc.OpenSession(ctx, req, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-09-10_S1_music", sess.ID)
	assert.Equal(t, StateReady, sess.State())

	again, err := st.svc.OpenSession(ctx, req, "teacher-1")
	require.NoError(t, err)
	assert.Same(t, sess, again)

	rows := sess.View(Filter{}).Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "st1", rows[0].Student.ID)
	assert.True(t, rows[0].Enrolled)
	assert.False(t, rows[1].Enrolled)
	require.NotNil(t, rows[1].Baseline)
	assert.Equal(t, StatusLate, rows[1].Baseline.Status)
	assert.Equal(t, StatusPresent, rows[1].Record.Status)

	require.NoError(t, sess.SetStatus("st1", StatusAbsent))
	snap, err := st.svc.SaveSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", snap.TakenBy)

	_, err = st.svc.Session(sess.ID)
	assert.Equal(t, ErrSessionNotFound, err)

	cell, err := st.svc.Cell(ctx, "st1", "music", "2024-09-10")
	require.NoError(t, err)
	assert.Equal(t, CellTaken, cell.Type)
	assert.Equal(t, StatusAbsent, cell.Status)

	// reopening picks up the saved marks
	sess, err = st.svc.OpenSession(ctx, req, "teacher-1")
	require.NoError(t, err)
	rec, err := sess.Record("st1")
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, rec.Status)

	require.NoError(t, st.svc.CloseSession(sess.ID))
	assert.Equal(t, ErrSessionNotFound, st.svc.CloseSession(sess.ID))
}

func TestService_OpenSession_Concurrent(t *testing.T) {
	st := newServiceTest(t)
	ctx := context.Background()
	req := OpenRequest{SectionID: "S1", SubjectID: "music", Date: "2024-09-10"}

	const n = 8
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := st.svc.OpenSession(ctx, req, "teacher-1")
			assert.NoError(t, err)
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	registered, err := st.svc.Session("2024-09-10_S1_music")
	require.NoError(t, err)
	assert.Equal(t, StateReady, registered.State())
	for _, sess := range sessions {
		assert.Same(t, registered, sess)
	}
}

func TestService_SaveSession_Failure(t *testing.T) {
	st := newServiceTest(t)
	ctx := context.Background()
	sess, err := st.svc.OpenSession(ctx, OpenRequest{SectionID: "S1", SubjectID: "hr", Date: "2024-09-10"}, "")
	require.NoError(t, err)
	require.NoError(t, sess.SetStatus("st2", StatusExcused))

	st.repo.saveErr = errors.New("unavailable")
	_, err = st.svc.SaveSession(ctx, sess.ID)
	assert.True(t, IsPersistenceError(err))
	assert.Len(t, st.logger.errors, 1)

	got, err := st.svc.Session(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateReady, got.State())
	rec, err := got.Record("st2")
	require.NoError(t, err)
	assert.Equal(t, StatusExcused, rec.Status)

	st.repo.saveErr = nil
	_, err = st.svc.SaveSession(ctx, sess.ID)
	require.NoError(t, err)
}

func TestService_Cell_PendingWithoutSnapshot(t *testing.T) {
	st := newServiceTest(t)
	cell, err := st.svc.Cell(context.Background(), "st1", "music", "2024-09-10")
	require.NoError(t, err)
	assert.Equal(t, Cell{Type: CellPending}, cell)

	_, err = st.svc.Cell(context.Background(), "nobody", "music", "2024-09-10")
	assert.Equal(t, ErrUnknownStudent, err)
	_, err = st.svc.Cell(context.Background(), "st1", "art", "2024-09-10")
	assert.Equal(t, ErrUnknownSubject, err)
}

func TestService_Summaries(t *testing.T) {
	st := newServiceTest(t)
	ctx := context.Background()
	st.repo.put(core.Document{
		"id": "2024-09-10_S1_hr", "sectionId": "S1", "subjectId": "hr", "date": "2024-09-10",
		"records": []interface{}{
			map[string]interface{}{"studentId": "st1", "status": "present"},
			map[string]interface{}{"studentName": "Bo Chan", "status": "absent"},
			map[string]interface{}{"studentId": "st3", "status": "sick"},
		},
	})

	subjects, err := st.svc.ScheduledSubjects(ctx, "2024-09-10")
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "hr", subjects[0].ID)

	daily, err := st.svc.DailySummary(ctx, "S1", "2024-09-10")
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, 2, daily[0].TotalTaken)
	assert.Equal(t, 50, daily[0].AttendanceRate)
	assert.Equal(t, SummaryNotTaken, daily[1].Status)
	assert.NotEmpty(t, st.logger.warns, "rejected record is logged")

	overall, err := st.svc.OverallSummary(ctx, "7A", "2024-09-10")
	require.NoError(t, err)
	assert.Equal(t, 2, overall.TotalStudents)
	assert.Equal(t, 1, overall.Present)
	assert.Equal(t, 1, overall.Absent)
	assert.True(t, overall.HomeroomTaken)
	assert.Equal(t, []string{"music"}, overall.PendingSubjectIDs)

	weekly, err := st.svc.WeeklySummary(ctx, "S1", "2024-09-09")
	require.NoError(t, err)
	require.Len(t, weekly, 7)
	assert.Equal(t, Week2, weekly[0].Parity)
	assert.Equal(t, SummaryTaken, weekly[1].Subjects[0].Status)
	assert.True(t, weekly[1].Subjects[1].Scheduled)
	assert.False(t, weekly[2].Subjects[1].Scheduled)

	_, err = st.svc.DailySummary(ctx, "nope", "2024-09-10")
	assert.Equal(t, ErrUnknownSection, err)
	_, err = st.svc.OverallSummary(ctx, "S1", "tomorrow")
	assert.True(t, core.IsValidationError(err))
}

func TestService_Watch(t *testing.T) {
	st := newServiceTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := st.svc.OpenSession(ctx, OpenRequest{SectionID: "S1", SubjectID: "music", Date: "2024-09-10"}, "")
	require.NoError(t, err)
	require.NoError(t, st.svc.Watch(ctx))

	t.Run("roster changes", func(t *testing.T) {
		st.roster.watch <- []school.Student{
			{ID: "st1", FirstName: "Ann", LastName: "Lee", Section: "S1"},
			{ID: "st4", FirstName: "Di", LastName: "Ng", Section: "S1"},
			{ID: "st3", FirstName: "Cy", LastName: "Diaz", Section: "8B"},
		}
		assert.Eventually(t, func() bool {
			_, err := sess.Record("st4")
			return err == nil
		}, time.Second, 5*time.Millisecond)
		_, err := sess.Record("st2")
		assert.Equal(t, ErrUnknownStudent, err)
	})

	t.Run("homeroom baseline", func(t *testing.T) {
		doc := core.NormalizeValue(map[string]interface{}(core.Document{
			"id": "2024-09-10_S1_hr", "sectionId": "S1", "subjectId": "hr", "date": "2024-09-10",
			"records": []interface{}{map[string]interface{}{"studentId": "st4", "status": "excused"}},
		})).(map[string]interface{})
		st.repo.watch <- []RawSnapshot{
			RawSnapshotFromDocument(doc),
			{ID: "2024-09-11_S1_hr", SectionID: "S1", SubjectID: "hr", Date: "2024-09-11"},
		}
		assert.Eventually(t, func() bool {
			base := sess.Baseline()
			return base != nil && base.Date == "2024-09-10"
		}, time.Second, 5*time.Millisecond)
		rec, ok := sess.Baseline().RecordOf("st4")
		require.True(t, ok)
		assert.Equal(t, StatusExcused, rec.Status)
	})
}
