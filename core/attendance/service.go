package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/school"
)

var NowFunc = time.Now // mockable

type (
	// Repository is implemented by the storage layer.
	Repository interface {
		Saver
		GetSnapshot(ctx context.Context, id string) (RawSnapshot, error)
		QuerySnapshots(ctx context.Context, sectionID, date string) ([]RawSnapshot, error)
		// WatchSnapshots pushes every snapshot of the collection on each change, until ctx is done.
		WatchSnapshots(ctx context.Context) (<-chan []RawSnapshot, error)
	}

	// Roster is the part of the school service attendance depends on.
	Roster interface {
		GetSection(ctx context.Context, id string) (school.Section, error)
		GetSubject(ctx context.Context, id string) (school.Subject, error)
		GetStudent(ctx context.Context, id string) (school.Student, error)
		QuerySubjects(ctx context.Context, filter school.QueryFilter) ([]school.Subject, error)
		SectionStudents(ctx context.Context, section school.Section) ([]school.Student, error)
		WatchStudents(ctx context.Context) (<-chan []school.Student, error)
	}

	OpenRequest struct {
		SectionID string `json:"sectionId" validate:"required"`
		SubjectID string `json:"subjectId" validate:"required"`
		Date      string `json:"date" validate:"required,isodate"`
	}

	Service interface {
		Calendar() *Calendar
		ScheduledSubjects(ctx context.Context, date string) ([]school.Subject, error)

		OpenSession(ctx context.Context, req OpenRequest, takenBy string) (*Session, error)
		Session(id string) (*Session, error)
		SaveSession(ctx context.Context, id string) (Snapshot, error)
		CloseSession(id string) error

		DailySummary(ctx context.Context, sectionID, date string) ([]SubjectSummary, error)
		WeeklySummary(ctx context.Context, sectionID, weekStart string) ([]DaySummary, error)
		OverallSummary(ctx context.Context, sectionID, date string) (OverallSummary, error)
		Cell(ctx context.Context, studentID, subjectID, date string) (Cell, error)

		// Watch keeps the open sessions in sync with the store until ctx is done.
		Watch(ctx context.Context) error
	}

	openSession struct {
		session *Session
		section school.Section
	}

	service struct {
		repo     Repository
		roster   Roster
		cal      *Calendar
		conf     core.AttendanceConfig
		validate *validator.Validate
		logger   core.Logger

		mu       sync.RWMutex
		sessions map[string]*openSession
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	roster Roster,
	cal *Calendar,
	conf core.AttendanceConfig,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		roster:   roster,
		cal:      cal,
		conf:     conf,
		validate: validate,
		logger:   logger,
		sessions: make(map[string]*openSession),
	}
}

func (svc *service) Calendar() *Calendar { return svc.cal }

func (svc *service) ScheduledSubjects(ctx context.Context, date string) ([]school.Subject, error) {
	day, err := svc.cal.ParseDate(date)
	if err != nil {
		return nil, err
	}
	subjects, err := svc.roster.QuerySubjects(ctx, school.QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return svc.cal.ScheduledSubjects(subjects, day), nil
}

// Sessions

func (svc *service) OpenSession(ctx context.Context, req OpenRequest, takenBy string) (*Session, error) {
	req.SectionID = core.CleanString(req.SectionID)
	req.SubjectID = core.CleanString(req.SubjectID)
	req.Date = core.CleanString(req.Date)
	if err := svc.validate.Struct(req); err != nil {
		return nil, err
	}

	section, err := svc.roster.GetSection(ctx, req.SectionID)
	if err != nil {
		if errors.Cause(err) == school.ErrSectionNotFound {
			return nil, ErrUnknownSection
		}
		return nil, errors.Wrap(err, "getting section")
	}
	subject, err := svc.roster.GetSubject(ctx, req.SubjectID)
	if err != nil {
		if errors.Cause(err) == school.ErrSubjectNotFound {
			return nil, ErrUnknownSubject
		}
		return nil, errors.Wrap(err, "getting subject")
	}

	id := SnapshotID(req.Date, section.ID, subject.ID)
	svc.mu.RLock()
	existing, ok := svc.sessions[id]
	svc.mu.RUnlock()
	if ok && existing.session.State().Live() {
		return existing.session, nil
	}

	sess := NewSession(section.ID, subject, req.Date, takenBy, SessionOptions{
		NotesMaxLen: svc.conf.NotesMaxLen,
		SaveTimeout: svc.conf.SaveTimeout,
		SaveRetries: svc.conf.SaveRetries,
		IsHomeroom:  svc.cal.IsHomeroom(subject),
		Now:         NowFunc,
	})
	if err = svc.load(ctx, sess, section); err != nil {
		sess.Fail(err)
		return nil, errors.Wrap(err, "loading attendance session")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	// a concurrent open may have registered the session while this one was loading
	if existing, ok := svc.sessions[id]; ok && existing.session.State().Live() {
		sess.Close()
		return existing.session, nil
	}
	svc.sessions[id] = &openSession{session: sess, section: section}
	return sess, nil
}

func (svc *service) load(ctx context.Context, sess *Session, section school.Section) error {
	students, err := svc.roster.SectionStudents(ctx, section)
	if err != nil {
		return errors.Wrap(err, "getting section students")
	}
	snaps, err := svc.daySnapshots(ctx, section.ID, sess.Date)
	if err != nil {
		return err
	}

	var baseline, saved *Snapshot
	if snap, ok := snaps[sess.Subject.ID]; ok {
		saved = &snap
	}
	if !svc.cal.IsHomeroom(sess.Subject) {
		subjects, err := svc.roster.QuerySubjects(ctx, school.QueryFilter{})
		if err != nil {
			return errors.Wrap(err, "querying subjects")
		}
		if homeroom, ok := svc.cal.Homeroom(subjects); ok {
			if snap, ok := snaps[homeroom.ID]; ok {
				baseline = &snap
			}
		}
	}
	return sess.Load(students, baseline, saved)
}

func (svc *service) Session(id string) (*Session, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	if o, ok := svc.sessions[id]; ok {
		return o.session, nil
	}
	return nil, ErrSessionNotFound
}

// SaveSession persists a session. A saved session is closed and leaves the registry.
func (svc *service) SaveSession(ctx context.Context, id string) (Snapshot, error) {
	sess, err := svc.Session(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := sess.Save(ctx, svc.repo)
	if err != nil {
		if IsPersistenceError(err) {
			svc.logger.Error(fmt.Sprintf("saving attendance session %s", id), err)
		}
		return Snapshot{}, err
	}
	svc.remove(id)
	return snap, nil
}

// CloseSession discards a session and its unsaved edits.
func (svc *service) CloseSession(id string) error {
	sess, err := svc.Session(id)
	if err != nil {
		return err
	}
	sess.Close()
	svc.remove(id)
	return nil
}

func (svc *service) remove(id string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.sessions, id)
}

// Summaries

func (svc *service) DailySummary(ctx context.Context, sectionID, date string) ([]SubjectSummary, error) {
	day, err := svc.cal.ParseDate(date)
	if err != nil {
		return nil, err
	}
	section, err := svc.section(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	subjects, err := svc.roster.QuerySubjects(ctx, school.QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	snaps, err := svc.daySnapshots(ctx, section.ID, FormatDate(day))
	if err != nil {
		return nil, err
	}
	return DailySummary(svc.cal.ScheduledSubjects(subjects, day), snaps), nil
}

func (svc *service) WeeklySummary(ctx context.Context, sectionID, weekStart string) ([]DaySummary, error) {
	start, err := svc.cal.ParseDate(weekStart)
	if err != nil {
		return nil, err
	}
	section, err := svc.section(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	subjects, err := svc.activeSubjects(ctx)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]Snapshots, 7)
	for _, day := range svc.cal.WeekDays(start) {
		date := FormatDate(day)
		if byDate[date], err = svc.daySnapshots(ctx, section.ID, date); err != nil {
			return nil, err
		}
	}
	return WeeklySummary(svc.cal, subjects, start, byDate), nil
}

func (svc *service) OverallSummary(ctx context.Context, sectionID, date string) (OverallSummary, error) {
	day, err := svc.cal.ParseDate(date)
	if err != nil {
		return OverallSummary{}, err
	}
	section, err := svc.section(ctx, sectionID)
	if err != nil {
		return OverallSummary{}, err
	}
	students, err := svc.roster.SectionStudents(ctx, section)
	if err != nil {
		return OverallSummary{}, errors.Wrap(err, "getting section students")
	}
	subjects, err := svc.roster.QuerySubjects(ctx, school.QueryFilter{})
	if err != nil {
		return OverallSummary{}, errors.Wrap(err, "querying subjects")
	}
	snaps, err := svc.daySnapshots(ctx, section.ID, FormatDate(day))
	if err != nil {
		return OverallSummary{}, err
	}

	sum := Overall(svc.cal, day, students, subjects, snaps)
	if len(sum.AmbiguousStudents) > 0 {
		svc.logger.Warn(
			fmt.Sprintf("ambiguous homeroom records for section %s on %s", section.ID, sum.Date),
			map[string]interface{}{"students": sum.AmbiguousStudents},
		)
	}
	return sum, nil
}

func (svc *service) Cell(ctx context.Context, studentID, subjectID, date string) (Cell, error) {
	day, err := svc.cal.ParseDate(date)
	if err != nil {
		return Cell{}, err
	}
	stu, err := svc.roster.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == school.ErrStudentNotFound {
			return Cell{}, ErrUnknownStudent
		}
		return Cell{}, errors.Wrap(err, "getting student")
	}
	subj, err := svc.roster.GetSubject(ctx, subjectID)
	if err != nil {
		if errors.Cause(err) == school.ErrSubjectNotFound {
			return Cell{}, ErrUnknownSubject
		}
		return Cell{}, errors.Wrap(err, "getting subject")
	}

	var snap *Snapshot
	if stu.Section != "" {
		sectionID := stu.Section
		if sec, err := svc.section(ctx, stu.Section); err == nil {
			sectionID = sec.ID
		}
		raw, err := svc.repo.GetSnapshot(ctx, SnapshotID(FormatDate(day), sectionID, subj.ID))
		switch {
		case err == nil:
			s := svc.ingest(raw, nil)
			snap = &s
		case errors.Cause(err) != ErrSnapshotNotFound:
			return Cell{}, errors.Wrap(err, "getting snapshot")
		}
	}

	cell := AttendanceCell(stu, snap)
	if cell.Ambiguous {
		svc.logger.Warn(fmt.Sprintf("ambiguous %s record for student %s on %s", subj.Name, stu.ID, FormatDate(day)))
	}
	return cell, nil
}

func (svc *service) section(ctx context.Context, id string) (school.Section, error) {
	section, err := svc.roster.GetSection(ctx, core.CleanString(id))
	if err != nil {
		if errors.Cause(err) == school.ErrSectionNotFound {
			return school.Section{}, ErrUnknownSection
		}
		return school.Section{}, errors.Wrap(err, "getting section")
	}
	return section, nil
}

func (svc *service) activeSubjects(ctx context.Context) ([]school.Subject, error) {
	subjects, err := svc.roster.QuerySubjects(ctx, school.QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	active := make([]school.Subject, 0, len(subjects))
	for _, s := range subjects {
		if s.IsActive() {
			active = append(active, s)
		}
	}
	return active, nil
}

func (svc *service) daySnapshots(ctx context.Context, sectionID, date string) (Snapshots, error) {
	raws, err := svc.repo.QuerySnapshots(ctx, sectionID, date)
	if err != nil {
		return nil, errors.Wrap(err, "querying snapshots")
	}
	snaps := make(Snapshots, len(raws))
	for _, raw := range raws {
		snap := svc.ingest(raw, nil)
		snaps[snap.SubjectID] = snap
	}
	return snaps, nil
}

// ingest normalizes a stored snapshot, logging the records it had to reject.
func (svc *service) ingest(raw RawSnapshot, prev *Snapshot) Snapshot {
	snap, errs := Ingest(raw, prev)
	for _, err := range errs {
		svc.logger.Warn("rejected attendance record", err)
	}
	return snap
}

// Listeners

func (svc *service) Watch(ctx context.Context) error {
	students, err := svc.roster.WatchStudents(ctx)
	if err != nil {
		return errors.Wrap(err, "watching students")
	}
	snapshots, err := svc.repo.WatchSnapshots(ctx)
	if err != nil {
		return errors.Wrap(err, "watching snapshots")
	}

	go func() {
		for all := range students {
			svc.syncRosters(all)
		}
	}()
	go func() {
		for raws := range snapshots {
			svc.syncBaselines(raws)
		}
	}()
	return nil
}

func (svc *service) openSessions() []*openSession {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	res := make([]*openSession, 0, len(svc.sessions))
	for _, o := range svc.sessions {
		res = append(res, o)
	}
	return res
}

// syncRosters pushes each open session the current students of its section.
func (svc *service) syncRosters(all []school.Student) {
	for _, o := range svc.openSessions() {
		o.session.SyncRoster(school.StudentsOf(all, o.section))
	}
}

// syncBaselines refreshes the homeroom reference of the open sessions.
func (svc *service) syncBaselines(raws []RawSnapshot) {
	sessions := svc.openSessions()
	if len(sessions) == 0 {
		return
	}
	for _, raw := range raws {
		for _, o := range sessions {
			sess := o.session
			if raw.SectionID != o.section.ID || raw.Date != sess.Date || raw.SubjectID == sess.Subject.ID {
				continue
			}
			prev := sess.Baseline()
			if prev == nil {
				// only a homeroom snapshot can become a baseline
				subj, err := svc.roster.GetSubject(context.Background(), raw.SubjectID)
				if err != nil || !svc.cal.IsHomeroom(subj) {
					continue
				}
			} else if prev.SubjectID != raw.SubjectID {
				continue
			}
			snap := svc.ingest(raw, prev)
			sess.SetBaseline(&snap)
		}
	}
}
