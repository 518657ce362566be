package attendance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/school"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateLoading State = iota
	StateReady
	StateSaving
	StateSaved
	StateError
)

var stateNames = [...]string{"loading", "ready", "saving", "saved", "error"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Live reports whether a registered session in this state is still the one to hand out.
func (s State) Live() bool { return s == StateReady || s == StateSaving }

// Saver persists a snapshot.
type Saver interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

type SaverFunc func(ctx context.Context, snap Snapshot) error

func (f SaverFunc) SaveSnapshot(ctx context.Context, snap Snapshot) error { return f(ctx, snap) }

type SessionOptions struct {
	NotesMaxLen  int
	SaveTimeout  time.Duration
	SaveRetries  int
	RetryBackoff time.Duration
	IsHomeroom   bool
	Now          func() time.Time
}

func (o *SessionOptions) setDefaults() {
	if o.NotesMaxLen <= 0 {
		o.NotesMaxLen = DefaultNotesMaxLen
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = 10 * time.Second
	}
	if o.SaveRetries < 0 {
		o.SaveRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 200 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type (
	// Filter narrows down the rows of a session view.
	Filter struct {
		Search string `query:"search" json:"search"`
		Status string `query:"status" json:"status"` // a status, "not-recorded" or empty for all
		Grade  string `query:"grade" json:"grade"`
		Sort   string `query:"sort" json:"sort"` // name (default), grade, section
	}

	Row struct {
		Student  school.Student `json:"student"`
		Record   Record         `json:"record"`
		Baseline *Record        `json:"baseline,omitempty"` // homeroom record of the day, read-only
		Enrolled bool           `json:"enrolled"`
	}

	View struct {
		ID        string         `json:"id"`
		SectionID string         `json:"sectionId"`
		Subject   school.Subject `json:"subject"`
		Date      string         `json:"date"`
		State     State          `json:"state"`
		Error     string         `json:"error,omitempty"`
		Rows      []Row          `json:"rows"`
		Stats     SubjectSummary `json:"stats"`
	}
)

// Session holds the editable records of one section, for one subject, on one day.
// Every student of the roster has exactly one record while the session is Ready.
type Session struct {
	ID        string
	SectionID string
	Subject   school.Subject
	Date      string
	TakenBy   string

	mu            sync.Mutex
	opts          SessionOptions
	openedAt      time.Time
	state         State
	err           error
	closed        bool
	roster        []school.Student
	records       map[string]Record
	baseline      *Snapshot
	pendingRoster []school.Student
	hasPending    bool
}

func NewSession(sectionID string, subject school.Subject, date, takenBy string, opts SessionOptions) *Session {
	opts.setDefaults()
	return &Session{
		ID:        SnapshotID(date, sectionID, subject.ID),
		SectionID: sectionID,
		Subject:   subject,
		Date:      date,
		TakenBy:   takenBy,
		opts:      opts,
		openedAt:  opts.Now().UTC(),
		state:     StateLoading,
		records:   make(map[string]Record),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the load error of a session in the Error state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Load sets the roster and moves the session to Ready. Students with a recorded mark in saved (the
// already persisted snapshot of this subject, may be nil) keep it, matched by id only; everyone else
// starts blank.
// The baseline is only kept for reference.
func (s *Session) Load(students []school.Student, baseline, saved *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != StateLoading {
		return ErrSessionNotEditable
	}

	s.baseline = baseline
	s.setRoster(students)
	s.records = make(map[string]Record, len(s.roster))
	for _, stu := range s.roster {
		rec := s.blankRecord(stu)
		if saved != nil {
			if own, ok := MatchStudentByID(stu, saved.Records); ok && own.Status.Recorded() {
				rec = own
				rec.StudentID = stu.ID
				rec.StudentName = stu.FullName()
			}
		}
		s.records[stu.ID] = rec
	}
	s.state = StateReady
	return nil
}

// Fail moves a loading session to the Error state.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading {
		s.state = StateError
		s.err = err
	}
}

// Initialize resets the roster to students, each with a blank record. It never copies the
// baseline and calling it again yields the same records.
func (s *Session) Initialize(students []school.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return err
	}
	s.setRoster(students)
	s.records = make(map[string]Record, len(s.roster))
	for _, stu := range s.roster {
		s.records[stu.ID] = s.blankRecord(stu)
	}
	return nil
}

// SetBaseline replaces the homeroom reference records.
func (s *Session) SetBaseline(baseline *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = baseline
}

func (s *Session) Baseline() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// SetStatus updates the status and timestamp of a record; the other fields are preserved.
func (s *Session) SetStatus(studentID string, status Status) error {
	status, err := ParseStatus(string(status))
	if err != nil {
		return err
	}
	return s.update(studentID, func(rec *Record) {
		rec.Status = status
		rec.Timestamp = s.opts.Now().UTC()
	})
}

// SetNotes updates the notes of a record, cutting them down to the configured length.
func (s *Session) SetNotes(studentID, notes string) error {
	notes = core.Truncate(notes, s.opts.NotesMaxLen)
	return s.update(studentID, func(rec *Record) { rec.Notes = notes })
}

func (s *Session) SetBehaviorFlag(studentID string, flag bool) error {
	return s.update(studentID, func(rec *Record) { rec.HasBehaviorIssue = flag })
}

func (s *Session) SetMeritFlag(studentID string, flag bool) error {
	return s.update(studentID, func(rec *Record) { rec.HasMerit = flag })
}

// BulkSetStatus sets status on the students visible under filter only, and returns their ids.
func (s *Session) BulkSetStatus(filter Filter, status Status) ([]string, error) {
	status, err := ParseStatus(string(status))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.checkEditable(); err != nil {
		return nil, err
	}

	rows := s.rows(filter) // resolved before any change
	now := s.opts.Now().UTC()
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		rec := s.records[row.Student.ID]
		rec.Status = status
		rec.Timestamp = now
		s.records[row.Student.ID] = rec
		ids = append(ids, row.Student.ID)
	}
	return ids, nil
}

// Record returns the current record of a student.
func (s *Session) Record(studentID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[studentID]
	if !ok {
		return Record{}, ErrUnknownStudent
	}
	return rec, nil
}

// Records returns a copy of the record map.
func (s *Session) Records() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]Record, len(s.records))
	for id, rec := range s.records {
		cp[id] = rec
	}
	return cp
}

// View derives the filtered and sorted rows, without changing anything.
func (s *Session) View(filter Filter) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:        s.ID,
		SectionID: s.SectionID,
		Subject:   s.Subject,
		Date:      s.Date,
		State:     s.state,
		Rows:      s.rows(filter),
		Stats:     s.stats(),
	}
	if s.err != nil {
		v.Error = s.err.Error()
	}
	return v
}

// Stats summarizes the current records.
func (s *Session) Stats() SubjectSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats()
}

// SyncRoster reconciles the records with a new roster: records of students who left are dropped,
// newcomers get a blank record. While saving, the roster is queued and applied once the session is
// editable again; it is dropped once the session is saved.
func (s *Session) SyncRoster(students []school.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
	case s.state == StateSaving:
		s.pendingRoster = students
		s.hasPending = true
	case s.state == StateReady:
		s.applyRoster(students)
	}
}

// Save persists the session as a new snapshot version. The store call runs outside the lock, with a
// timeout and retries. On failure the session goes back to Ready with its records intact and a
// *PersistenceError is returned.
func (s *Session) Save(ctx context.Context, saver Saver) (Snapshot, error) {
	s.mu.Lock()
	if err := s.checkEditable(); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	s.state = StateSaving
	snap := s.snapshot()
	s.mu.Unlock()

	var (
		err      error
		attempts int
	)
	for attempts = 1; attempts <= s.opts.SaveRetries+1; attempts++ {
		err = s.trySave(ctx, saver, snap)
		if err == nil || ctx.Err() != nil || attempts > s.opts.SaveRetries {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempts) * s.opts.RetryBackoff):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateReady
		if s.hasPending {
			s.applyRoster(s.pendingRoster)
		}
		s.pendingRoster, s.hasPending = nil, false
		return Snapshot{}, &PersistenceError{Err: err, Attempts: attempts}
	}
	s.state = StateSaved
	s.pendingRoster, s.hasPending = nil, false
	return snap, nil
}

func (s *Session) trySave(ctx context.Context, saver Saver, snap Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SaveTimeout)
	defer cancel()
	return errors.Wrap(saver.SaveSnapshot(ctx, snap), "saving snapshot")
}

// Close discards the session; nothing is persisted.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = make(map[string]Record)
	s.pendingRoster, s.hasPending = nil, false
}

// internals, called with the lock held

func (s *Session) checkEditable() error {
	if s.closed || s.state != StateReady {
		return ErrSessionNotEditable
	}
	return nil
}

func (s *Session) update(studentID string, fn func(rec *Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return err
	}
	rec, ok := s.records[studentID]
	if !ok {
		return ErrUnknownStudent
	}
	fn(&rec)
	s.records[studentID] = rec
	return nil
}

func (s *Session) blankRecord(stu school.Student) Record {
	rec := NewRecord(stu.ID, s.openedAt)
	rec.StudentName = stu.FullName()
	return rec
}

func (s *Session) setRoster(students []school.Student) {
	seen := make(map[string]bool, len(students))
	s.roster = make([]school.Student, 0, len(students))
	for _, stu := range students {
		if stu.ID == "" || seen[stu.ID] {
			continue
		}
		seen[stu.ID] = true
		s.roster = append(s.roster, stu)
	}
}

func (s *Session) applyRoster(students []school.Student) {
	s.setRoster(students)
	records := make(map[string]Record, len(s.roster))
	for _, stu := range s.roster {
		if rec, ok := s.records[stu.ID]; ok {
			records[stu.ID] = rec
		} else {
			records[stu.ID] = s.blankRecord(stu)
		}
	}
	s.records = records
}

func (s *Session) stats() SubjectSummary {
	records := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	return Summarize(s.Subject, records)
}

func (s *Session) snapshot() Snapshot {
	records := make([]Record, 0, len(s.roster))
	for _, stu := range s.roster {
		if rec, ok := s.records[stu.ID]; ok {
			records = append(records, rec)
		}
	}
	return Snapshot{
		ID:        s.ID,
		SectionID: s.SectionID,
		SubjectID: s.Subject.ID,
		Date:      s.Date,
		TakenBy:   s.TakenBy,
		Time:      s.opts.Now().UTC(),
		Records:   records,
	}
}

func (s *Session) rows(filter Filter) []Row {
	search := strings.ToLower(core.CleanString(filter.Search))
	status := core.CleanString(filter.Status, true /* lower */)
	grade := core.CleanString(filter.Grade)

	rows := make([]Row, 0, len(s.roster))
	for _, stu := range s.roster {
		rec, ok := s.records[stu.ID]
		if !ok {
			continue
		}
		if search != "" && !(strings.Contains(strings.ToLower(stu.FullName()), search) ||
			strings.Contains(strings.ToLower(stu.ID), search) ||
			strings.Contains(strings.ToLower(stu.StudentID), search)) {
			continue
		}
		if status != "" && status != rec.Status.String() {
			continue
		}
		if grade != "" && !sameGrade(stu.Year, grade) {
			continue
		}

		row := Row{
			Student:  stu,
			Record:   rec,
			Enrolled: s.opts.IsHomeroom || stu.IsEnrolledIn(s.Subject),
		}
		if s.baseline != nil {
			if m, ok := MatchStudent(stu, s.baseline.Records); ok {
				base := m.Record
				row.Baseline = &base
			}
		}
		rows = append(rows, row)
	}
	sortRows(rows, filter.Sort)
	return rows
}

func sameGrade(g school.Grade, want string) bool {
	if strings.EqualFold(string(g), want) {
		return true
	}
	n := g.Int()
	return n != 0 && n == school.Grade(want).Int()
}

func sortRows(rows []Row, key string) {
	name := func(r Row) string { return strings.ToLower(r.Student.FullName()) }
	var less func(a, b Row) bool
	switch core.CleanString(key, true /* lower */) {
	case "grade":
		less = func(a, b Row) bool {
			if ga, gb := a.Student.Year.Int(), b.Student.Year.Int(); ga != gb {
				return ga < gb
			}
			return name(a) < name(b)
		}
	case "section":
		less = func(a, b Row) bool {
			if sa, sb := strings.ToLower(a.Student.Section), strings.ToLower(b.Student.Section); sa != sb {
				return sa < sb
			}
			return name(a) < name(b)
		}
	default:
		less = func(a, b Row) bool { return name(a) < name(b) }
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}
