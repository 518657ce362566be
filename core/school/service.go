package school

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
)

var (
	// errors
	ErrStudentNotFound = errors.New("student not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrSubjectNotFound = errors.New("subject not found")

	NowFunc = time.Now // mockable
)

type (
	// Repository is implemented by the storage layer.
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
		// WatchStudents pushes the whole student collection on every change, until ctx is done.
		WatchStudents(ctx context.Context) (<-chan []Student, error)

		CreateSection(ctx context.Context, s Section) (Section, error)
		GetSection(ctx context.Context, id string) (Section, error)
		QuerySections(ctx context.Context) ([]Section, error)
		UpdateSection(ctx context.Context, s Section) (Section, error)
		DeleteSection(ctx context.Context, id string) error

		CreateSubject(ctx context.Context, s Subject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		QuerySubjects(ctx context.Context) ([]Subject, error)
		UpdateSubject(ctx context.Context, s Subject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error
	}

	Service interface {
		CreateStudent(ctx context.Context, ns NewStudent) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, error)
		UpdateStudent(ctx context.Context, id string, ns NewStudent) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
		WatchStudents(ctx context.Context) (<-chan []Student, error)

		CreateSection(ctx context.Context, ns NewSection) (Section, error)
		GetSection(ctx context.Context, id string) (Section, error)
		QuerySections(ctx context.Context, filter QueryFilter) ([]Section, error)
		UpdateSection(ctx context.Context, id string, ns NewSection) (Section, error)
		DeleteSection(ctx context.Context, id string) error
		// SectionStudents returns the active students of a section, sorted by name.
		SectionStudents(ctx context.Context, section Section) ([]Student, error)

		CreateSubject(ctx context.Context, ns NewSubject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		QuerySubjects(ctx context.Context, filter QueryFilter) ([]Subject, error)
		UpdateSubject(ctx context.Context, id string, ns NewSubject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error
	}

	service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate) Service {
	return &service{repo: repo, validate: validate}
}

func (svc *service) now() time.Time { return NowFunc().UTC() }

// Students

func (svc *service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Student{}, err
	}
	now := svc.now()
	s := Student{ID: uuid.NewString(), CreatedAt: now}
	applyNewStudent(&s, ns, now)
	return svc.repo.CreateStudent(ctx, s)
}

func (svc *service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, error) {
	filter.Clean()
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	var sec *Section
	if filter.Section != "" {
		if s, err := svc.findSection(ctx, filter.Section); err == nil {
			sec = &s
		} else if errors.Cause(err) != ErrSectionNotFound {
			return nil, err
		}
	}

	res := make([]Student, 0, len(students))
	for _, s := range students {
		if filter.Section != "" && !inSection(s, filter.Section, sec) {
			continue
		}
		if filter.Search != "" && !(core.ContainsFold(s.FullName(), filter.Search) ||
			core.ContainsFold(s.StudentID, filter.Search) ||
			core.ContainsFold(s.ID, filter.Search)) {
			continue
		}
		res = append(res, s)
	}
	sortStudents(res)
	return res, nil
}

func (svc *service) UpdateStudent(ctx context.Context, id string, ns NewStudent) (Student, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Student{}, err
	}
	s, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	applyNewStudent(&s, ns, svc.now())
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *service) DeleteStudent(ctx context.Context, id string) error {
	return svc.repo.DeleteStudent(ctx, id)
}

func (svc *service) WatchStudents(ctx context.Context) (<-chan []Student, error) {
	return svc.repo.WatchStudents(ctx)
}

func applyNewStudent(s *Student, ns NewStudent, now time.Time) {
	s.StudentID = ns.StudentID
	s.FirstName = ns.FirstName
	s.LastName = ns.LastName
	s.Year = ns.Year
	s.Section = ns.Section
	s.Email = ns.Email
	s.Active = ns.Active
	s.SelectedSubjects = ns.SelectedSubjects
	s.SubjectEnrollments = ns.SubjectEnrollments
	s.UpdatedAt = now
}

// Sections

func (svc *service) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Section{}, err
	}
	now := svc.now()
	return svc.repo.CreateSection(ctx, Section{
		ID:        uuid.NewString(),
		Name:      ns.Name,
		Year:      ns.Year,
		AdviserID: ns.AdviserID,
		Room:      ns.Room,
		Active:    ns.Active,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) GetSection(ctx context.Context, id string) (Section, error) {
	return svc.repo.GetSection(ctx, id)
}

func (svc *service) QuerySections(ctx context.Context, filter QueryFilter) ([]Section, error) {
	filter.Clean()
	sections, err := svc.repo.QuerySections(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	res := make([]Section, 0, len(sections))
	for _, s := range sections {
		if filter.Search != "" && !core.ContainsFold(s.Name, filter.Search) {
			continue
		}
		res = append(res, s)
	}
	sort.SliceStable(res, func(i, j int) bool { return strings.ToLower(res[i].Name) < strings.ToLower(res[j].Name) })
	return res, nil
}

func (svc *service) UpdateSection(ctx context.Context, id string, ns NewSection) (Section, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Section{}, err
	}
	s, err := svc.repo.GetSection(ctx, id)
	if err != nil {
		return Section{}, err
	}
	s.Name = ns.Name
	s.Year = ns.Year
	s.AdviserID = ns.AdviserID
	s.Room = ns.Room
	s.Active = ns.Active
	s.UpdatedAt = svc.now()
	return svc.repo.UpdateSection(ctx, s)
}

func (svc *service) DeleteSection(ctx context.Context, id string) error {
	return svc.repo.DeleteSection(ctx, id)
}

func (svc *service) SectionStudents(ctx context.Context, section Section) ([]Student, error) {
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return StudentsOf(students, section), nil
}

// findSection looks a section up by id first, then by name.
func (svc *service) findSection(ctx context.Context, ref string) (Section, error) {
	if s, err := svc.repo.GetSection(ctx, ref); err == nil {
		return s, nil
	} else if errors.Cause(err) != ErrSectionNotFound {
		return Section{}, err
	}
	sections, err := svc.repo.QuerySections(ctx)
	if err != nil {
		return Section{}, errors.Wrap(err, "querying sections")
	}
	for _, s := range sections {
		if strings.EqualFold(s.Name, ref) {
			return s, nil
		}
	}
	return Section{}, ErrSectionNotFound
}

// inSection matches the student's section reference against ref, or against sec when ref resolved to one.
func inSection(s Student, ref string, sec *Section) bool {
	if s.Section == "" {
		return false
	}
	if strings.EqualFold(s.Section, ref) {
		return true
	}
	return sec != nil && s.InSection(*sec)
}

// Subjects

func (svc *service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Subject{}, err
	}
	now := svc.now()
	s := Subject{ID: uuid.NewString(), CreatedAt: now}
	applyNewSubject(&s, ns, now)
	return svc.repo.CreateSubject(ctx, s)
}

func (svc *service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) QuerySubjects(ctx context.Context, filter QueryFilter) ([]Subject, error) {
	filter.Clean()
	subjects, err := svc.repo.QuerySubjects(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	res := make([]Subject, 0, len(subjects))
	for _, s := range subjects {
		if filter.Search != "" && !(core.ContainsFold(s.Name, filter.Search) || core.ContainsFold(s.Code, filter.Search)) {
			continue
		}
		res = append(res, s)
	}
	return res, nil
}

func (svc *service) UpdateSubject(ctx context.Context, id string, ns NewSubject) (Subject, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Subject{}, err
	}
	s, err := svc.repo.GetSubject(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	applyNewSubject(&s, ns, svc.now())
	return svc.repo.UpdateSubject(ctx, s)
}

func (svc *service) DeleteSubject(ctx context.Context, id string) error {
	return svc.repo.DeleteSubject(ctx, id)
}

func applyNewSubject(s *Subject, ns NewSubject, now time.Time) {
	s.Name = ns.Name
	s.Code = ns.Code
	s.Room = ns.Room
	s.Color = ns.Color
	s.Active = ns.Active
	s.IsHomeroom = ns.IsHomeroom
	s.TeacherIDs = ns.TeacherIDs
	s.Schedule = ns.Schedule
	s.UpdatedAt = now
}

func sortStudents(students []Student) {
	sort.SliceStable(students, func(i, j int) bool {
		return strings.ToLower(students[i].FullName()) < strings.ToLower(students[j].FullName())
	})
}
