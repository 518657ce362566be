package docrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/school"
)

type schoolRepository struct {
	db     core.DocStore
	logger core.Logger
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db core.DocStore, logger core.Logger) school.Repository {
	return &schoolRepository{db: db, logger: logger}
}

func (repo *schoolRepository) set(ctx context.Context, coll, id string, v interface{}) error {
	doc, err := core.ToDocument(v)
	if err != nil {
		return err
	}
	return repo.db.Set(ctx, coll, id, doc)
}

// get decodes the document into dst, mapping a missing document to notFound.
func (repo *schoolRepository) get(ctx context.Context, coll, id string, dst interface{}, notFound error) error {
	doc, err := repo.db.Get(ctx, coll, id)
	if err != nil {
		if errors.Cause(err) == core.ErrDocNotFound {
			return notFound
		}
		return errors.Wrapf(err, "getting %s", coll)
	}
	return core.FromDocument(doc, dst)
}

func (repo *schoolRepository) exists(ctx context.Context, coll, id string, notFound error) error {
	if _, err := repo.db.Get(ctx, coll, id); err != nil {
		if errors.Cause(err) == core.ErrDocNotFound {
			return notFound
		}
		return errors.Wrapf(err, "getting %s", coll)
	}
	return nil
}

// Students

func (repo *schoolRepository) CreateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	return s, repo.set(ctx, core.CollStudents, s.ID, s)
}

func (repo *schoolRepository) GetStudent(ctx context.Context, id string) (school.Student, error) {
	var s school.Student
	err := repo.get(ctx, core.CollStudents, id, &s, school.ErrStudentNotFound)
	return s, err
}

func (repo *schoolRepository) decodeStudents(docs []core.Document) []school.Student {
	students := make([]school.Student, 0, len(docs))
	for _, doc := range docs {
		var s school.Student
		if err := core.FromDocument(doc, &s); err != nil {
			repo.logger.Warn("skipping malformed student "+doc.ID(), err)
			continue
		}
		students = append(students, s)
	}
	return students
}

func (repo *schoolRepository) QueryStudents(ctx context.Context) ([]school.Student, error) {
	docs, err := repo.db.Query(ctx, core.CollStudents)
	if err != nil {
		return nil, err
	}
	return repo.decodeStudents(docs), nil
}

func (repo *schoolRepository) UpdateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	if err := repo.exists(ctx, core.CollStudents, s.ID, school.ErrStudentNotFound); err != nil {
		return school.Student{}, err
	}
	return s, repo.set(ctx, core.CollStudents, s.ID, s)
}

func (repo *schoolRepository) DeleteStudent(ctx context.Context, id string) error {
	if err := repo.exists(ctx, core.CollStudents, id, school.ErrStudentNotFound); err != nil {
		return err
	}
	return repo.db.Delete(ctx, core.CollStudents, id)
}

func (repo *schoolRepository) WatchStudents(ctx context.Context) (<-chan []school.Student, error) {
	docsCh, err := repo.db.Subscribe(ctx, core.CollStudents)
	if err != nil {
		return nil, err
	}
	ch := make(chan []school.Student)
	go func() {
		defer close(ch)
		for docs := range docsCh {
			select {
			case ch <- repo.decodeStudents(docs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Sections

func (repo *schoolRepository) CreateSection(ctx context.Context, s school.Section) (school.Section, error) {
	return s, repo.set(ctx, core.CollSections, s.ID, s)
}

func (repo *schoolRepository) GetSection(ctx context.Context, id string) (school.Section, error) {
	var s school.Section
	err := repo.get(ctx, core.CollSections, id, &s, school.ErrSectionNotFound)
	return s, err
}

func (repo *schoolRepository) QuerySections(ctx context.Context) ([]school.Section, error) {
	docs, err := repo.db.Query(ctx, core.CollSections)
	if err != nil {
		return nil, err
	}
	sections := make([]school.Section, 0, len(docs))
	for _, doc := range docs {
		var s school.Section
		if err = core.FromDocument(doc, &s); err != nil {
			repo.logger.Warn("skipping malformed section "+doc.ID(), err)
			continue
		}
		sections = append(sections, s)
	}
	return sections, nil
}

func (repo *schoolRepository) UpdateSection(ctx context.Context, s school.Section) (school.Section, error) {
	if err := repo.exists(ctx, core.CollSections, s.ID, school.ErrSectionNotFound); err != nil {
		return school.Section{}, err
	}
	return s, repo.set(ctx, core.CollSections, s.ID, s)
}

func (repo *schoolRepository) DeleteSection(ctx context.Context, id string) error {
	if err := repo.exists(ctx, core.CollSections, id, school.ErrSectionNotFound); err != nil {
		return err
	}
	return repo.db.Delete(ctx, core.CollSections, id)
}

// Subjects

func (repo *schoolRepository) CreateSubject(ctx context.Context, s school.Subject) (school.Subject, error) {
	return s, repo.set(ctx, core.CollSubjects, s.ID, s)
}

func (repo *schoolRepository) GetSubject(ctx context.Context, id string) (school.Subject, error) {
	var s school.Subject
	err := repo.get(ctx, core.CollSubjects, id, &s, school.ErrSubjectNotFound)
	return s, err
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context) ([]school.Subject, error) {
	docs, err := repo.db.Query(ctx, core.CollSubjects)
	if err != nil {
		return nil, err
	}
	subjects := make([]school.Subject, 0, len(docs))
	for _, doc := range docs {
		var s school.Subject
		if err = core.FromDocument(doc, &s); err != nil {
			repo.logger.Warn("skipping malformed subject "+doc.ID(), err)
			continue
		}
		subjects = append(subjects, s)
	}
	return subjects, nil
}

func (repo *schoolRepository) UpdateSubject(ctx context.Context, s school.Subject) (school.Subject, error) {
	if err := repo.exists(ctx, core.CollSubjects, s.ID, school.ErrSubjectNotFound); err != nil {
		return school.Subject{}, err
	}
	return s, repo.set(ctx, core.CollSubjects, s.ID, s)
}

func (repo *schoolRepository) DeleteSubject(ctx context.Context, id string) error {
	if err := repo.exists(ctx, core.CollSubjects, id, school.ErrSubjectNotFound); err != nil {
		return err
	}
	return repo.db.Delete(ctx, core.CollSubjects, id)
}
