package docrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/attendance"
)

type attendanceRepository struct {
	db core.DocStore
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db core.DocStore) attendance.Repository {
	return &attendanceRepository{db: db}
}

// SaveSnapshot writes a whole new version of the snapshot document.
func (repo *attendanceRepository) SaveSnapshot(ctx context.Context, snap attendance.Snapshot) error {
	return repo.db.Set(ctx, core.CollAttendance, snap.ID, snap.Document())
}

func (repo *attendanceRepository) GetSnapshot(ctx context.Context, id string) (attendance.RawSnapshot, error) {
	doc, err := repo.db.Get(ctx, core.CollAttendance, id)
	if err != nil {
		if errors.Cause(err) == core.ErrDocNotFound {
			return attendance.RawSnapshot{}, attendance.ErrSnapshotNotFound
		}
		return attendance.RawSnapshot{}, errors.Wrap(err, "getting snapshot")
	}
	return attendance.RawSnapshotFromDocument(doc), nil
}

// QuerySnapshots filters by date in the store; the section is matched after decoding since legacy
// documents keep it under another key.
func (repo *attendanceRepository) QuerySnapshots(ctx context.Context, sectionID, date string) ([]attendance.RawSnapshot, error) {
	var filters []core.Filter
	if date != "" {
		filters = append(filters, core.Filter{Field: "date", Value: date})
	}
	docs, err := repo.db.Query(ctx, core.CollAttendance, filters...)
	if err != nil {
		return nil, err
	}
	res := make([]attendance.RawSnapshot, 0, len(docs))
	for _, doc := range docs {
		if rs := attendance.RawSnapshotFromDocument(doc); sectionID == "" || rs.SectionID == sectionID {
			res = append(res, rs)
		}
	}
	return res, nil
}

func (repo *attendanceRepository) WatchSnapshots(ctx context.Context) (<-chan []attendance.RawSnapshot, error) {
	docsCh, err := repo.db.Subscribe(ctx, core.CollAttendance)
	if err != nil {
		return nil, err
	}
	ch := make(chan []attendance.RawSnapshot)
	go func() {
		defer close(ch)
		for docs := range docsCh {
			raws := make([]attendance.RawSnapshot, 0, len(docs))
			for _, doc := range docs {
				raws = append(raws, attendance.RawSnapshotFromDocument(doc))
			}
			select {
			case ch <- raws:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
