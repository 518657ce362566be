package attendance

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
)

// Snapshot is the saved attendance of one subject, for one section, on one day.
// Saving always writes a whole new version of the document.
type Snapshot struct {
	ID        string    `json:"id"`
	SectionID string    `json:"sectionId"`
	SubjectID string    `json:"subjectId"`
	Date      string    `json:"date"`
	TakenBy   string    `json:"takenBy,omitempty"`
	Time      time.Time `json:"time"`
	Records   []Record  `json:"records"`
}

func SnapshotID(date, sectionID, subjectID string) string {
	return date + "_" + sectionID + "_" + subjectID
}

// RecordOf returns the record of the given student id, if any.
func (s Snapshot) RecordOf(studentID string) (Record, bool) {
	for _, r := range s.Records {
		if r.StudentID == studentID {
			return r, true
		}
	}
	return Record{}, false
}

// Taken reports whether at least one record is recorded.
func (s Snapshot) Taken() bool {
	for _, r := range s.Records {
		if r.Status.Recorded() {
			return true
		}
	}
	return false
}

// Document returns the stored form of the snapshot, with canonical record fields only.
func (s Snapshot) Document() core.Document {
	records := make([]interface{}, 0, len(s.Records))
	for _, r := range s.Records {
		records = append(records, map[string]interface{}(r.Raw()))
	}
	return core.Document{
		"id":        s.ID,
		"sectionId": s.SectionID,
		"subjectId": s.SubjectID,
		"date":      s.Date,
		"takenBy":   s.TakenBy,
		"time":      s.Time.UTC().Format(time.RFC3339Nano),
		"records":   records,
	}
}

// RawSnapshot is a stored snapshot before its records are normalized.
type RawSnapshot struct {
	ID        string
	SectionID string
	SubjectID string
	Date      string
	TakenBy   string
	Time      time.Time
	Records   []RawRecord
}

// RawSnapshotFromDocument reads a stored snapshot. Records may be stored as a list, or as a map
// keyed by student (the key then stands in for a missing student id), under "records" or under
// the legacy "attendance" and "students" keys.
func RawSnapshotFromDocument(doc core.Document) RawSnapshot {
	rs := RawSnapshot{
		ID:        doc.ID(),
		SectionID: doc.String("sectionId", "section"),
		SubjectID: doc.String("subjectId", "subject"),
		Date:      doc.String("date"),
		TakenBy:   doc.String("takenBy"),
		Time:      parseTimestamp(doc["time"], time.Time{}),
	}

	var recs interface{}
	for _, k := range []string{"records", "attendance", "students"} {
		if v, ok := doc[k]; ok && v != nil {
			recs = v
			break
		}
	}

	switch v := recs.(type) {
	case []interface{}:
		for _, item := range v {
			if m, ok := asMap(item); ok {
				rs.Records = append(rs.Records, m)
			}
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m, ok := asMap(v[k])
			if !ok {
				continue
			}
			if _, has := m["studentId"]; !has {
				m["studentId"] = k
			}
			rs.Records = append(rs.Records, m)
		}
	}
	return rs
}

func asMap(v interface{}) (RawRecord, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		cp := make(RawRecord, len(m))
		for k, val := range m {
			cp[k] = val
		}
		return cp, true
	case core.Document:
		return asMap(map[string]interface{}(m))
	case RawRecord:
		return asMap(map[string]interface{}(m))
	}
	return nil, false
}

// Ingest normalizes the raw records of rs. A rejected record keeps its version from prev (the
// previously ingested version of the same snapshot, may be nil) or is skipped when there is none;
// rejections are reported in errs so one bad record never drops a whole snapshot.
func Ingest(rs RawSnapshot, prev *Snapshot) (snap Snapshot, errs []error) {
	snap = Snapshot{
		ID:        rs.ID,
		SectionID: rs.SectionID,
		SubjectID: rs.SubjectID,
		Date:      rs.Date,
		TakenBy:   rs.TakenBy,
		Time:      rs.Time,
		Records:   make([]Record, 0, len(rs.Records)),
	}
	if snap.ID == "" && snap.Date != "" {
		snap.ID = SnapshotID(snap.Date, snap.SectionID, snap.SubjectID)
	}
	for i, raw := range rs.Records {
		var (
			rec Record
			err error
		)
		if old, ok := prevRecord(prev, raw); ok {
			rec, err = Merge(old, raw, rs.Time)
			snap.Records = append(snap.Records, rec)
		} else if rec, err = Normalize(raw, rs.Time); err == nil {
			snap.Records = append(snap.Records, rec)
		}
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "record #%d of snapshot %s", i, snap.ID))
		}
	}
	return snap, errs
}

func prevRecord(prev *Snapshot, raw RawRecord) (Record, bool) {
	if prev == nil {
		return Record{}, false
	}
	id := stringField(raw, "studentId", "id")
	if id == "" {
		return Record{}, false
	}
	return prev.RecordOf(id)
}
