package attendance

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
)

const DefaultNotesMaxLen = 500

// RawRecord is an attendance record as found in a stored document, using any of the legacy field names.
type RawRecord map[string]interface{}

// Record is the canonical attendance record of one student, for one subject, on one day.
type Record struct {
	StudentID        string            `json:"studentId"`
	StudentName      string            `json:"studentName,omitempty"`
	AltIDs           map[string]string `json:"altIds,omitempty"`
	Status           Status            `json:"status"`
	Notes            string            `json:"notes"`
	HasBehaviorIssue bool              `json:"hasBehaviorIssue"`
	HasMerit         bool              `json:"hasMerit"`
	Timestamp        time.Time         `json:"timestamp"`
}

var (
	behaviorAliases = []string{
		"hasBehaviorIssue", "behaviorIssue", "behavior_issue",
		"hasBehaviourIssue", "behaviourIssue", "behaviorFlag",
		"hasBehaviorProblem", "behaviorProblem", "misbehavior",
	}
	behaviorKeywords = []string{"behavior", "disruptive", "misconduct", "inappropriate", "discipline", "warned"}
	meritAliases     = []string{"hasMerit", "merit", "meritFlag", "has_merit"}
	altIDFields      = []string{"studentNumber", "student_id"}
)

// NewRecord returns the blank record of a fresh editing session. It is the only place a
// record defaults to present.
func NewRecord(studentID string, now time.Time) Record {
	return Record{
		StudentID: studentID,
		Status:    StatusPresent,
		Timestamp: now,
	}
}

// Normalize converts a raw record into its canonical shape. A missing status stays NotRecorded.
// A status outside the enum is rejected with ErrInvalidStatus.
func Normalize(raw RawRecord, fallback time.Time) (Record, error) {
	rec := Record{
		StudentID:        stringField(raw, "studentId", "id"),
		StudentName:      recordName(raw),
		Notes:            stringField(raw, "notes", "note", "comment"),
		HasBehaviorIssue: BehaviorFlag(raw),
		HasMerit:         MeritFlag(raw),
		Timestamp:        parseTimestamp(raw["timestamp"], fallback),
	}

	for _, f := range altIDFields {
		if v := stringField(raw, f); v != "" {
			if rec.AltIDs == nil {
				rec.AltIDs = make(map[string]string)
			}
			rec.AltIDs[f] = v
		}
	}

	if s := stringField(raw, "status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			return Record{}, errors.Wrapf(err, "normalizing record of %q", rec.StudentID)
		}
		rec.Status = st
	}
	return rec, nil
}

// Merge normalizes raw on top of prev; when raw is rejected prev is returned unchanged along with the error.
func Merge(prev Record, raw RawRecord, fallback time.Time) (Record, error) {
	rec, err := Normalize(raw, fallback)
	if err != nil {
		return prev, err
	}
	if rec.StudentID == "" {
		rec.StudentID = prev.StudentID
	}
	if rec.StudentName == "" {
		rec.StudentName = prev.StudentName
	}
	return rec, nil
}

// Raw returns the stored form of the record, using canonical field names only.
func (r Record) Raw() RawRecord {
	raw := RawRecord{
		"studentId":        r.StudentID,
		"status":           string(r.Status),
		"notes":            r.Notes,
		"hasBehaviorIssue": r.HasBehaviorIssue,
		"hasMerit":         r.HasMerit,
		"timestamp":        r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if r.StudentName != "" {
		raw["studentName"] = r.StudentName
	}
	for k, v := range r.AltIDs {
		raw[k] = v
	}
	return raw
}

// BehaviorFlag resolves the behavior flag of a raw record: any of the legacy alias fields set,
// or a behavior keyword found in the notes. The keyword scan is a best-effort heuristic and does
// not understand negations ("not disruptive" still matches).
func BehaviorFlag(raw RawRecord) bool {
	for _, alias := range behaviorAliases {
		if truthy(raw[alias]) {
			return true
		}
	}
	notes := strings.ToLower(stringField(raw, "notes", "note", "comment"))
	if notes == "" {
		return false
	}
	for _, kw := range behaviorKeywords {
		if strings.Contains(notes, kw) {
			return true
		}
	}
	return false
}

func MeritFlag(raw RawRecord) bool {
	for _, alias := range meritAliases {
		if truthy(raw[alias]) {
			return true
		}
	}
	return false
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch core.CleanString(val, true /* lower */) {
		case "true", "yes", "1", "y":
			return true
		}
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case int32:
		return val != 0
	}
	return false
}

func stringField(raw RawRecord, keys ...string) string {
	return core.CleanString(core.Document(raw).String(keys...))
}

func recordName(raw RawRecord) string {
	if name := stringField(raw, "studentName", "name", "fullName", "student"); name != "" {
		return name
	}
	first, last := stringField(raw, "firstName"), stringField(raw, "lastName")
	return strings.TrimSpace(first + " " + last)
}

func parseTimestamp(v interface{}, fallback time.Time) time.Time {
	switch ts := v.(type) {
	case time.Time:
		if !ts.IsZero() {
			return ts
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
		if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case float64:
		return time.UnixMilli(int64(ts)).UTC()
	case int64:
		return time.UnixMilli(ts).UTC()
	case int:
		return time.UnixMilli(int64(ts)).UTC()
	}
	return fallback
}
