package attendance

import (
	"fmt"
	"strings"

	"github.com/trezcool/homeroom/core/school"
)

// Strategy identifies how a record was matched to a student, strongest first.
type Strategy int

const (
	ExactName Strategy = iota + 1
	StudentID
	ReversedName
	FoldedName
	FirstNameSubstring
	AltID
)

var strategyNames = map[Strategy]string{
	ExactName:          "exact-name",
	StudentID:          "student-id",
	ReversedName:       "reversed-name",
	FoldedName:         "folded-name",
	FirstNameSubstring: "first-name-substring",
	AltID:              "alt-id",
}

func (s Strategy) String() string { return strategyNames[s] }

func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Strategy) UnmarshalText(text []byte) error {
	name := string(text)
	if name == "" {
		*s = 0
		return nil
	}
	for st, n := range strategyNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown match strategy %q", name)
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (s Strategy) Confidence() Confidence {
	switch s {
	case ExactName, StudentID, AltID:
		return ConfidenceHigh
	case ReversedName, FoldedName:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// Match is the record a student resolved to.
// Ambiguous is set when the winning strategy hit more than one record; Record is then the first hit
// and Candidates holds the indexes of all hits.
type Match struct {
	Record     Record     `json:"record"`
	Index      int        `json:"index"`
	Strategy   Strategy   `json:"strategy"`
	Confidence Confidence `json:"confidence"`
	Ambiguous  bool       `json:"ambiguous"`
	Candidates []int      `json:"candidates,omitempty"`
}

type matchFunc func(stu school.Student, rec Record) bool

var strategies = []struct {
	strategy Strategy
	match    matchFunc
}{
	{ExactName, func(stu school.Student, rec Record) bool {
		return rec.StudentName != "" && rec.StudentName == stu.FullName()
	}},
	{StudentID, func(stu school.Student, rec Record) bool {
		return rec.StudentID != "" && (rec.StudentID == stu.ID || (stu.StudentID != "" && rec.StudentID == stu.StudentID))
	}},
	{ReversedName, func(stu school.Student, rec Record) bool {
		return rec.StudentName != "" && rec.StudentName == stu.LastName+", "+stu.FirstName
	}},
	{FoldedName, func(stu school.Student, rec Record) bool {
		return rec.StudentName != "" && strings.EqualFold(rec.StudentName, stu.FullName())
	}},
	{FirstNameSubstring, func(stu school.Student, rec Record) bool {
		first := strings.ToLower(strings.TrimSpace(stu.FirstName))
		return first != "" && rec.StudentName != "" && strings.Contains(strings.ToLower(rec.StudentName), first)
	}},
	{AltID, func(stu school.Student, rec Record) bool {
		for _, f := range altIDFields {
			v := rec.AltIDs[f]
			if v != "" && (v == stu.ID || (stu.StudentID != "" && v == stu.StudentID)) {
				return true
			}
		}
		return false
	}},
}

// MatchStudent resolves stu against records, applying the strategies in priority order and stopping
// at the first one with any hit. ok is false when nothing matched: the student is then pending.
func MatchStudent(stu school.Student, records []Record) (m Match, ok bool) {
	for _, st := range strategies {
		var hits []int
		for i, rec := range records {
			if st.match(stu, rec) {
				hits = append(hits, i)
			}
		}
		if len(hits) == 0 {
			continue
		}
		m = Match{
			Record:     records[hits[0]],
			Index:      hits[0],
			Strategy:   st.strategy,
			Confidence: st.strategy.Confidence(),
		}
		if len(hits) > 1 {
			m.Ambiguous = true
			m.Candidates = hits
		}
		return m, true
	}
	return Match{}, false
}

// MatchStudentByID resolves stu by id only (student id, then alternate ids). Names are ignored and
// ambiguous hits are rejected, so a record is never handed to another student.
func MatchStudentByID(stu school.Student, records []Record) (Record, bool) {
	for _, st := range strategies {
		if st.strategy != StudentID && st.strategy != AltID {
			continue
		}
		var hits []int
		for i, rec := range records {
			if st.match(stu, rec) {
				hits = append(hits, i)
			}
		}
		switch len(hits) {
		case 0:
			continue
		case 1:
			return records[hits[0]], true
		}
		return Record{}, false
	}
	return Record{}, false
}
