package attendance

import "github.com/trezcool/homeroom/core"

// Status is the tri-state attendance mark of a student: one of the recorded values, or NotRecorded.
type Status string

const (
	StatusNotRecorded Status = ""
	StatusPresent     Status = "present"
	StatusAbsent      Status = "absent"
	StatusLate        Status = "late"
	StatusExcused     Status = "excused"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

// Valid reports whether s is one of the four recorded values.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

func (s Status) Recorded() bool { return s != StatusNotRecorded }

func (s Status) String() string {
	if s == StatusNotRecorded {
		return "not-recorded"
	}
	return string(s)
}

// ParseStatus parses a recorded status case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(core.CleanString(s, true /* lower */))
	if !st.Valid() {
		return StatusNotRecorded, core.NewValidationError(
			ErrInvalidStatus,
			core.FieldError{Field: "status", Error: "must be one of present, absent, late, excused"},
		)
	}
	return st, nil
}
