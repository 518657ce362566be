package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/homeroom/core"
)

var (
	statusTag  = "attstatus"
	statusText = "must be one of present, absent, late, excused"
)

// RegisterValidators registers the attendance validation tags.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		_, err := ParseStatus(fl.Field().String())
		return err == nil
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

type (
	// RecordUpdate changes the set fields of one record.
	RecordUpdate struct {
		Status           *string `json:"status" validate:"omitempty,attstatus"`
		Notes            *string `json:"notes"`
		HasBehaviorIssue *bool   `json:"hasBehaviorIssue"`
		HasMerit         *bool   `json:"hasMerit"`
	}

	// BulkUpdate sets Status on every row visible under Filter.
	BulkUpdate struct {
		Status string `json:"status" validate:"required,attstatus"`
		Filter Filter `json:"filter"`
	}
)

// Apply validates upd and applies it to a student's record of sess, returning the new record.
func (upd RecordUpdate) Apply(validate *validator.Validate, sess *Session, studentID string) (Record, error) {
	if err := validate.Struct(upd); err != nil {
		return Record{}, err
	}
	if upd.Status != nil {
		if err := sess.SetStatus(studentID, Status(*upd.Status)); err != nil {
			return Record{}, err
		}
	}
	if upd.Notes != nil {
		if err := sess.SetNotes(studentID, *upd.Notes); err != nil {
			return Record{}, err
		}
	}
	if upd.HasBehaviorIssue != nil {
		if err := sess.SetBehaviorFlag(studentID, *upd.HasBehaviorIssue); err != nil {
			return Record{}, err
		}
	}
	if upd.HasMerit != nil {
		if err := sess.SetMeritFlag(studentID, *upd.HasMerit); err != nil {
			return Record{}, err
		}
	}
	return sess.Record(studentID)
}

// Apply validates bu and applies it to sess, returning the ids of the updated students.
func (bu BulkUpdate) Apply(validate *validator.Validate, sess *Session) ([]string, error) {
	if err := validate.Struct(bu); err != nil {
		return nil, err
	}
	return sess.BulkSetStatus(bu.Filter, Status(bu.Status))
}
