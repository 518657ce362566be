package attendance

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeroom/core"
)

func testValidator() *validator.Validate {
	enLoc := en.New()
	translator, _ := ut.New(enLoc, enLoc).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	RegisterValidators(validate, translator)
	return validate
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestRecordUpdate_Apply(t *testing.T) {
	validate := testValidator()
	sess := newTestSession(t, stuAnn, stuBo)

	rec, err := RecordUpdate{Status: strPtr("Late"), Notes: strPtr("bus"), HasMerit: boolPtr(true)}.Apply(validate, sess, "S1")
	require.NoError(t, err)
	assert.Equal(t, StatusLate, rec.Status)
	assert.Equal(t, "bus", rec.Notes)
	assert.True(t, rec.HasMerit)
	assert.False(t, rec.HasBehaviorIssue)

	_, err = RecordUpdate{Status: strPtr("sick")}.Apply(validate, sess, "S1")
	require.Error(t, err)
	vErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, "attstatus", vErrs[0].Tag())

	rec, _ = sess.Record("S1")
	assert.Equal(t, StatusLate, rec.Status)

	_, err = RecordUpdate{HasBehaviorIssue: boolPtr(true)}.Apply(validate, sess, "S404")
	assert.Equal(t, ErrUnknownStudent, err)
}

func TestBulkUpdate_Apply(t *testing.T) {
	validate := testValidator()
	sess := newTestSession(t, stuAnn, stuBo, stuCy)

	ids, err := BulkUpdate{Status: "absent", Filter: Filter{Grade: "7"}}.Apply(validate, sess)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"S1", "S7"}, ids)

	rec, _ := sess.Record("S2")
	assert.Equal(t, StatusPresent, rec.Status)

	_, err = BulkUpdate{}.Apply(validate, sess)
	assert.Error(t, err)
	_, err = BulkUpdate{Status: "gone"}.Apply(validate, sess)
	assert.Error(t, err)
}
