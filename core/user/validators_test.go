package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name  string
		pwd   string
		attrs []string
		want  string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abc 123 !x", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefg123", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcdefg12#", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Mssmith#1", attrs: []string{"Ms Smith", "mssmith"}, want: pwdAttrSimTag},
		{name: "valid", pwd: "Attendance#2024", attrs: []string{"Ms Smith", "mssmith", "smith@school.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkPassword(tt.pwd, tt.attrs...))
		})
	}
}

func TestRoles(t *testing.T) {
	assert.Equal(t, 30, MaxRolePriority([]string{RoleTeacher, RoleAdminOwner}))
	assert.Equal(t, 0, MaxRolePriority(nil))

	usr := User{Roles: []string{RoleTeacherAdviser}}
	assert.True(t, usr.IsTeacher())
	assert.False(t, usr.IsAdmin())
	assert.Len(t, AllRoles, len(Roles))
}
