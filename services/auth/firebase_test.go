package authsvc

import (
	"context"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/user"
)

type fakeAuthClient struct {
	created   []*auth.UserToCreate
	createErr error
	existing  map[string]string // {email: uid}
}

func (c *fakeAuthClient) CreateUser(_ context.Context, params *auth.UserToCreate) (*auth.UserRecord, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created = append(c.created, params)
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "fb-uid"}}, nil
}

func (c *fakeAuthClient) GetUserByEmail(_ context.Context, email string) (*auth.UserRecord, error) {
	uid, ok := c.existing[email]
	if !ok {
		return nil, errors.New("user not found")
	}
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: uid}}, nil
}

func (c *fakeAuthClient) PasswordResetLink(_ context.Context, email string) (string, error) {
	return "https://auth.test/reset?email=" + email, nil
}

func TestFirebaseProvider(t *testing.T) {
	ctx := context.Background()
	client := &fakeAuthClient{}
	p := &firebaseProvider{client: client}
	usr := user.User{ID: "u1", Name: "Ann", Email: "ann@school.test", IsActive: true}

	uid, err := p.CreateAccount(ctx, usr, "Attendance#2024")
	require.NoError(t, err)
	assert.Equal(t, "fb-uid", uid)
	assert.Len(t, client.created, 1)

	uid, err = p.CreateAccount(ctx, user.User{Name: "No Email"}, "Attendance#2024")
	require.NoError(t, err)
	assert.Empty(t, uid)
	assert.Len(t, client.created, 1)

	client.createErr = errors.New("quota exceeded")
	_, err = p.CreateAccount(ctx, usr, "Attendance#2024")
	assert.Error(t, err)

	link, err := p.PasswordResetLink(ctx, usr)
	require.NoError(t, err)
	assert.Contains(t, link, "ann@school.test")

	assert.Equal(t, user.ErrInvalidToken, p.VerifyResetToken(ctx, usr, "anything"))
}

func TestNewProvider(t *testing.T) {
	conf := &core.Config{SecretKey: "secret", FrontendBaseURL: "https://homeroom.test"}
	p, err := NewProvider(context.Background(), conf)
	require.NoError(t, err)
	link, err := p.PasswordResetLink(context.Background(), user.User{ID: "u1", Email: "ann@school.test"})
	require.NoError(t, err)
	assert.Contains(t, link, "https://homeroom.test/password-reset/")

	conf.Auth.Provider = "ldap"
	_, err = NewProvider(context.Background(), conf)
	assert.Error(t, err)
}
