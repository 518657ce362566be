package authsvc

import (
	"context"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/user"
	"github.com/trezcool/homeroom/services/firebase"
)

// authClient is the part of the Firebase auth client the provider uses.
type authClient interface {
	CreateUser(ctx context.Context, params *auth.UserToCreate) (*auth.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

// firebaseProvider registers the accounts in Firebase Authentication, which also hosts the
// password reset flow.
type firebaseProvider struct {
	client authClient
}

var _ user.AccountProvider = (*firebaseProvider)(nil)

func NewFirebaseProvider(ctx context.Context, conf *core.Config) (user.AccountProvider, error) {
	app, err := firebase.NewApp(ctx, conf)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating firebase auth client")
	}
	return &firebaseProvider{client: client}, nil
}

// CreateAccount returns the uid of the existing account when the email is already registered.
func (p *firebaseProvider) CreateAccount(ctx context.Context, usr user.User, password string) (string, error) {
	if usr.Email == "" {
		return "", nil
	}
	params := (&auth.UserToCreate{}).
		Email(usr.Email).
		Password(password).
		DisplayName(usr.Name).
		Disabled(!usr.IsActive)
	rec, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if !auth.IsEmailAlreadyExists(err) {
			return "", errors.Wrap(err, "creating firebase user")
		}
		if rec, err = p.client.GetUserByEmail(ctx, usr.Email); err != nil {
			return "", errors.Wrap(err, "getting firebase user")
		}
	}
	return rec.UID, nil
}

func (p *firebaseProvider) PasswordResetLink(ctx context.Context, usr user.User) (string, error) {
	link, err := p.client.PasswordResetLink(ctx, usr.Email)
	return link, errors.Wrap(err, "generating firebase reset link")
}

// VerifyResetToken always fails: the reset codes are consumed by the Firebase hosted page.
func (p *firebaseProvider) VerifyResetToken(context.Context, user.User, string) error {
	return user.ErrInvalidToken
}

// NewProvider returns the configured account provider.
func NewProvider(ctx context.Context, conf *core.Config) (user.AccountProvider, error) {
	switch strings.ToLower(conf.Auth.Provider) {
	case "", "local":
		return user.NewLocalProvider(conf), nil
	case "firebase":
		return NewFirebaseProvider(ctx, conf)
	}
	return nil, errors.Errorf("unknown auth provider %q", conf.Auth.Provider)
}
