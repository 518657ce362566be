package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/homeroom/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service that sends its password reset mails synchronously.
func NewServiceMock(
	repo Repository,
	accounts AccountProvider,
	mailSvc core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &serviceMock{
		service: service{
			repo:     repo,
			accounts: accounts,
			mailSvc:  mailSvc,
			validate: validate,
			logger:   logger,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByUsernameOrEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	if usr.IsActive && usr.Email != "" {
		// run synchronously
		svc.sendPasswordResetMail(ctx, usr)
	}
	return nil
}

// NewTestProvider is a local AccountProvider with a fixed secret.
func NewTestProvider(frontendBaseURL string) AccountProvider {
	return &localProvider{
		tokens:          NewTokenGenerator("test-secret", 3*24*time.Hour),
		frontendBaseURL: frontendBaseURL,
	}
}
