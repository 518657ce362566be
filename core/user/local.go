package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/homeroom/core"
)

// localProvider keeps the credentials in the user repository; reset links point to the frontend.
type localProvider struct {
	tokens          *TokenGenerator
	frontendBaseURL string
}

var _ AccountProvider = (*localProvider)(nil)

func NewLocalProvider(conf *core.Config) AccountProvider {
	return &localProvider{
		tokens:          NewTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		frontendBaseURL: strings.TrimSuffix(conf.FrontendBaseURL, "/"),
	}
}

func (p *localProvider) CreateAccount(context.Context, User, string) (string, error) {
	return "", nil
}

func (p *localProvider) PasswordResetLink(_ context.Context, usr User) (string, error) {
	token, err := p.tokens.MakeToken(usr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/password-reset/%s/%s", p.frontendBaseURL, EncodeUID(usr), token), nil
}

func (p *localProvider) VerifyResetToken(_ context.Context, usr User, token string) error {
	return p.tokens.VerifyToken(usr, token)
}
