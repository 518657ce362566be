// Package emailsvc provides the email services: console output, Sendgrid and Resend.
package emailsvc

import (
	"strings"

	"github.com/trezcool/homeroom/core"
)

// NewService returns the configured provider's service. Unknown providers fall back to the console.
func NewService(conf *core.Config, logger core.Logger) core.EmailService {
	switch strings.ToLower(conf.Email.Provider) {
	case "sendgrid":
		return NewSendgridService(conf, logger)
	case "resend":
		return NewResendService(conf, logger)
	}
	return NewConsoleService(conf, logger)
}
