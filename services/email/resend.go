package emailsvc

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/trezcool/homeroom/core"
)

const resendTimeout = 30 * time.Second

type resendService struct {
	conf       *core.Config
	client     *resend.Client
	from       string
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*resendService)(nil)

func NewResendService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &resendService{
		conf:       conf,
		client:     resend.NewClient(conf.Email.ResendApiKey),
		from:       from.String(),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc *resendService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(svc.conf); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
				return
			}
			params, err := svc.prepare(*msg)
			if err != nil {
				svc.logger.Error("preparing email", err)
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), resendTimeout)
			defer cancel()
			if _, err = svc.client.Emails.SendWithContext(ctx, params); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
			}
		}()
	}
}

func (svc *resendService) prepare(msg core.EmailMessage) (*resend.SendEmailRequest, error) {
	params := &resend.SendEmailRequest{
		From:    svc.from,
		To:      addresses(msg.To),
		Cc:      addresses(msg.Cc),
		Bcc:     addresses(msg.Bcc),
		Subject: svc.subjPrefix + msg.Subject,
		Text:    msg.TextContent,
		Html:    msg.HTMLContent,
	}
	for _, at := range msg.Attachments {
		// attachments are kept base64 encoded
		content, err := base64.StdEncoding.DecodeString(at.Content.String())
		if err != nil {
			return nil, err
		}
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Content:     content,
			Filename:    at.Filename,
			ContentType: at.ContentType,
		})
	}
	return params, nil
}

func addresses(addrs []mail.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	res := make([]string, 0, len(addrs))
	for _, a := range addrs {
		res = append(res, a.String())
	}
	return res
}
