package emailsvc

import (
	"bytes"
	"encoding/base64"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeroom/core"
)

type nopLogger struct{ errors []string }

func (l *nopLogger) Debug(string, ...interface{})       {}
func (l *nopLogger) Info(string, ...interface{})        {}
func (l *nopLogger) Warn(string, ...interface{})        {}
func (l *nopLogger) Error(msg string, _ ...interface{}) { l.errors = append(l.errors, msg) }
func (l *nopLogger) Fatal(string, ...interface{})       {}

func testConfig() *core.Config {
	return &core.Config{
		AppName:                 "Homeroom",
		TestMode:                true,
		FrontendBaseURL:         "https://homeroom.test",
		DefaultFromEmailAddress: "Homeroom <noreply@homeroom.test>",
	}
}

func TestConsoleServiceMock(t *testing.T) {
	logger := new(nopLogger)
	svc := NewConsoleServiceMock(testConfig(), logger)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Ann", Address: "ann@school.test"}},
			Subject:      "Welcome",
			TemplateName: "welcome",
			TemplateData: map[string]string{"Name": "Ann", "Username": "ann"},
		},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hi"},
		&core.EmailMessage{To: []mail.Address{{Address: "bo@school.test"}}, Subject: "empty"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, `username "ann"`)
	assert.Contains(t, sent[0].TextContent, "https://homeroom.test")
	assert.NotEmpty(t, sent[0].HTMLContent)
	assert.Empty(t, logger.errors)

	svc.Reset()
	svc.SendMessages(&core.EmailMessage{To: []mail.Address{{Address: "bo@school.test"}}, TemplateName: "nope"})
	assert.Empty(t, svc.SentMessages())
	assert.Len(t, logger.errors, 1)
}

func TestConsoleService_Send(t *testing.T) {
	out := new(bytes.Buffer)
	svc := newConsoleService(testConfig(), new(nopLogger), out)

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Ann", Address: "ann@school.test"}},
		Subject: "Weekly report",
		BodyStr: "see attached",
	}
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n1,2\n"), "report.csv", "text/csv"))
	require.True(t, svc.sendMessage(msg))

	body := out.String()
	assert.Contains(t, body, "Subject: [Homeroom] Weekly report")
	assert.Contains(t, body, `"Homeroom" <noreply@homeroom.test>`)
	assert.Contains(t, body, "multipart/mixed")
	assert.Contains(t, body, "filename=report.csv")
	assert.Contains(t, body, "see attached")
}

func TestResendService_Prepare(t *testing.T) {
	conf := testConfig()
	conf.Email.ResendApiKey = "re_test"
	svc := NewResendService(conf, new(nopLogger)).(*resendService)

	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "ann@school.test"}},
		Subject:     "Report",
		TextContent: "hello",
	}
	require.NoError(t, msg.Attach(strings.NewReader("xlsx"), "week.xlsx", "application/octet-stream"))

	params, err := svc.prepare(msg)
	require.NoError(t, err)
	assert.Equal(t, "[Homeroom] Report", params.Subject)
	assert.Equal(t, []string{"<ann@school.test>"}, params.To)
	assert.Nil(t, params.Cc)
	require.Len(t, params.Attachments, 1)
	assert.Equal(t, []byte("xlsx"), params.Attachments[0].Content)

	_, err = base64.StdEncoding.DecodeString(msg.Attachments[0].Content.String())
	assert.NoError(t, err)
}

func TestSendgridService_Prepare(t *testing.T) {
	svc := NewSendgridService(testConfig(), new(nopLogger)).(*sendgridService)
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Ann", Address: "ann@school.test"}},
		Cc:          []mail.Address{{Address: "bo@school.test"}},
		Subject:     "Report",
		TextContent: "hello",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Homeroom] Report", m.Personalizations[0].Subject)
	assert.Len(t, m.Personalizations[0].CC, 1)
	assert.Len(t, m.Content, 1)
	require.NotNil(t, m.TrackingSettings)
	require.NotNil(t, m.TrackingSettings.ClickTracking)
	assert.False(t, *m.TrackingSettings.ClickTracking.Enable)
}

func TestSendgridService_Categories(t *testing.T) {
	svc := NewSendgridService(testConfig(), new(nopLogger)).(*sendgridService)

	report := core.EmailMessage{To: []mail.Address{{Address: "ann@school.test"}}, Subject: "7A weekly attendance"}
	require.NoError(t, report.Attach(strings.NewReader("xlsx"), "week.xlsx", "application/octet-stream"))

	tests := []struct {
		name    string
		msg     core.EmailMessage
		want    []string
		wantAtt int
	}{
		{name: "template", msg: core.EmailMessage{TemplateName: "password_reset"}, want: []string{"homeroom", "password_reset"}},
		{name: "report", msg: report, want: []string{"homeroom", "report"}, wantAtt: 1},
		{name: "plain", msg: core.EmailMessage{BodyStr: "hi"}, want: []string{"homeroom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := svc.prepare(tt.msg)
			assert.Equal(t, tt.want, m.Categories)
			require.Len(t, m.Attachments, tt.wantAtt)
			if tt.wantAtt > 0 {
				assert.Equal(t, "week.xlsx", m.Attachments[0].Filename)
				assert.Equal(t, "attachment", m.Attachments[0].Disposition)
			}
		})
	}
}

func TestNewService(t *testing.T) {
	conf := testConfig()
	assert.IsType(t, &consoleService{}, NewService(conf, new(nopLogger)))
	conf.Email.Provider = "Resend"
	assert.IsType(t, &resendService{}, NewService(conf, new(nopLogger)))
	conf.Email.Provider = "sendgrid"
	assert.IsType(t, &sendgridService{}, NewService(conf, new(nopLogger)))
}
