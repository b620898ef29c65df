package mail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk/apiserver/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSelectsMailer(t *testing.T) {
	logger := discardLogger()
	assert.IsType(t, &LogMailer{}, New(config.MailConfig{SMTPHost: "smtp.example.com"}, logger))
	assert.IsType(t, &SMTPMailer{}, New(config.MailConfig{
		SMTPHost: "smtp.example.com", SMTPPort: 587, Username: "u", Password: "p",
	}, logger))
}

func TestSMTPMailerSend(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{
		SMTPHost: "smtp.example.com", SMTPPort: 587, Username: "site@example.com", Password: "p",
	})

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err := m.Send(context.Background(), Email{
		To:      []string{"admin@example.com"},
		Subject: "New message\r\nBcc: evil@example.com",
		Body:    "line one\nline two",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "site@example.com", gotFrom)
	assert.Equal(t, []string{"admin@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: New message  Bcc: evil@example.com\r\n")
	assert.NotContains(t, gotMsg, "\r\nBcc:")
	assert.True(t, strings.HasSuffix(gotMsg, "line one\r\nline two"))
}

func TestSMTPMailerErrors(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{SMTPHost: "h", SMTPPort: 25, Username: "u", Password: "p"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }

	assert.Error(t, m.Send(context.Background(), Email{Subject: "no recipients"}))
	assert.ErrorContains(t, m.Send(context.Background(), Email{To: []string{"a@example.com"}}), "refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Email{To: []string{"a@example.com"}}), context.Canceled)
}

func TestBuildMessageHeaders(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	msg := string(buildMessage("from@example.com", Email{To: []string{"a@x.io", "b@x.io"}, Subject: "Hi"}, now))
	assert.Contains(t, msg, "To: a@x.io, b@x.io\r\n")
	assert.Contains(t, msg, "Date: Fri, 01 May 2026 10:00:00 +0000\r\n")
}

func TestBuildMessageBodyLineEndings(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for name, body := range map[string]string{
		"lf":    "one\ntwo\nthree",
		"crlf":  "one\r\ntwo\r\nthree",
		"mixed": "one\r\ntwo\nthree",
	} {
		t.Run(name, func(t *testing.T) {
			msg := string(buildMessage("from@example.com", Email{To: []string{"a@x.io"}, Body: body}, now))
			assert.NotContains(t, msg, "\r\r\n")
			assert.True(t, strings.HasSuffix(msg, "\r\n\r\none\r\ntwo\r\nthree"), msg)
		})
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Send(context.Background(), Email{Subject: "one"}))
	r.Err = errors.New("down")
	assert.Error(t, r.Send(context.Background(), Email{Subject: "two"}))
	require.Len(t, r.Sent(), 1)
	assert.Equal(t, "one", r.Sent()[0].Subject)
}
