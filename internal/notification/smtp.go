package notification

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/openclass/dbans/internal/config"
)

var (
	ErrComposeMail = errors.New("failed to compose mail message")
	ErrSendMail    = errors.New("failed to submit mail message")
)

// Mailer delivers pre-rendered plain-text mail over SMTP. Every submission
// error is surfaced to the caller, nothing is sent silently.
type Mailer struct {
	conf config.SMTPConfig
}

func NewMailer(conf config.SMTPConfig) *Mailer {
	return &Mailer{conf: conf}
}

// Send composes and submits the message. Submission is not interruptible once
// started, the context only bounds work before the SMTP dialog begins.
func (m *Mailer) Send(ctx context.Context, from string, recipient string, subject string, body string) error {
	if errCtx := ctx.Err(); errCtx != nil {
		return errCtx
	}

	message, errCompose := composeMail(from, recipient, subject, body)
	if errCompose != nil {
		return errCompose
	}

	var auth smtp.Auth
	if m.conf.Username != "" {
		auth = smtp.PlainAuth("", m.conf.Username, m.conf.Password, m.conf.Host)
	}

	if errSend := smtp.SendMail(m.conf.Addr(), auth, from, []string{recipient}, message); errSend != nil {
		return errors.Join(errSend, ErrSendMail)
	}

	return nil
}

func composeMail(from string, recipient string, subject string, body string) ([]byte, error) {
	var header mail.Header

	header.SetDate(time.Now())
	header.SetAddressList("From", []*mail.Address{{Address: from}})
	header.SetAddressList("To", []*mail.Address{{Address: recipient}})
	header.SetSubject(subject)

	var buf bytes.Buffer

	writer, errWriter := mail.CreateSingleInlineWriter(&buf, header)
	if errWriter != nil {
		return nil, errors.Join(errWriter, ErrComposeMail)
	}

	if _, errWrite := io.WriteString(writer, body); errWrite != nil {
		return nil, errors.Join(errWrite, ErrComposeMail)
	}

	if errClose := writer.Close(); errClose != nil {
		return nil, errors.Join(errClose, ErrComposeMail)
	}

	return buf.Bytes(), nil
}
