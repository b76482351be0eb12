package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/smallbiznis/tracklight/internal/config"
)

type smtpProvider struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPProvider(cfg config.EmailConfig) Provider {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &smtpProvider{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth: auth,
		from: cfg.SMTPFrom,
	}
}

func (p *smtpProvider) Send(_ context.Context, msg Message) error {
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s",
		p.from, msg.To, msg.Subject, msg.Body)
	return smtp.SendMail(p.addr, p.auth, p.from, []string{msg.To}, []byte(body))
}
