package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"

	mail "github.com/go-mail/mail/v2"
)

// SMTPSettings holds the outgoing mail configuration.
type SMTPSettings struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string // e.g. "Peer Review <no-reply@your.org>"
	SkipTLSVerify bool
}

// LoadSMTPSettings reads SMTP_* variables. The port defaults to 587.
func LoadSMTPSettings() SMTPSettings {
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if port == 0 {
		port = 587
	}
	return SMTPSettings{
		Host:          os.Getenv("SMTP_HOST"),
		Port:          port,
		User:          os.Getenv("SMTP_USER"),
		Pass:          os.Getenv("SMTP_PASS"),
		From:          os.Getenv("SMTP_FROM"),
		SkipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
	}
}

func (s SMTPSettings) Configured() bool {
	return s.Host != "" && s.From != ""
}

// NewMailMessage builds an HTML message from the configured sender.
func (s SMTPSettings) NewMailMessage(to []string, subject, html string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)
	return m
}

func SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	settings := LoadSMTPSettings()
	if !settings.Configured() {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	d := mail.NewDialer(settings.Host, settings.Port, settings.User, settings.Pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         settings.Host,
		InsecureSkipVerify: settings.SkipTLSVerify,
	}

	return d.DialAndSend(settings.NewMailMessage(to, subject, html))
}
