package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/wilddocs/wilddocs-api/pkg/config"
)

// SMTPSink relays messages through an SMTP server.
type SMTPSink struct {
	cfg config.SMTPConfig
}

// NewSMTPSink builds a sink from SMTP configuration.
func NewSMTPSink(cfg config.SMTPConfig) *SMTPSink {
	return &SMTPSink{cfg: cfg}
}

// Send delivers the message over SMTP. The context is accepted for interface
// symmetry; net/smtp does not support per-command cancellation.
func (s *SMTPSink) Send(ctx context.Context, msg Message) error {
	if !s.cfg.Enabled {
		return nil
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	message := fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\n%s",
		msg.To[0], s.cfg.From, msg.Subject, msg.Body)

	var auth smtp.Auth
	if s.cfg.User != "" && s.cfg.Password != "" {
		switch s.cfg.AuthType {
		case "login":
			auth = &loginAuth{username: s.cfg.User, password: s.cfg.Password}
		default:
			auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		}
	}

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer client.Close() //nolint:errcheck

	if s.cfg.UseTLS {
		tlsConfig := &tls.Config{ServerName: s.cfg.Host}
		if err = client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err = client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	for _, to := range msg.To {
		if err = client.Rcpt(to); err != nil {
			return fmt.Errorf("set recipient %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("initiate data transfer: %w", err)
	}
	if _, err = w.Write([]byte(message)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("close data transfer: %w", err)
	}

	if err = client.Quit(); err != nil {
		return fmt.Errorf("quit SMTP session: %w", err)
	}

	return nil
}

// loginAuth implements SMTP LOGIN authentication.
type loginAuth struct {
	username, password string
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte{}, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch string(fromServer) {
		case "Username:":
			return []byte(a.username), nil
		case "Password:":
			return []byte(a.password), nil
		default:
			return nil, fmt.Errorf("unexpected server challenge: %s", fromServer)
		}
	}
	return nil, nil
}
