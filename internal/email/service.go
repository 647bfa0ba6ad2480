// Package email sends transactional mail over a pooled SMTP connection
package email

import (
	"bytes"
	"fmt"
	"guestbooklet/internal/config"
	"html/template"
	"net/smtp"
	"sync"
)

// Sender defines the interface for sending transactional emails
type Sender interface {
	SendWelcomeEmail(to, name string) error
	SendPasswordResetEmail(to, name, token string) error
}

// Service implements the Sender interface
type Service struct {
	config config.EmailConfig
	client *smtp.Client
	mu     sync.Mutex
}

// NewService creates a new email service
func NewService(cfg config.EmailConfig) *Service {
	return &Service{
		config: cfg,
		client: nil,
	}
}

// dialSMTP establishes an SMTP connection
func (s *Service) dialSMTP() (*smtp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reuse existing connection if it's still alive
	if s.client != nil {
		if err := s.client.Noop(); err == nil {
			return s.client, nil
		}
		// Connection is dead, close it
		s.client.Close()
		s.client = nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SMTP server: %w", err)
	}

	if err := client.Auth(smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to authenticate with SMTP server: %w", err)
	}

	s.client = client
	return client, nil
}

// sendMail sends an email using the pooled SMTP connection
func (s *Service) sendMail(to []string, msg []byte) error {
	client, err := s.dialSMTP()
	if err != nil {
		return err
	}

	if err := client.Mail(s.config.SMTPUsername); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", addr, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to create message writer: %w", err)
	}

	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}

	return nil
}

// Close closes the SMTP connection
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		err := s.client.Quit()
		s.client = nil
		return err
	}
	return nil
}

func (s *Service) validateConfig() error {
	if s.config.SMTPHost == "" || s.config.SMTPPort == 0 || s.config.SMTPUsername == "" ||
		s.config.SMTPPassword == "" || s.config.FromAddress == "" || s.config.AppURL == "" {
		return fmt.Errorf("incomplete email configuration")
	}
	return nil
}

// SendWelcomeEmail sends the post-registration welcome message
func (s *Service) SendWelcomeEmail(to, name string) error {
	if err := s.validateConfig(); err != nil {
		return err
	}

	subject := "Welcome to Guestbooklet"
	tmpl, err := template.New("welcome").Parse(`
<html>
<body>
	<h2>Welcome, {{.Name}}!</h2>
	<p>Your account is ready. Sign in at <a href="{{.AppURL}}">{{.AppURL}}</a> to build your first booklet.</p>
</body>
</html>`)
	if err != nil {
		return fmt.Errorf("failed to parse welcome template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, map[string]string{
		"Name":   name,
		"AppURL": s.config.AppURL,
	}); err != nil {
		return fmt.Errorf("failed to render welcome template: %w", err)
	}

	return s.sendMail([]string{to}, s.buildMessage(to, subject, body.Bytes()))
}

// SendPasswordResetEmail sends the password reset link
func (s *Service) SendPasswordResetEmail(to, name, token string) error {
	if err := s.validateConfig(); err != nil {
		return err
	}

	subject := "Reset Your Password"
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.config.AppURL, token)

	tmpl, err := template.New("reset").Parse(`
<html>
<body>
	<h2>Hello {{.Name}},</h2>
	<p>A password reset was requested for your account. The link below is valid for 30 minutes and can be used once:</p>
	<p><a href="{{.ResetURL}}">Reset password</a></p>
	<p>If you did not request this, you can ignore this email.</p>
</body>
</html>`)
	if err != nil {
		return fmt.Errorf("failed to parse reset template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, map[string]string{
		"Name":     name,
		"ResetURL": resetURL,
	}); err != nil {
		return fmt.Errorf("failed to render reset template: %w", err)
	}

	return s.sendMail([]string{to}, s.buildMessage(to, subject, body.Bytes()))
}

func (s *Service) buildMessage(to, subject string, body []byte) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.config.FromAddress)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(body)
	return msg.Bytes()
}
