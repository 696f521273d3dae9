package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"
)

//go:embed templates/otp_email.html
var templateFS embed.FS

// Sender delivers a rendered HTML email. Implemented by smtp.Mailer and sns.Sender.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// TemplateSource supplies an optional override for the OTP email template.
type TemplateSource interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

type ServiceDeps struct {
	Sender      Sender
	Templates   TemplateSource // nil disables the override
	TemplateKey string
	Brand       string
	Validity    time.Duration
	Now         func() time.Time
}

// Service renders and sends OTP emails.
type Service struct {
	sender      Sender
	templates   TemplateSource
	templateKey string
	brand       string
	validity    time.Duration
	now         func() time.Time

	base *template.Template

	mu       sync.Mutex
	override *template.Template
}

type emailData struct {
	Code    string
	Brand   string
	Minutes int
	Year    int
}

func NewService(deps ServiceDeps) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		sender:      deps.Sender,
		templates:   deps.Templates,
		templateKey: deps.TemplateKey,
		brand:       deps.Brand,
		validity:    deps.Validity,
		now:         now,
		base:        template.Must(template.ParseFS(templateFS, "templates/otp_email.html")),
	}
}

// Subject returns the OTP email subject line.
func (s *Service) Subject() string {
	return "Your One-Time Password (OTP) – " + s.brand
}

// SendOTP renders the verification email for code and hands it to the sender.
func (s *Service) SendOTP(ctx context.Context, email, code string) error {
	body, err := s.Render(ctx, code)
	if err != nil {
		return err
	}
	return s.sender.SendEmail(ctx, email, s.Subject(), body)
}

// Render executes the active template. The code is HTML-escaped but otherwise
// appears verbatim.
func (s *Service) Render(ctx context.Context, code string) (string, error) {
	var buf bytes.Buffer
	err := s.template(ctx).Execute(&buf, emailData{
		Code:    code,
		Brand:   s.brand,
		Minutes: int(s.validity / time.Minute),
		Year:    s.now().Year(),
	})
	if err != nil {
		return "", fmt.Errorf("render otp email: %w", err)
	}
	return buf.String(), nil
}

// template returns the S3 override when one is configured and loads, else the
// embedded template. A failed fetch is retried on the next send.
func (s *Service) template(ctx context.Context) *template.Template {
	if s.templates == nil {
		return s.base
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override != nil {
		return s.override
	}
	raw, err := s.templates.Fetch(ctx, s.templateKey)
	if err != nil {
		slog.Warn("email template override unavailable, using embedded", "key", s.templateKey, "err", err)
		return s.base
	}
	t, err := template.New("override").Parse(string(raw))
	if err != nil {
		slog.Warn("email template override invalid, using embedded", "key", s.templateKey, "err", err)
		return s.base
	}
	s.override = t
	return t
}
