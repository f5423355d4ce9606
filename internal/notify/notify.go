// Package notify delivers magic links to users.
//
// Delivery is best-effort from the point of view of the auth flow: a failed
// send never invalidates the link that was issued.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/templui/magiclink/internal/metrics"
)

// Sender delivers a verification URL to an email address.
type Sender interface {
	Send(ctx context.Context, to, url string) error
	Transport() string
}

type Options struct {
	ResendAPIKey string
	EmailFrom    string
	AppName      string
	LinkTTL      time.Duration
	IsDev        bool
}

// New picks the Resend transport when an API key is configured outside of
// development and falls back to logging the link otherwise.
func New(opts Options) Sender {
	if opts.ResendAPIKey == "" || opts.IsDev {
		if opts.ResendAPIKey == "" && !opts.IsDev {
			slog.Warn("email transport not configured, magic links will be logged")
		}
		return NewLogSender(opts.AppName, opts.LinkTTL)
	}
	return NewResendSender(resend.NewClient(opts.ResendAPIKey), opts.EmailFrom, opts.AppName, opts.LinkTTL)
}

// LogSender writes the link to the application log instead of sending it.
type LogSender struct {
	appName string
	ttl     time.Duration
}

func NewLogSender(appName string, ttl time.Duration) *LogSender {
	return &LogSender{appName: appName, ttl: ttl}
}

func (s *LogSender) Transport() string { return "log" }

func (s *LogSender) Send(ctx context.Context, to, url string) error {
	if to == "" || url == "" {
		metrics.NotificationsTotal.WithLabelValues(s.Transport(), "failure").Inc()
		return fmt.Errorf("email or url is missing")
	}

	subject, _ := magicLinkEmailTemplate(url, s.appName, s.ttl)
	slog.InfoContext(ctx, "email sent (dev mode)", "type", "magic_link", "to", to, "subject", subject, "url", url)
	metrics.NotificationsTotal.WithLabelValues(s.Transport(), "success").Inc()
	return nil
}

// ResendSender delivers links through the Resend API.
type ResendSender struct {
	client    *resend.Client
	fromEmail string
	appName   string
	ttl       time.Duration
}

func NewResendSender(client *resend.Client, fromEmail, appName string, ttl time.Duration) *ResendSender {
	return &ResendSender{
		client:    client,
		fromEmail: fromEmail,
		appName:   appName,
		ttl:       ttl,
	}
}

func (s *ResendSender) Transport() string { return "resend" }

func (s *ResendSender) Send(ctx context.Context, to, url string) error {
	if to == "" || url == "" {
		metrics.NotificationsTotal.WithLabelValues(s.Transport(), "failure").Inc()
		return fmt.Errorf("email or url is missing")
	}

	subject, body := magicLinkEmailTemplate(url, s.appName, s.ttl)

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(s.Transport(), "failure").Inc()
		return fmt.Errorf("resend: %w", err)
	}

	metrics.NotificationsTotal.WithLabelValues(s.Transport(), "success").Inc()
	slog.InfoContext(ctx, "email sent", "type", "magic_link", "to", to)
	return nil
}
