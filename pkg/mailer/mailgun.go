package mailer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/booking-reminders/pkg/config"
)

const defaultBaseURL = "https://api.mailgun.net/v3"

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers email messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// MailgunClient posts messages to the Mailgun HTTP API.
type MailgunClient struct {
	client  *http.Client
	baseURL string
	domain  string
	apiKey  string
	from    string
}

// NewMailgunClient builds a Mailgun sender from configuration.
func NewMailgunClient(cfg config.MailConfig, timeout time.Duration) *MailgunClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	from := cfg.From
	if from == "" {
		from = fmt.Sprintf("Bookings <no-reply@%s>", cfg.Domain)
	}
	return &MailgunClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: base,
		domain:  cfg.Domain,
		apiKey:  cfg.APIKey,
		from:    from,
	}
}

// Send delivers msg. Any non-2xx response is an error carrying the response body.
func (s *MailgunClient) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mailgun: empty recipient")
	}

	form := url.Values{}
	form.Set("from", s.from)
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("text", msg.Text)

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mailgun: build request: %w", err)
	}
	req.SetBasicAuth("api", s.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailgun: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mailgun: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// LogSender records messages instead of delivering them. Used when Mailgun is not configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs msg and reports success.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email delivery disabled, logging message",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// New picks the Mailgun sender when credentials exist, otherwise the log sender.
func New(cfg config.MailConfig, timeout time.Duration, logger *zap.Logger) Sender {
	if cfg.MailEnabled() {
		return NewMailgunClient(cfg, timeout)
	}
	return NewLogSender(logger)
}
