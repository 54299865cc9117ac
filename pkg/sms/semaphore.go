package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/noah-isme/booking-reminders/pkg/config"
)

const defaultBaseURL = "https://api.semaphore.co/api/v4"

// ErrInvalidNumber reports a phone number that cannot be normalised.
var ErrInvalidNumber = errors.New("invalid phone number")

// Sender delivers text messages.
type Sender interface {
	Send(ctx context.Context, number, message string) error
}

// NormalizeNumber keeps digits only and converts local Philippine mobile numbers
// (09XXXXXXXXX) to the international form 639XXXXXXXXX.
func NormalizeNumber(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNumber)
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	number := b.String()

	switch {
	case len(number) == 11 && strings.HasPrefix(number, "09"):
		number = "63" + number[1:]
	case len(number) == 10 && strings.HasPrefix(number, "9"):
		number = "63" + number
	}

	if len(number) < 10 || len(number) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	return number, nil
}

// SemaphoreClient sends messages through the Semaphore SMS API.
type SemaphoreClient struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	senderName string
}

// NewSemaphoreClient builds a client from configuration.
func NewSemaphoreClient(cfg config.SMSConfig, timeout time.Duration) *SemaphoreClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &SemaphoreClient{
		client:     &http.Client{Timeout: timeout},
		baseURL:    base,
		apiKey:     cfg.APIKey,
		senderName: cfg.SenderName,
	}
}

// Send posts message to number after normalising it.
func (c *SemaphoreClient) Send(ctx context.Context, number, message string) error {
	normalized, err := NormalizeNumber(number)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("number", normalized)
	form.Set("message", message)
	if c.senderName != "" {
		form.Set("sendername", c.senderName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("semaphore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("semaphore: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("semaphore: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// LogSender records messages instead of delivering them.
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

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, number, message string) error {
	s.logger.Info("sms delivery disabled, logging message",
		zap.String("number", number),
		zap.Int("length", len(message)),
	)
	return nil
}

// New picks the Semaphore client when an API key exists, otherwise the log sender.
func New(cfg config.SMSConfig, timeout time.Duration, logger *zap.Logger) Sender {
	if cfg.SMSEnabled() {
		return NewSemaphoreClient(cfg, timeout)
	}
	return NewLogSender(logger)
}
