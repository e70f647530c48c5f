package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/apisentinel/apisentinel/internal/config"
)

// EmailSender sends an HTML email. Implementations report delivery
// success via the returned error.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// NewEmailSender selects an email provider from configuration
func NewEmailSender(cfg config.AlertConfig, client *http.Client) (EmailSender, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.DeliveryTimeout}
	}
	switch cfg.EmailProvider {
	case "resend":
		return &ResendSender{apiKey: cfg.ResendAPIKey, from: cfg.EmailFrom, client: client}, nil
	case "mailgun":
		return &MailgunSender{apiKey: cfg.MailgunAPIKey, domain: cfg.MailgunDomain, from: cfg.EmailFrom, client: client}, nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.EmailProvider)
	}
}

// ResendSender delivers email via the Resend API
type ResendSender struct {
	apiKey string
	from   string
	client *http.Client
}

const resendEndpoint = "https://api.resend.com/emails"

// Send posts the email to the Resend API
func (s *ResendSender) Send(ctx context.Context, to, subject, html string) error {
	if s.apiKey == "" {
		return fmt.Errorf("resend API key not configured")
	}

	body, err := json.Marshal(map[string]string{
		"from":    s.from,
		"to":      to,
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend API error %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// MailgunSender delivers email via the Mailgun API
type MailgunSender struct {
	apiKey string
	domain string
	from   string
	client *http.Client
}

// Send posts the email to the Mailgun messages endpoint
func (s *MailgunSender) Send(ctx context.Context, to, subject, html string) error {
	if s.apiKey == "" || s.domain == "" {
		return fmt.Errorf("mailgun API key or domain not configured")
	}

	form := url.Values{}
	form.Set("from", fmt.Sprintf("API Sentinel <alerts@%s>", s.domain))
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("html", html)

	endpoint := fmt.Sprintf("https://api.mailgun.net/v3/%s/messages", s.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth("api", s.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mailgun API error %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// renderEmail renders the fixed HTML alert template. Absent optional
// fields render as "N/A".
func renderEmail(p Payload) (subject, body string) {
	subject = fmt.Sprintf("API Sentinel Alert: %s - %s", strings.ToUpper(p.Severity), p.AnomalyKind)

	body = fmt.Sprintf(`<h2>API Sentinel Security Alert</h2>
<p><strong>Project:</strong> %s</p>
<p><strong>Type:</strong> %s</p>
<p><strong>Severity:</strong> %s</p>
<p><strong>Time:</strong> %s</p>
<p><strong>Endpoint:</strong> %s</p>
<p><strong>IP Address:</strong> %s</p>
<p><strong>Message:</strong> %s</p>`,
		p.ProjectName, p.AnomalyKind, strings.ToUpper(p.Severity), p.Timestamp,
		orNA(p.Endpoint), orNA(p.ClientIP), p.Message)

	return subject, body
}
