package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// severityEmoji maps anomaly severities to Slack message markers
var severityEmoji = map[string]string{
	"low":      "\U0001F7E2",   // green circle
	"medium":   "\U0001F7E0",   // orange circle
	"high":     "\U0001F534",   // red circle
	"critical": "\u26A0\uFE0F", // warning sign
}

// buildSlackMessage builds a Slack block message for an alert payload
func buildSlackMessage(p Payload) map[string]interface{} {
	emoji, ok := severityEmoji[p.Severity]
	if !ok {
		emoji = severityEmoji["low"]
	}

	return map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type": "plain_text",
					"text": fmt.Sprintf("API Sentinel Alert: %s %s", emoji, p.AnomalyKind),
				},
			},
			{
				"type": "section",
				"fields": []map[string]interface{}{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Project:*\n%s", p.ProjectName)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:*\n%s", strings.ToUpper(p.Severity))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Time:*\n%s", p.Timestamp)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Endpoint:*\n%s", orNA(p.Endpoint))},
				},
			},
			{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Message:*\n%s", p.Message),
				},
			},
		},
	}
}

// postSlack delivers a Slack block message to a webhook URL. Slack
// reports success with HTTP 200.
func (d *Dispatcher) postSlack(ctx context.Context, webhookURL string, p Payload) error {
	body, err := json.Marshal(buildSlackMessage(p))
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post Slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack API error %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
