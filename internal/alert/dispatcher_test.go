package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/channel"
	"github.com/apisentinel/apisentinel/internal/domain/delivery"
	"github.com/apisentinel/apisentinel/internal/domain/project"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/testutil"
)

// recordingEmailSender captures sent emails for assertions
type recordingEmailSender struct {
	Sent    []sentEmail
	SendErr error
}

type sentEmail struct {
	To      string
	Subject string
	HTML    string
}

func (s *recordingEmailSender) Send(ctx context.Context, to, subject, html string) error {
	if s.SendErr != nil {
		return s.SendErr
	}
	s.Sent = append(s.Sent, sentEmail{To: to, Subject: subject, HTML: html})
	return nil
}

type dispatcherFixture struct {
	anomalies  *testutil.MockAnomalyRepository
	projects   *testutil.MockProjectRepository
	channels   *testutil.MockChannelRepository
	deliveries *testutil.MockDeliveryRepository
	email      *recordingEmailSender
	dispatcher *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	f := &dispatcherFixture{
		anomalies:  testutil.NewMockAnomalyRepository(),
		projects:   testutil.NewMockProjectRepository(),
		channels:   testutil.NewMockChannelRepository(),
		deliveries: testutil.NewMockDeliveryRepository(),
		email:      &recordingEmailSender{},
	}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	f.dispatcher = NewDispatcher(f.anomalies, f.projects, f.channels, f.deliveries, f.email, 2*time.Second, log)

	f.projects.Projects["p1"] = &project.Project{ID: "p1", Name: "Checkout API"}
	f.anomalies.Anomalies["a1"] = &anomaly.Anomaly{
		ID:           "a1",
		ProjectID:    "p1",
		Kind:         anomaly.KindRateLimit,
		ClientIP:     "9.9.9.9",
		EndpointPath: "/orders",
		Message:      "Rate limit exceeded: 150 requests in 1m0s from IP 9.9.9.9",
		Severity:     anomaly.SeverityMedium,
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	return f
}

func (f *dispatcherFixture) addChannel(id, kind string, config string) {
	f.channels.Channels[id] = &channel.NotificationChannel{
		ID:        id,
		ProjectID: "p1",
		Kind:      kind,
		Config:    json.RawMessage(config),
		Active:    true,
	}
}

func TestDispatcher_Dispatch_NoChannels(t *testing.T) {
	f := newDispatcherFixture(t)

	res, err := f.dispatcher.Dispatch(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if res.Outcome != OutcomeNoChannels {
		t.Errorf("Dispatch() outcome = %q, want %q", res.Outcome, OutcomeNoChannels)
	}
	if len(f.deliveries.Outcomes) != 0 {
		t.Errorf("recorded %d outcomes, want 0", len(f.deliveries.Outcomes))
	}
}

func TestDispatcher_Dispatch_AllChannelsSucceed(t *testing.T) {
	f := newDispatcherFixture(t)

	var webhookBody []byte
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer slack.Close()

	f.addChannel("c1", channel.KindEmail, `{"email":"ops@example.com"}`)
	f.addChannel("c2", channel.KindSlack, fmt.Sprintf(`{"webhook_url":%q}`, slack.URL))
	f.addChannel("c3", channel.KindWebhook, fmt.Sprintf(`{"url":%q}`, webhook.URL))

	res, err := f.dispatcher.Dispatch(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if res.Outcome != OutcomeDelivered {
		t.Fatalf("Dispatch() outcome = %q, want %q", res.Outcome, OutcomeDelivered)
	}
	if len(res.Channels) != 3 {
		t.Fatalf("Dispatch() returned %d channel results, want 3", len(res.Channels))
	}
	for _, cr := range res.Channels {
		if cr.Err != nil {
			t.Errorf("channel %s failed: %v", cr.ChannelID, cr.Err)
		}
	}

	// Email carries the fixed subject format
	if len(f.email.Sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(f.email.Sent))
	}
	wantSubject := "API Sentinel Alert: MEDIUM - rate_limit"
	if f.email.Sent[0].Subject != wantSubject {
		t.Errorf("email subject = %q, want %q", f.email.Sent[0].Subject, wantSubject)
	}

	// Webhook receives the raw payload JSON
	var p Payload
	if err := json.Unmarshal(webhookBody, &p); err != nil {
		t.Fatalf("webhook body is not valid JSON: %v", err)
	}
	if p.ProjectName != "Checkout API" || p.AnomalyKind != anomaly.KindRateLimit || p.ClientIP != "9.9.9.9" {
		t.Errorf("webhook payload = %+v", p)
	}

	// Every attempt was recorded as delivered
	if len(f.deliveries.Outcomes) != 3 {
		t.Fatalf("recorded %d outcomes, want 3", len(f.deliveries.Outcomes))
	}
	for _, o := range f.deliveries.Outcomes {
		if o.Status != delivery.StatusDelivered {
			t.Errorf("outcome %s status = %q, want %q", o.ChannelID, o.Status, delivery.StatusDelivered)
		}
	}
}

func TestDispatcher_Dispatch_PartialFailure(t *testing.T) {
	f := newDispatcherFixture(t)

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer slack.Close()

	f.addChannel("c1", channel.KindSlack, fmt.Sprintf(`{"webhook_url":%q}`, slack.URL))
	f.addChannel("c2", channel.KindWebhook, fmt.Sprintf(`{"url":%q}`, webhook.URL))

	res, err := f.dispatcher.Dispatch(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	// One failure fails the whole dispatch
	if res.Outcome != OutcomeFailed {
		t.Fatalf("Dispatch() outcome = %q, want %q", res.Outcome, OutcomeFailed)
	}

	var failed, delivered int
	for _, cr := range res.Channels {
		if cr.Err != nil {
			failed++
		} else {
			delivered++
		}
	}
	if failed != 1 || delivered != 1 {
		t.Errorf("Dispatch() failed=%d delivered=%d, want 1 and 1", failed, delivered)
	}

	// The webhook delivery is still recorded as delivered
	for _, o := range f.deliveries.Outcomes {
		switch o.ChannelID {
		case "c1":
			if o.Status != delivery.StatusFailed {
				t.Errorf("slack outcome status = %q, want %q", o.Status, delivery.StatusFailed)
			}
			if o.Error == "" {
				t.Error("failed outcome carries no error")
			}
		case "c2":
			if o.Status != delivery.StatusDelivered {
				t.Errorf("webhook outcome status = %q, want %q", o.Status, delivery.StatusDelivered)
			}
		}
	}
}

func TestDispatcher_Dispatch_InvalidConfig(t *testing.T) {
	f := newDispatcherFixture(t)

	// Slack channel with no webhook_url fails as misconfigured, without
	// any network call
	f.addChannel("c1", channel.KindSlack, `{}`)

	res, err := f.dispatcher.Dispatch(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if res.Outcome != OutcomeFailed {
		t.Fatalf("Dispatch() outcome = %q, want %q", res.Outcome, OutcomeFailed)
	}
	if res.Channels[0].Err == nil {
		t.Fatal("channel result error = nil, want configuration error")
	}
}

func TestDispatcher_Dispatch_SlackRequires200(t *testing.T) {
	f := newDispatcherFixture(t)

	// Slack incoming webhooks signal success with 200 only
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer slack.Close()

	f.addChannel("c1", channel.KindSlack, fmt.Sprintf(`{"webhook_url":%q}`, slack.URL))

	res, err := f.dispatcher.Dispatch(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if res.Outcome != OutcomeFailed {
		t.Errorf("Dispatch() outcome = %q, want %q", res.Outcome, OutcomeFailed)
	}
}

func TestRenderEmail_AbsentFieldsRenderNA(t *testing.T) {
	p := Payload{
		ProjectName: "Checkout API",
		AnomalyKind: anomaly.KindNewEndpoint,
		Timestamp:   "2026-03-01T12:00:00Z",
		Message:     "New endpoint detected: GET /admin",
		Severity:    anomaly.SeverityLow,
	}

	subject, body := renderEmail(p)

	if subject != "API Sentinel Alert: LOW - new_endpoint" {
		t.Errorf("renderEmail() subject = %q", subject)
	}
	if want := "<strong>IP Address:</strong> N/A"; !strings.Contains(body, want) {
		t.Errorf("renderEmail() body missing %q", want)
	}
	if want := "<strong>Endpoint:</strong> N/A"; !strings.Contains(body, want) {
		t.Errorf("renderEmail() body missing %q", want)
	}
}
