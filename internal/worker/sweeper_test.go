package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apisentinel/apisentinel/internal/alert"
	"github.com/apisentinel/apisentinel/internal/config"
	"github.com/apisentinel/apisentinel/internal/detector"
	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/event"
	"github.com/apisentinel/apisentinel/internal/domain/project"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/testutil"
)

// stubEmailSender always succeeds
type stubEmailSender struct{}

func (stubEmailSender) Send(ctx context.Context, to, subject, html string) error {
	return nil
}

type sweeperFixture struct {
	projects  *testutil.MockProjectRepository
	anomalies *testutil.MockAnomalyRepository
	events    *testutil.MockEventStore
	channels  *testutil.MockChannelRepository
	sweeper   *Sweeper
}

func newSweeperFixture(t *testing.T) *sweeperFixture {
	t.Helper()

	f := &sweeperFixture{
		projects:  testutil.NewMockProjectRepository(),
		anomalies: testutil.NewMockAnomalyRepository(),
		events:    testutil.NewMockEventStore(),
		channels:  testutil.NewMockChannelRepository(),
	}

	log := logger.New(logger.Config{Level: "error", Format: "json"})
	deliveries := testutil.NewMockDeliveryRepository()

	detectionCfg := config.DetectionConfig{
		NewEndpointWindow:     time.Hour,
		RateLimitWindow:       time.Minute,
		RateLimitThreshold:    100,
		ErrorSpikeWindow:      5 * time.Minute,
		ErrorSpikeRate:        0.2,
		ErrorSpikeMinRequests: 10,
		SuspiciousWindow:      24 * time.Hour,
		SuspiciousCountries:   []string{"KP"},
	}
	engine := detector.New(f.events, f.anomalies, detectionCfg, log)
	dispatcher := alert.NewDispatcher(f.anomalies, f.projects, f.channels, deliveries,
		stubEmailSender{}, time.Second, log)

	workerCfg := config.WorkerConfig{
		DetectionSchedule: "@every 5m",
		AlertSchedule:     "@every 1m",
		AlertRecency:      time.Hour,
	}
	f.sweeper = NewSweeper(f.projects, f.anomalies, engine, dispatcher, workerCfg, log)

	return f
}

func TestSweeper_DetectionSweep_CoversAllProjects(t *testing.T) {
	f := newSweeperFixture(t)

	f.projects.Projects["p1"] = &project.Project{ID: "p1", Name: "one"}
	f.projects.Projects["p2"] = &project.Project{ID: "p2", Name: "two"}

	now := time.Now().UTC()
	f.events.Events = append(f.events.Events,
		&event.RequestEvent{ID: "e1", ProjectID: "p1", Method: "GET", Path: "/a", StatusCode: 200, CreatedAt: now.Add(-time.Minute)},
		&event.RequestEvent{ID: "e2", ProjectID: "p2", Method: "GET", Path: "/b", StatusCode: 200, CreatedAt: now.Add(-time.Minute)},
	)

	f.sweeper.DetectionSweep(context.Background())

	byProject := make(map[string]int)
	for _, a := range f.anomalies.Anomalies {
		byProject[a.ProjectID]++
	}
	if byProject["p1"] != 1 || byProject["p2"] != 1 {
		t.Errorf("anomalies per project = %v, want one each", byProject)
	}
}

func TestSweeper_DetectionSweep_ProjectFailureIsolated(t *testing.T) {
	f := newSweeperFixture(t)

	f.projects.Projects["p1"] = &project.Project{ID: "p1", Name: "one"}
	f.projects.Projects["p2"] = &project.Project{ID: "p2", Name: "two"}

	// Every scanner fails for every project; the sweep must still visit
	// both without panicking
	f.events.QueryError = errors.New("store down")

	f.sweeper.DetectionSweep(context.Background())

	if len(f.anomalies.Anomalies) != 0 {
		t.Errorf("persisted %d anomalies, want 0", len(f.anomalies.Anomalies))
	}
}

func TestSweeper_AlertSweep_ClaimsBeforeDispatch(t *testing.T) {
	f := newSweeperFixture(t)

	f.projects.Projects["p1"] = &project.Project{ID: "p1", Name: "one"}
	f.anomalies.Anomalies["a1"] = &anomaly.Anomaly{
		ID:        "a1",
		ProjectID: "p1",
		Kind:      anomaly.KindNewEndpoint,
		Message:   "New endpoint detected: GET /a",
		Severity:  anomaly.SeverityLow,
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}

	f.sweeper.AlertSweep(context.Background())

	if !f.anomalies.Anomalies["a1"].Processed {
		t.Error("anomaly not marked processed after sweep")
	}

	// A second sweep finds nothing to claim
	f.sweeper.AlertSweep(context.Background())
	if !f.anomalies.Anomalies["a1"].Processed {
		t.Error("anomaly lost processed mark")
	}
}

func TestSweeper_AlertSweep_SkipsStaleAnomalies(t *testing.T) {
	f := newSweeperFixture(t)

	f.projects.Projects["p1"] = &project.Project{ID: "p1", Name: "one"}
	f.anomalies.Anomalies["old"] = &anomaly.Anomaly{
		ID:        "old",
		ProjectID: "p1",
		Kind:      anomaly.KindNewEndpoint,
		Severity:  anomaly.SeverityLow,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}

	f.sweeper.AlertSweep(context.Background())

	// Outside the recency window: left unclaimed, never dispatched
	if f.anomalies.Anomalies["old"].Processed {
		t.Error("stale anomaly was claimed")
	}
}

func TestSweeper_AlertSweep_ProcessedStickyOnDispatchFailure(t *testing.T) {
	f := newSweeperFixture(t)

	// No project registered: dispatch will fail after the claim
	f.anomalies.Anomalies["a1"] = &anomaly.Anomaly{
		ID:        "a1",
		ProjectID: "missing",
		Kind:      anomaly.KindNewEndpoint,
		Severity:  anomaly.SeverityLow,
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}

	f.sweeper.AlertSweep(context.Background())

	// Claim-before-dispatch: the anomaly stays processed even though
	// dispatch failed, so it is never re-alerted
	if !f.anomalies.Anomalies["a1"].Processed {
		t.Error("anomaly not claimed before failed dispatch")
	}
}

func TestSweeper_Start_RejectsInvalidSchedule(t *testing.T) {
	f := newSweeperFixture(t)
	f.sweeper.cfg.DetectionSchedule = "not a schedule"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.sweeper.Start(ctx); err == nil {
		t.Fatal("Start() error = nil, want invalid schedule error")
	}
}
