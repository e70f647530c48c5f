package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/apisentinel/apisentinel/internal/config"
	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/event"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/pkg/metrics"
)

// Scanner names
const (
	ScannerNewEndpoint        = "new_endpoint"
	ScannerRateLimit          = "rate_limit"
	ScannerErrorSpike         = "error_spike"
	ScannerSuspiciousLocation = "suspicious_location"
)

// ScanResult is the outcome of one scanner invocation. A failed scanner
// carries Err and no anomalies; it never aborts the other scanners.
type ScanResult struct {
	Scanner   string
	Anomalies []*anomaly.Anomaly
	Err       error
}

// Engine scans recent request events for a project and raises anomalies
// under four independent detection strategies.
type Engine struct {
	events    event.Store
	anomalies anomaly.Repository
	cfg       config.DetectionConfig
	logger    *logger.Logger
}

// New creates a new detection engine
func New(events event.Store, anomalies anomaly.Repository, cfg config.DetectionConfig, log *logger.Logger) *Engine {
	return &Engine{
		events:    events,
		anomalies: anomalies,
		cfg:       cfg,
		logger:    log,
	}
}

type scanner struct {
	name string
	run  func(ctx context.Context, projectID string, now time.Time) ([]*anomaly.Anomaly, error)
}

// Detect runs all scanners for a project against a single shared timestamp,
// persists newly raised anomalies and returns them. Scanner failures are
// isolated: remaining scanners still run, and their failures are joined
// into the returned error alongside any anomalies found.
func (e *Engine) Detect(ctx context.Context, projectID string) ([]*anomaly.Anomaly, error) {
	start := time.Now()
	results := e.scanAll(ctx, projectID, start.UTC())

	var found []*anomaly.Anomaly
	var failures []error
	for _, res := range results {
		if res.Err != nil {
			metrics.RecordScannerFailure(res.Scanner)
			e.logger.WithFields(map[string]interface{}{
				"project_id": projectID,
				"scanner":    res.Scanner,
			}).ErrorWithErr(res.Err, "Scanner failed")
			failures = append(failures, fmt.Errorf("%s: %w", res.Scanner, res.Err))
			continue
		}
		found = append(found, res.Anomalies...)
	}

	if len(found) > 0 {
		if err := e.anomalies.CreateMany(ctx, found); err != nil {
			return nil, errors.Join(append(failures, fmt.Errorf("persist anomalies: %w", err))...)
		}
		for _, a := range found {
			metrics.RecordAnomalyDetected(a.Kind, a.Severity)
		}
	}

	metrics.RecordDetectionDuration(time.Since(start))

	e.logger.WithFields(map[string]interface{}{
		"project_id": projectID,
		"anomalies":  len(found),
		"failures":   len(failures),
	}).Info("Detection run completed")

	return found, errors.Join(failures...)
}

// scanAll invokes every scanner with the same now timestamp so the four
// windows share one consistent boundary.
func (e *Engine) scanAll(ctx context.Context, projectID string, now time.Time) []ScanResult {
	scanners := []scanner{
		{ScannerNewEndpoint, e.scanNewEndpoints},
		{ScannerRateLimit, e.scanRateLimits},
		{ScannerErrorSpike, e.scanErrorSpikes},
		{ScannerSuspiciousLocation, e.scanSuspiciousLocations},
	}

	results := make([]ScanResult, 0, len(scanners))
	for _, s := range scanners {
		anomalies, err := s.run(ctx, projectID, now)
		results = append(results, ScanResult{Scanner: s.name, Anomalies: anomalies, Err: err})
	}
	return results
}

// scanNewEndpoints raises one low-severity anomaly per (method, path) pair
// seen inside the window but never before it. Repeats within the window are
// suppressed, as are pairs a previous run already flagged, so re-running
// over an unchanged window raises nothing new.
func (e *Engine) scanNewEndpoints(ctx context.Context, projectID string, now time.Time) ([]*anomaly.Anomaly, error) {
	windowStart := now.Add(-e.cfg.NewEndpointWindow)

	known, err := e.events.DistinctEndpoints(ctx, projectID, windowStart)
	if err != nil {
		return nil, err
	}

	flagged, err := e.anomalies.FlaggedEndpoints(ctx, projectID)
	if err != nil {
		return nil, err
	}

	recent, err := e.events.Query(ctx, projectID, event.Window{From: windowStart, To: now})
	if err != nil {
		return nil, err
	}

	seen := make(map[event.Endpoint]struct{})
	var anomalies []*anomaly.Anomaly

	for _, req := range recent {
		ep := event.Endpoint{Method: req.Method, Path: req.Path}
		if _, ok := known[ep]; ok {
			continue
		}
		if _, ok := flagged[ep]; ok {
			continue
		}
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}

		anomalies = append(anomalies, &anomaly.Anomaly{
			ID:             uuid.New().String(),
			ProjectID:      projectID,
			Kind:           anomaly.KindNewEndpoint,
			EndpointMethod: req.Method,
			EndpointPath:   req.Path,
			Message:        fmt.Sprintf("New endpoint detected: %s %s", req.Method, req.Path),
			Severity:       anomaly.SeverityLow,
			CreatedAt:      now,
		})
	}

	return anomalies, nil
}

// scanRateLimits raises one anomaly per client IP whose request count in
// the window exceeds the threshold. Counts above twice the threshold
// escalate from medium to high.
func (e *Engine) scanRateLimits(ctx context.Context, projectID string, now time.Time) ([]*anomaly.Anomaly, error) {
	window := event.Window{From: now.Add(-e.cfg.RateLimitWindow), To: now}

	counts, err := e.events.CountByIP(ctx, projectID, window)
	if err != nil {
		return nil, err
	}

	var anomalies []*anomaly.Anomaly
	for ip, count := range counts {
		if count <= e.cfg.RateLimitThreshold {
			continue
		}

		severity := anomaly.SeverityMedium
		if count > e.cfg.RateLimitThreshold*2 {
			severity = anomaly.SeverityHigh
		}

		anomalies = append(anomalies, &anomaly.Anomaly{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			Kind:      anomaly.KindRateLimit,
			ClientIP:  ip,
			Message:   fmt.Sprintf("Rate limit exceeded: %d requests in %s from IP %s", count, e.cfg.RateLimitWindow, ip),
			Severity:  severity,
			CreatedAt: now,
		})
	}

	return anomalies, nil
}

// scanErrorSpikes raises one anomaly per endpoint whose 5xx rate in the
// window reaches the configured rate. Endpoints below the minimum sample
// size are skipped to avoid false positives on low-traffic endpoints.
func (e *Engine) scanErrorSpikes(ctx context.Context, projectID string, now time.Time) ([]*anomaly.Anomaly, error) {
	window := event.Window{From: now.Add(-e.cfg.ErrorSpikeWindow), To: now}

	stats, err := e.events.EndpointErrorStats(ctx, projectID, window)
	if err != nil {
		return nil, err
	}

	var anomalies []*anomaly.Anomaly
	for _, st := range stats {
		if st.TotalCount < e.cfg.ErrorSpikeMinRequests {
			continue
		}

		errorRate := float64(st.ErrorCount) / float64(st.TotalCount)
		if errorRate < e.cfg.ErrorSpikeRate {
			continue
		}

		severity := anomaly.SeverityMedium
		if errorRate >= 0.5 {
			severity = anomaly.SeverityHigh
		}

		anomalies = append(anomalies, &anomaly.Anomaly{
			ID:             uuid.New().String(),
			ProjectID:      projectID,
			Kind:           anomaly.KindErrorSpike,
			EndpointMethod: st.Endpoint.Method,
			EndpointPath:   st.Endpoint.Path,
			Message: fmt.Sprintf("Error spike detected: %d/%d requests to %s %s returned 5xx errors",
				st.ErrorCount, st.TotalCount, st.Endpoint.Method, st.Endpoint.Path),
			Severity:  severity,
			CreatedAt: now,
		})
	}

	return anomalies, nil
}

// scanSuspiciousLocations raises one high-severity anomaly per distinct
// client IP seen from a deny-listed country within the window. The dedupe
// set is scoped to this invocation, so an IP can re-trigger in a later
// window.
func (e *Engine) scanSuspiciousLocations(ctx context.Context, projectID string, now time.Time) ([]*anomaly.Anomaly, error) {
	if len(e.cfg.SuspiciousCountries) == 0 {
		return nil, nil
	}

	window := event.Window{From: now.Add(-e.cfg.SuspiciousWindow), To: now}

	suspicious, err := e.events.QueryByCountries(ctx, projectID, window, e.cfg.SuspiciousCountries)
	if err != nil {
		return nil, err
	}

	seenIPs := make(map[string]struct{})
	var anomalies []*anomaly.Anomaly

	for _, req := range suspicious {
		if _, ok := seenIPs[req.ClientIP]; ok {
			continue
		}
		seenIPs[req.ClientIP] = struct{}{}

		anomalies = append(anomalies, &anomaly.Anomaly{
			ID:             uuid.New().String(),
			ProjectID:      projectID,
			Kind:           anomaly.KindSuspiciousLocation,
			EndpointMethod: req.Method,
			EndpointPath:   req.Path,
			ClientIP:       req.ClientIP,
			Message:        fmt.Sprintf("Access from suspicious location: %s (IP: %s)", req.CountryCode, req.ClientIP),
			Severity:       anomaly.SeverityHigh,
			CreatedAt:      now,
		})
	}

	return anomalies, nil
}
