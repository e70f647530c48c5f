package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/channel"
	"github.com/apisentinel/apisentinel/internal/domain/delivery"
	"github.com/apisentinel/apisentinel/internal/domain/event"
	"github.com/apisentinel/apisentinel/internal/domain/project"
)

// MockProjectRepository is a mock implementation of project.Repository
type MockProjectRepository struct {
	Projects    map[string]*project.Project
	CreateError error
	GetError    error
	ListError   error
}

func NewMockProjectRepository() *MockProjectRepository {
	return &MockProjectRepository{
		Projects: make(map[string]*project.Project),
	}
}

func (m *MockProjectRepository) Create(ctx context.Context, p *project.Project) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.Projects[p.ID] = p
	return nil
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id string) (*project.Project, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	p, ok := m.Projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	return p, nil
}

func (m *MockProjectRepository) GetByAPIKey(ctx context.Context, apiKey string) (*project.Project, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	for _, p := range m.Projects {
		if p.APIKey == apiKey {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project not found")
}

func (m *MockProjectRepository) List(ctx context.Context) ([]*project.Project, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	result := make([]*project.Project, 0, len(m.Projects))
	for _, p := range m.Projects {
		result = append(result, p)
	}
	return result, nil
}

func (m *MockProjectRepository) IncrementRequestCount(ctx context.Context, id string, n int64) error {
	if p, ok := m.Projects[id]; ok {
		p.RequestCount += n
	}
	return nil
}

// MockEventStore is an in-memory implementation of event.Store that
// evaluates window queries the way the SQL store does
type MockEventStore struct {
	Events      []*event.RequestEvent
	InsertError error
	QueryError  error

	// Per-query errors for exercising one failing scanner at a time
	DistinctError  error
	CountByIPError error
	StatsError     error
	CountriesError error
}

func NewMockEventStore() *MockEventStore {
	return &MockEventStore{}
}

func (m *MockEventStore) Insert(ctx context.Context, events []*event.RequestEvent) error {
	if m.InsertError != nil {
		return m.InsertError
	}
	m.Events = append(m.Events, events...)
	return nil
}

func (m *MockEventStore) Query(ctx context.Context, projectID string, window event.Window) ([]*event.RequestEvent, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	var result []*event.RequestEvent
	for _, e := range m.Events {
		if e.ProjectID == projectID && inWindow(e.CreatedAt, window) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *MockEventStore) DistinctEndpoints(ctx context.Context, projectID string, before time.Time) (map[event.Endpoint]struct{}, error) {
	if m.DistinctError != nil {
		return nil, m.DistinctError
	}
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	result := make(map[event.Endpoint]struct{})
	for _, e := range m.Events {
		if e.ProjectID == projectID && e.CreatedAt.Before(before) {
			result[event.Endpoint{Method: e.Method, Path: e.Path}] = struct{}{}
		}
	}
	return result, nil
}

func (m *MockEventStore) CountByIP(ctx context.Context, projectID string, window event.Window) (map[string]int64, error) {
	if m.CountByIPError != nil {
		return nil, m.CountByIPError
	}
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	result := make(map[string]int64)
	for _, e := range m.Events {
		if e.ProjectID == projectID && inWindow(e.CreatedAt, window) && e.ClientIP != "" {
			result[e.ClientIP]++
		}
	}
	return result, nil
}

func (m *MockEventStore) EndpointErrorStats(ctx context.Context, projectID string, window event.Window) ([]event.ErrorStats, error) {
	if m.StatsError != nil {
		return nil, m.StatsError
	}
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	stats := make(map[event.Endpoint]*event.ErrorStats)
	var order []event.Endpoint
	for _, e := range m.Events {
		if e.ProjectID != projectID || !inWindow(e.CreatedAt, window) {
			continue
		}
		ep := event.Endpoint{Method: e.Method, Path: e.Path}
		s, ok := stats[ep]
		if !ok {
			s = &event.ErrorStats{Endpoint: ep}
			stats[ep] = s
			order = append(order, ep)
		}
		s.TotalCount++
		if e.StatusCode >= 500 {
			s.ErrorCount++
		}
	}
	result := make([]event.ErrorStats, 0, len(order))
	for _, ep := range order {
		result = append(result, *stats[ep])
	}
	return result, nil
}

func (m *MockEventStore) QueryByCountries(ctx context.Context, projectID string, window event.Window, countries []string) ([]*event.RequestEvent, error) {
	if m.CountriesError != nil {
		return nil, m.CountriesError
	}
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	deny := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		deny[strings.ToUpper(c)] = struct{}{}
	}
	var result []*event.RequestEvent
	for _, e := range m.Events {
		if e.ProjectID != projectID || !inWindow(e.CreatedAt, window) {
			continue
		}
		if _, ok := deny[strings.ToUpper(e.CountryCode)]; ok {
			result = append(result, e)
		}
	}
	return result, nil
}

func inWindow(ts time.Time, w event.Window) bool {
	return !ts.Before(w.From) && ts.Before(w.To)
}

// MockAnomalyRepository is a mock implementation of anomaly.Repository
type MockAnomalyRepository struct {
	Anomalies    map[string]*anomaly.Anomaly
	NextID       int
	CreateError  error
	GetError     error
	ClaimError   error
	FlaggedError error
}

func NewMockAnomalyRepository() *MockAnomalyRepository {
	return &MockAnomalyRepository{
		Anomalies: make(map[string]*anomaly.Anomaly),
		NextID:    1,
	}
}

func (m *MockAnomalyRepository) CreateMany(ctx context.Context, anomalies []*anomaly.Anomaly) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	for _, a := range anomalies {
		if a.ID == "" {
			a.ID = "anomaly-" + strconv.Itoa(m.NextID)
			m.NextID++
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		m.Anomalies[a.ID] = a
	}
	return nil
}

func (m *MockAnomalyRepository) FlaggedEndpoints(ctx context.Context, projectID string) (map[event.Endpoint]struct{}, error) {
	if m.FlaggedError != nil {
		return nil, m.FlaggedError
	}
	flagged := make(map[event.Endpoint]struct{})
	for _, a := range m.Anomalies {
		if a.ProjectID == projectID && a.Kind == anomaly.KindNewEndpoint {
			flagged[event.Endpoint{Method: a.EndpointMethod, Path: a.EndpointPath}] = struct{}{}
		}
	}
	return flagged, nil
}

func (m *MockAnomalyRepository) GetByID(ctx context.Context, id string) (*anomaly.Anomaly, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	a, ok := m.Anomalies[id]
	if !ok {
		return nil, fmt.Errorf("anomaly not found")
	}
	return a, nil
}

func (m *MockAnomalyRepository) FindUnprocessed(ctx context.Context, since time.Time) ([]*anomaly.Anomaly, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	var result []*anomaly.Anomaly
	for _, a := range m.Anomalies {
		if !a.Processed && !a.CreatedAt.Before(since) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MockAnomalyRepository) ClaimProcessed(ctx context.Context, id string) (bool, error) {
	if m.ClaimError != nil {
		return false, m.ClaimError
	}
	a, ok := m.Anomalies[id]
	if !ok || a.Processed {
		return false, nil
	}
	a.Processed = true
	return true, nil
}

func (m *MockAnomalyRepository) Resolve(ctx context.Context, id string, resolvedAt time.Time) error {
	a, ok := m.Anomalies[id]
	if !ok {
		return fmt.Errorf("anomaly not found")
	}
	a.Resolved = true
	a.ResolvedAt = &resolvedAt
	return nil
}

func (m *MockAnomalyRepository) ListWithPagination(ctx context.Context, filter anomaly.Filter, limit, offset int) ([]*anomaly.Anomaly, int64, error) {
	var matched []*anomaly.Anomaly
	for _, a := range m.Anomalies {
		if filter.ProjectID != "" && a.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.Resolved != nil && a.Resolved != *filter.Resolved {
			continue
		}
		matched = append(matched, a)
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *MockAnomalyRepository) CountBySeverity(ctx context.Context, projectID string) (map[string]int, error) {
	result := make(map[string]int)
	for _, a := range m.Anomalies {
		if projectID == "" || a.ProjectID == projectID {
			result[a.Severity]++
		}
	}
	return result, nil
}

// MockChannelRepository is a mock implementation of channel.Repository
type MockChannelRepository struct {
	Channels    map[string]*channel.NotificationChannel
	CreateError error
	GetError    error
	ListError   error
}

func NewMockChannelRepository() *MockChannelRepository {
	return &MockChannelRepository{
		Channels: make(map[string]*channel.NotificationChannel),
	}
}

func (m *MockChannelRepository) Create(ctx context.Context, c *channel.NotificationChannel) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.Channels[c.ID] = c
	return nil
}

func (m *MockChannelRepository) GetByID(ctx context.Context, id string) (*channel.NotificationChannel, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	c, ok := m.Channels[id]
	if !ok {
		return nil, fmt.Errorf("channel not found")
	}
	return c, nil
}

func (m *MockChannelRepository) ActiveForProject(ctx context.Context, projectID string) ([]*channel.NotificationChannel, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	var result []*channel.NotificationChannel
	for _, c := range m.Channels {
		if c.ProjectID == projectID && c.Active {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockChannelRepository) ListForProject(ctx context.Context, projectID string) ([]*channel.NotificationChannel, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	var result []*channel.NotificationChannel
	for _, c := range m.Channels {
		if c.ProjectID == projectID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockChannelRepository) Update(ctx context.Context, c *channel.NotificationChannel) error {
	if _, ok := m.Channels[c.ID]; !ok {
		return fmt.Errorf("channel not found")
	}
	m.Channels[c.ID] = c
	return nil
}

func (m *MockChannelRepository) Delete(ctx context.Context, id string) error {
	delete(m.Channels, id)
	return nil
}

// MockDeliveryRepository is a mock implementation of delivery.Repository
type MockDeliveryRepository struct {
	Outcomes    []*delivery.Outcome
	CreateError error
}

func NewMockDeliveryRepository() *MockDeliveryRepository {
	return &MockDeliveryRepository{}
}

func (m *MockDeliveryRepository) Create(ctx context.Context, o *delivery.Outcome) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.Outcomes = append(m.Outcomes, o)
	return nil
}

func (m *MockDeliveryRepository) ListByAnomaly(ctx context.Context, anomalyID string) ([]*delivery.Outcome, error) {
	var result []*delivery.Outcome
	for _, o := range m.Outcomes {
		if o.AnomalyID == anomalyID {
			result = append(result, o)
		}
	}
	return result, nil
}
