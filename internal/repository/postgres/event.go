package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/event"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) event.Store {
	return &EventStore{db: db}
}

const eventColumns = "id, project_id, method, path, status_code, latency_ms, client_ip, user_agent, country_code, created_at"

func (s *EventStore) Insert(ctx context.Context, events []*event.RequestEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreUnavailable("Failed to start transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO request_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.StoreUnavailable("Failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.ExecContext(ctx, e.ID, e.ProjectID, e.Method, e.Path, e.StatusCode,
			e.LatencyMS, e.ClientIP, e.UserAgent, e.CountryCode, e.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return errors.StoreUnavailable("Failed to insert request event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreUnavailable("Failed to commit request events", err)
	}

	return nil
}

func (s *EventStore) Query(ctx context.Context, projectID string, window event.Window) ([]*event.RequestEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM request_events
		WHERE project_id = ? AND created_at >= ? AND created_at < ? ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, projectID,
		window.From.UTC().Format(time.RFC3339Nano), window.To.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to query request events", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *EventStore) DistinctEndpoints(ctx context.Context, projectID string, before time.Time) (map[event.Endpoint]struct{}, error) {
	query := `SELECT DISTINCT method, path FROM request_events WHERE project_id = ? AND created_at < ?`

	rows, err := s.db.QueryContext(ctx, query, projectID, before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to query distinct endpoints", err)
	}
	defer rows.Close()

	endpoints := make(map[event.Endpoint]struct{})
	for rows.Next() {
		var ep event.Endpoint
		if err := rows.Scan(&ep.Method, &ep.Path); err != nil {
			return nil, errors.StoreUnavailable("Failed to scan endpoint", err)
		}
		endpoints[ep] = struct{}{}
	}

	return endpoints, rows.Err()
}

func (s *EventStore) CountByIP(ctx context.Context, projectID string, window event.Window) (map[string]int64, error) {
	query := `SELECT client_ip, COUNT(id) FROM request_events
		WHERE project_id = ? AND created_at >= ? AND created_at < ? GROUP BY client_ip`

	rows, err := s.db.QueryContext(ctx, query, projectID,
		window.From.UTC().Format(time.RFC3339Nano), window.To.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to count requests by IP", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var ip string
		var count int64
		if err := rows.Scan(&ip, &count); err != nil {
			return nil, errors.StoreUnavailable("Failed to scan IP count", err)
		}
		counts[ip] = count
	}

	return counts, rows.Err()
}

func (s *EventStore) EndpointErrorStats(ctx context.Context, projectID string, window event.Window) ([]event.ErrorStats, error) {
	query := `SELECT method, path, COUNT(id),
		SUM(CASE WHEN status_code >= 500 THEN 1 ELSE 0 END)
		FROM request_events
		WHERE project_id = ? AND created_at >= ? AND created_at < ?
		GROUP BY method, path`

	rows, err := s.db.QueryContext(ctx, query, projectID,
		window.From.UTC().Format(time.RFC3339Nano), window.To.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to query endpoint error stats", err)
	}
	defer rows.Close()

	var stats []event.ErrorStats
	for rows.Next() {
		var st event.ErrorStats
		if err := rows.Scan(&st.Endpoint.Method, &st.Endpoint.Path, &st.TotalCount, &st.ErrorCount); err != nil {
			return nil, errors.StoreUnavailable("Failed to scan endpoint stats", err)
		}
		stats = append(stats, st)
	}

	return stats, rows.Err()
}

func (s *EventStore) QueryByCountries(ctx context.Context, projectID string, window event.Window, countries []string) ([]*event.RequestEvent, error) {
	if len(countries) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?, ", len(countries)-1) + "?"
	query := fmt.Sprintf(`SELECT `+eventColumns+` FROM request_events
		WHERE project_id = ? AND created_at >= ? AND created_at < ? AND country_code IN (%s)
		ORDER BY created_at ASC`, placeholders)

	args := []interface{}{projectID,
		window.From.UTC().Format(time.RFC3339Nano), window.To.UTC().Format(time.RFC3339Nano)}
	for _, c := range countries {
		args = append(args, c)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to query events by country", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*event.RequestEvent, error) {
	var events []*event.RequestEvent
	for rows.Next() {
		var e event.RequestEvent
		var createdAt string
		err := rows.Scan(&e.ID, &e.ProjectID, &e.Method, &e.Path, &e.StatusCode,
			&e.LatencyMS, &e.ClientIP, &e.UserAgent, &e.CountryCode, &createdAt)
		if err != nil {
			return nil, errors.StoreUnavailable("Failed to scan request event", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, &e)
	}

	return events, rows.Err()
}
