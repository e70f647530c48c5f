package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/event"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
)

type AnomalyRepository struct {
	db *sql.DB
}

func NewAnomalyRepository(db *sql.DB) anomaly.Repository {
	return &AnomalyRepository{db: db}
}

const anomalyColumns = "id, project_id, kind, endpoint_method, endpoint_path, client_ip, message, severity, created_at, resolved, resolved_at, processed"

func (r *AnomalyRepository) CreateMany(ctx context.Context, anomalies []*anomaly.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreUnavailable("Failed to start transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO anomalies (`+anomalyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.StoreUnavailable("Failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, a := range anomalies {
		_, err := stmt.ExecContext(ctx, a.ID, a.ProjectID, a.Kind, a.EndpointMethod, a.EndpointPath,
			a.ClientIP, a.Message, a.Severity, a.CreatedAt.UTC().Format(time.RFC3339Nano),
			a.Resolved, formatNullableTime(a.ResolvedAt), a.Processed)
		if err != nil {
			return errors.StoreUnavailable("Failed to insert anomaly", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreUnavailable("Failed to commit anomalies", err)
	}

	return nil
}

func (r *AnomalyRepository) FlaggedEndpoints(ctx context.Context, projectID string) (map[event.Endpoint]struct{}, error) {
	query := `SELECT DISTINCT endpoint_method, endpoint_path FROM anomalies
		WHERE project_id = ? AND kind = ?`

	rows, err := r.db.QueryContext(ctx, query, projectID, anomaly.KindNewEndpoint)
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to query flagged endpoints", err)
	}
	defer rows.Close()

	flagged := make(map[event.Endpoint]struct{})
	for rows.Next() {
		var ep event.Endpoint
		if err := rows.Scan(&ep.Method, &ep.Path); err != nil {
			return nil, errors.StoreUnavailable("Failed to scan flagged endpoint", err)
		}
		flagged[ep] = struct{}{}
	}

	return flagged, rows.Err()
}

func (r *AnomalyRepository) GetByID(ctx context.Context, id string) (*anomaly.Anomaly, error) {
	query := `SELECT ` + anomalyColumns + ` FROM anomalies WHERE id = ?`

	a, err := scanAnomaly(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Anomaly")
	}
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to get anomaly", err)
	}

	return a, nil
}

func (r *AnomalyRepository) FindUnprocessed(ctx context.Context, since time.Time) ([]*anomaly.Anomaly, error) {
	query := `SELECT ` + anomalyColumns + ` FROM anomalies
		WHERE processed = ? AND created_at >= ? ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, false, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to find unprocessed anomalies", err)
	}
	defer rows.Close()

	var anomalies []*anomaly.Anomaly
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, errors.StoreUnavailable("Failed to scan anomaly", err)
		}
		anomalies = append(anomalies, a)
	}

	return anomalies, rows.Err()
}

// ClaimProcessed is the single coordination point between sweeper
// instances: the conditional update lets exactly one caller win.
func (r *AnomalyRepository) ClaimProcessed(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE anomalies SET processed = ? WHERE id = ? AND processed = ?", true, id, false)
	if err != nil {
		return false, errors.StoreUnavailable("Failed to claim anomaly", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.StoreUnavailable("Failed to read claim result", err)
	}

	return rows == 1, nil
}

func (r *AnomalyRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE anomalies SET resolved = ?, resolved_at = ? WHERE id = ?",
		true, at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return errors.StoreUnavailable("Failed to resolve anomaly", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Anomaly")
	}

	return nil
}

func (r *AnomalyRepository) ListWithPagination(ctx context.Context, filter anomaly.Filter, limit, offset int) ([]*anomaly.Anomaly, int64, error) {
	where := []string{"1 = 1"}
	args := []interface{}{}

	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Resolved != nil {
		where = append(where, "resolved = ?")
		args = append(args, *filter.Resolved)
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM anomalies WHERE %s", whereClause), args...).Scan(&total)
	if err != nil {
		return nil, 0, errors.StoreUnavailable("Failed to count anomalies", err)
	}

	query := fmt.Sprintf(`SELECT `+anomalyColumns+` FROM anomalies
		WHERE %s ORDER BY created_at DESC LIMIT ? OFFSET ?`, whereClause)

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.StoreUnavailable("Failed to list anomalies", err)
	}
	defer rows.Close()

	anomalies := make([]*anomaly.Anomaly, 0, limit)
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, 0, errors.StoreUnavailable("Failed to scan anomaly", err)
		}
		anomalies = append(anomalies, a)
	}

	return anomalies, total, rows.Err()
}

func (r *AnomalyRepository) CountBySeverity(ctx context.Context, projectID string) (map[string]int, error) {
	query := `SELECT severity, COUNT(*) FROM anomalies WHERE project_id = ? GROUP BY severity`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to count anomalies by severity", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, errors.StoreUnavailable("Failed to scan count", err)
		}
		counts[severity] = count
	}

	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnomaly(row rowScanner) (*anomaly.Anomaly, error) {
	var a anomaly.Anomaly
	var createdAt string
	var resolvedAt sql.NullString

	err := row.Scan(&a.ID, &a.ProjectID, &a.Kind, &a.EndpointMethod, &a.EndpointPath,
		&a.ClientIP, &a.Message, &a.Severity, &createdAt, &a.Resolved, &resolvedAt, &a.Processed)
	if err != nil {
		return nil, err
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if resolvedAt.Valid && resolvedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, resolvedAt.String)
		if err == nil {
			a.ResolvedAt = &t
		}
	}

	return &a, nil
}

func formatNullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
