package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/delivery"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) delivery.Repository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(ctx context.Context, o *delivery.Outcome) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_outcomes (id, anomaly_id, channel_id, channel_kind, status, error, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.AnomalyID, o.ChannelID, o.ChannelKind, o.Status, o.Error,
		o.AttemptedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.StoreUnavailable("Failed to record delivery outcome", err)
	}

	return nil
}

func (r *DeliveryRepository) ListByAnomaly(ctx context.Context, anomalyID string) ([]*delivery.Outcome, error) {
	query := `SELECT id, anomaly_id, channel_id, channel_kind, status, error, attempted_at
		FROM delivery_outcomes WHERE anomaly_id = ? ORDER BY attempted_at ASC`

	rows, err := r.db.QueryContext(ctx, query, anomalyID)
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to list delivery outcomes", err)
	}
	defer rows.Close()

	var outcomes []*delivery.Outcome
	for rows.Next() {
		var o delivery.Outcome
		var errMsg sql.NullString
		var attemptedAt string
		err := rows.Scan(&o.ID, &o.AnomalyID, &o.ChannelID, &o.ChannelKind, &o.Status, &errMsg, &attemptedAt)
		if err != nil {
			return nil, errors.StoreUnavailable("Failed to scan delivery outcome", err)
		}
		o.Error = errMsg.String
		o.AttemptedAt, _ = time.Parse(time.RFC3339Nano, attemptedAt)
		outcomes = append(outcomes, &o)
	}

	return outcomes, rows.Err()
}
