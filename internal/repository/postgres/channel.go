package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/channel"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
)

type ChannelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) channel.Repository {
	return &ChannelRepository{db: db}
}

const channelColumns = "id, project_id, kind, config, active, created_at"

func (r *ChannelRepository) Create(ctx context.Context, c *channel.NotificationChannel) error {
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_channels (`+channelColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Kind, string(c.Config), c.Active, c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return errors.StoreUnavailable("Failed to create channel", err)
	}

	return nil
}

func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*channel.NotificationChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM notification_channels WHERE id = ?`

	c, err := scanChannel(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Channel")
	}
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to get channel", err)
	}

	return c, nil
}

func (r *ChannelRepository) ActiveForProject(ctx context.Context, projectID string) ([]*channel.NotificationChannel, error) {
	return r.listForProject(ctx, projectID, true)
}

func (r *ChannelRepository) ListForProject(ctx context.Context, projectID string) ([]*channel.NotificationChannel, error) {
	return r.listForProject(ctx, projectID, false)
}

func (r *ChannelRepository) listForProject(ctx context.Context, projectID string, activeOnly bool) ([]*channel.NotificationChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM notification_channels WHERE project_id = ?`
	args := []interface{}{projectID}

	if activeOnly {
		query += " AND active = ?"
		args = append(args, true)
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to list channels", err)
	}
	defer rows.Close()

	var channels []*channel.NotificationChannel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, errors.StoreUnavailable("Failed to scan channel", err)
		}
		channels = append(channels, c)
	}

	return channels, rows.Err()
}

func (r *ChannelRepository) Update(ctx context.Context, c *channel.NotificationChannel) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE notification_channels SET kind = ?, config = ?, active = ? WHERE id = ?",
		c.Kind, string(c.Config), c.Active, c.ID)
	if err != nil {
		return errors.StoreUnavailable("Failed to update channel", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Channel")
	}

	return nil
}

func (r *ChannelRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM notification_channels WHERE id = ?", id)
	if err != nil {
		return errors.StoreUnavailable("Failed to delete channel", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Channel")
	}

	return nil
}

func scanChannel(row rowScanner) (*channel.NotificationChannel, error) {
	var c channel.NotificationChannel
	var config string
	var createdAt string

	err := row.Scan(&c.ID, &c.ProjectID, &c.Kind, &config, &c.Active, &createdAt)
	if err != nil {
		return nil, err
	}

	c.Config = []byte(config)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &c, nil
}
