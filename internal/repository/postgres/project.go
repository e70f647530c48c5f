package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/project"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
)

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) project.Repository {
	return &ProjectRepository{db: db}
}

const projectColumns = "id, name, description, api_key, request_count, created_at"

func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.APIKey, p.RequestCount, p.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return errors.StoreUnavailable("Failed to create project", err)
	}

	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*project.Project, error) {
	return r.getBy(ctx, "id", id)
}

func (r *ProjectRepository) GetByAPIKey(ctx context.Context, apiKey string) (*project.Project, error) {
	return r.getBy(ctx, "api_key", apiKey)
}

func (r *ProjectRepository) getBy(ctx context.Context, column, value string) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE ` + column + ` = ?`

	var p project.Project
	var createdAt string
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&p.ID, &p.Name, &p.Description, &p.APIKey, &p.RequestCount, &createdAt)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Project")
	}
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to get project", err)
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &p, nil
}

func (r *ProjectRepository) List(ctx context.Context) ([]*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to list projects", err)
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		var p project.Project
		var createdAt string
		err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.APIKey, &p.RequestCount, &createdAt)
		if err != nil {
			return nil, errors.StoreUnavailable("Failed to scan project", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		projects = append(projects, &p)
	}

	return projects, rows.Err()
}

func (r *ProjectRepository) IncrementRequestCount(ctx context.Context, id string, n int64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE projects SET request_count = request_count + ? WHERE id = ?", n, id)
	if err != nil {
		return errors.StoreUnavailable("Failed to increment request count", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Project")
	}

	return nil
}
