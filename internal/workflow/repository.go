package workflow

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, wf *Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workflow, error)
	GetByDocumentID(ctx context.Context, documentID uuid.UUID) (*Workflow, error)
	// Update persists stages, pointer and status with a compare-and-swap on
	// the version column; ErrVersionConflict means the caller lost a race
	// and must re-read before retrying.
	Update(ctx context.Context, wf *Workflow) error
	DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error
	ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]Workflow, error)
	CountPendingByAssignee(ctx context.Context) (map[uuid.UUID]int, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, wf *Workflow) error {
	query := `
		INSERT INTO workflows (
			id, document_id, stages, current_stage_index, overall_status,
			version, created_at, updated_at
		) VALUES (
			:id, :document_id, :stages, :current_stage_index, :overall_status,
			:version, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, wf)
	return err
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	var wf Workflow
	err := r.db.GetContext(ctx, &wf, "SELECT * FROM workflows WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &wf, err
}

func (r *postgresRepository) GetByDocumentID(ctx context.Context, documentID uuid.UUID) (*Workflow, error) {
	var wf Workflow
	err := r.db.GetContext(ctx, &wf, "SELECT * FROM workflows WHERE document_id = $1", documentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &wf, err
}

func (r *postgresRepository) Update(ctx context.Context, wf *Workflow) error {
	wf.UpdatedAt = time.Now()
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE workflows SET
			stages = :stages,
			current_stage_index = :current_stage_index,
			overall_status = :overall_status,
			version = version + 1,
			updated_at = :updated_at
		WHERE id = :id AND version = :version`, wf)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	wf.Version++
	return nil
}

func (r *postgresRepository) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE document_id = $1", documentID)
	return err
}

func (r *postgresRepository) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]Workflow, error) {
	var out []Workflow
	err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM workflows
		WHERE overall_status = $1
		  AND stages -> current_stage_index ->> 'assignee' = $2
		ORDER BY updated_at DESC`,
		StatusInProgress, userID.String())
	return out, err
}

func (r *postgresRepository) CountPendingByAssignee(ctx context.Context) (map[uuid.UUID]int, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT stages -> current_stage_index ->> 'assignee' AS assignee, COUNT(*)
		FROM workflows
		WHERE overall_status = $1
		GROUP BY 1`,
		StatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]int)
	for rows.Next() {
		var assignee string
		var count int
		if err := rows.Scan(&assignee, &count); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(assignee)
		if err != nil {
			continue
		}
		out[id] = count
	}
	return out, rows.Err()
}
