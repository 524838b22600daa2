package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	ListForDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Insert(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, user_name, action, action_type, document_id,
			document_title, details, ip_address, created_at
		) VALUES (
			:id, :user_id, :user_name, :action, :action_type, :document_id,
			:document_title, :details, :ip_address, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, entry)
	return err
}

func (r *postgresRepository) ListForDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]Entry, error) {
	var out []Entry
	err := r.db.SelectContext(ctx, &out,
		"SELECT * FROM audit_logs WHERE document_id = $1 ORDER BY created_at DESC LIMIT $2",
		documentID, limit)
	return out, err
}

func (r *postgresRepository) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := r.db.SelectContext(ctx, &out,
		"SELECT * FROM audit_logs ORDER BY created_at DESC LIMIT $1", limit)
	return out, err
}
