package documents

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListDocuments(ctx context.Context, filter ListFilter) ([]Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error
	UpdateReviewState(ctx context.Context, id uuid.UUID, status Status, currentApprover *uuid.UUID) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	CreateVersion(ctx context.Context, version *DocumentVersion) error
	ListVersions(ctx context.Context, documentID uuid.UUID) ([]DocumentVersion, error)
	GetVersion(ctx context.Context, documentID uuid.UUID, versionNumber int) (*DocumentVersion, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, title, description, category, file_name, file_size,
			content_type, s3_key, s3_bucket, current_version, status,
			current_approver, uploaded_by, created_at, updated_at
		) VALUES (
			:id, :title, :description, :category, :file_name, :file_size,
			:content_type, :s3_key, :s3_bucket, :current_version, :status,
			:current_approver, :uploaded_by, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, doc)
	return err
}

func (r *postgresRepository) GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &doc, err
}

func (r *postgresRepository) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, error) {
	var docs []Document
	query := "SELECT * FROM documents WHERE 1=1"
	var args []interface{}
	argCount := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	}
	if filter.Category != nil {
		query += fmt.Sprintf(" AND category = $%d", argCount)
		args = append(args, *filter.Category)
		argCount++
	}
	if filter.UploadedBy != nil {
		query += fmt.Sprintf(" AND uploaded_by = $%d", argCount)
		args = append(args, *filter.UploadedBy)
		argCount++
	}
	query += " ORDER BY created_at DESC"

	err := r.db.SelectContext(ctx, &docs, query, args...)
	return docs, err
}

func (r *postgresRepository) UpdateDocument(ctx context.Context, doc *Document) error {
	doc.UpdatedAt = time.Now()
	query := `
		UPDATE documents SET
			title = :title,
			description = :description,
			category = :category,
			status = :status,
			current_version = :current_version,
			current_approver = :current_approver,
			updated_at = :updated_at
		WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, doc)
	return err
}

func (r *postgresRepository) UpdateReviewState(ctx context.Context, id uuid.UUID, status Status, currentApprover *uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE documents SET status = $1, current_approver = $2, updated_at = $3 WHERE id = $4",
		status, currentApprover, time.Now(), id)
	return err
}

func (r *postgresRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	return err
}

func (r *postgresRepository) CreateVersion(ctx context.Context, version *DocumentVersion) error {
	query := `
		INSERT INTO document_versions (
			id, document_id, version_number, s3_key, change_summary,
			uploaded_by, uploaded_at
		) VALUES (
			:id, :document_id, :version_number, :s3_key, :change_summary,
			:uploaded_by, :uploaded_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, version)
	return err
}

func (r *postgresRepository) ListVersions(ctx context.Context, documentID uuid.UUID) ([]DocumentVersion, error) {
	var versions []DocumentVersion
	err := r.db.SelectContext(ctx, &versions,
		"SELECT * FROM document_versions WHERE document_id = $1 ORDER BY version_number DESC", documentID)
	return versions, err
}

func (r *postgresRepository) GetVersion(ctx context.Context, documentID uuid.UUID, versionNumber int) (*DocumentVersion, error) {
	var version DocumentVersion
	err := r.db.GetContext(ctx, &version,
		"SELECT * FROM document_versions WHERE document_id = $1 AND version_number = $2",
		documentID, versionNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &version, err
}
