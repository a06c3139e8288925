package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool DB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool DB) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.normalize()

	id := uuid.New()
	query := `
		INSERT INTO leads (id, name, email, phone, message, source, visitor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		req.Name,
		req.Email,
		req.Phone,
		req.Message,
		req.Source,
		req.VisitorID,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("%w: insert failed: %v", ErrStorage, err)
	}

	return &Lead{
		ID:        id.String(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
		Source:    req.Source,
		VisitorID: req.VisitorID,
		CreatedAt: createdAt,
	}, nil
}

// GetByID fetches a single lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `
		SELECT id, name, email, phone, message, source, visitor_id, created_at
		FROM leads
		WHERE id = $1
	`
	var lead Lead
	if err := scanLead(r.pool.QueryRow(ctx, query, id), &lead); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("%w: select failed: %v", ErrStorage, err)
	}
	return &lead, nil
}

// ListRecent returns the newest leads first.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, name, email, phone, message, source, visitor_id, created_at
		FROM leads
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list failed: %v", ErrStorage, err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		var lead Lead
		if err := scanLead(rows, &lead); err != nil {
			return nil, fmt.Errorf("%w: scan failed: %v", ErrStorage, err)
		}
		out = append(out, &lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list failed: %v", ErrStorage, err)
	}
	return out, nil
}

func scanLead(row pgx.Row, lead *Lead) error {
	var id uuid.UUID
	if err := row.Scan(
		&id,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Message,
		&lead.Source,
		&lead.VisitorID,
		&lead.CreatedAt,
	); err != nil {
		return err
	}
	lead.ID = id.String()
	return nil
}
