package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists appointment requests.
type Repository interface {
	// Create stores req. With capacity above zero it fails with
	// ErrSlotUnavailable once the slot holds capacity requests; the count
	// and the insert happen atomically.
	Create(ctx context.Context, req *AppointmentRequest, capacity int) error
	CountForSlot(ctx context.Context, startsAt time.Time) (int, error)
	ListRecent(ctx context.Context, limit int) ([]AppointmentRequest, error)
}

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores requests in the appointments table.
type PostgresRepository struct {
	pool DB
}

// NewPostgresRepository creates a repository backed by pgx pool.
func NewPostgresRepository(pool DB) *PostgresRepository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const insertAppointment = `
	INSERT INTO appointments (id, name, email, phone, services, appointment_date, time_slot, notes, source_timezone, status, starts_at, created_at)
`

func (r *PostgresRepository) Create(ctx context.Context, req *AppointmentRequest, capacity int) error {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return fmt.Errorf("booking: invalid id %q: %w", req.ID, err)
	}
	args := []any{
		id,
		req.Name,
		req.Email,
		req.Phone,
		req.Services,
		req.Date,
		req.TimeSlot,
		req.Notes,
		req.SourceTimezone,
		string(req.Status),
		req.StartsAt,
		req.CreatedAt,
	}

	if capacity <= 0 {
		query := insertAppointment + `VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		if _, err := r.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("booking: insert appointment: %w", err)
		}
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serializes writers for the same slot until commit so the count below
	// sees every earlier insert.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, req.StartsAt.Unix()); err != nil {
		return fmt.Errorf("booking: lock slot: %w", err)
	}
	query := insertAppointment + `
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		WHERE (SELECT COUNT(*) FROM appointments WHERE starts_at = $11) < $13
	`
	tag, err := tx.Exec(ctx, query, append(args, capacity)...)
	if err != nil {
		return fmt.Errorf("booking: insert appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit appointment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountForSlot(ctx context.Context, startsAt time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE starts_at = $1`, startsAt).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("booking: count slot: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]AppointmentRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, name, email, phone, services, appointment_date, time_slot, notes, source_timezone, status, starts_at, created_at
		FROM appointments
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	defer rows.Close()

	var out []AppointmentRequest
	for rows.Next() {
		var (
			req    AppointmentRequest
			id     uuid.UUID
			status string
		)
		if err := rows.Scan(&id, &req.Name, &req.Email, &req.Phone, &req.Services, &req.Date,
			&req.TimeSlot, &req.Notes, &req.SourceTimezone, &status, &req.StartsAt, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("booking: scan appointment: %w", err)
		}
		req.ID = id.String()
		req.Status = Status(status)
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	return out, nil
}

// MemoryRepository keeps requests in process.
type MemoryRepository struct {
	mu    sync.RWMutex
	items []AppointmentRequest
	Err   error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Create(ctx context.Context, req *AppointmentRequest, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if capacity > 0 && m.countLocked(req.StartsAt) >= capacity {
		return ErrSlotUnavailable
	}
	m.items = append(m.items, *req)
	return nil
}

func (m *MemoryRepository) CountForSlot(ctx context.Context, startsAt time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return m.countLocked(startsAt), nil
}

func (m *MemoryRepository) countLocked(startsAt time.Time) int {
	n := 0
	for _, it := range m.items {
		if it.StartsAt.Equal(startsAt) {
			n++
		}
	}
	return n
}

func (m *MemoryRepository) ListRecent(ctx context.Context, limit int) ([]AppointmentRequest, error) {
	m.mu.RLock()
	out := append([]AppointmentRequest(nil), m.items...)
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
