package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
)

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var payload []byte

	err := row.Scan(
		&r.ID,
		&r.Timestamp,
		&r.UserID,
		&r.UserRole,
		&r.Action,
		&r.Resource,
		&r.ResourceID,
		&payload,
		&r.IPAddress,
		&r.UserAgent,
	)
	if err != nil {
		return nil, err
	}

	r.Payload = payload
	return &r, nil
}

func (r *PgRepository) Insert(ctx context.Context, rec Record) error {
	var payload any
	if len(rec.Payload) > 0 {
		payload = []byte(rec.Payload)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_logs (id, timestamp, user_id, user_role, action, resource, resource_id, payload, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.Timestamp, rec.UserID, rec.UserRole, rec.Action, rec.Resource, rec.ResourceID, payload, rec.IPAddress, rec.UserAgent)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

func (r *PgRepository) Count(ctx context.Context, f Filter) (int, error) {
	where, args := whereClause(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return total, nil
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Record, error) {
	where, args := whereClause(f)
	args = append(args, f.Limit, f.Offset)

	query := `
		SELECT id, timestamp, user_id, user_role, action, resource, resource_id, payload, ip_address, user_agent
		FROM audit_logs` + where + fmt.Sprintf(`
		ORDER BY timestamp DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	result := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func whereClause(f Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Resource != "" {
		add("resource = $%d", f.Resource)
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.StartDate != nil {
		add("timestamp >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("timestamp <= $%d", *f.EndDate)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}
