package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
)

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

// Helpers

const bookingColumns = `b.id, b.provider_id, b.patient_id, b.appointment_type_id, b.date::text, b.time,
		       b.modality, b.status, b.reason, b.cancellation_reason, b.external_id, b.created_at, b.updated_at`

const detailColumns = bookingColumns + `,
		       p.display_name, p.specialty, t.name, t.duration, pt.name, pt.fake_mrn`

const detailJoins = `
		FROM bookings b
		JOIN providers p ON p.id = b.provider_id
		JOIN appointment_types t ON t.id = b.appointment_type_id
		JOIN patients pt ON pt.id = b.patient_id`

func bookingDest(b *Booking) []any {
	return []any{
		&b.ID,
		&b.ProviderID,
		&b.PatientID,
		&b.AppointmentTypeID,
		&b.Date,
		&b.Time,
		&b.Modality,
		&b.Status,
		&b.Reason,
		&b.CancellationReason,
		&b.ExternalID,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	if err := row.Scan(bookingDest(&b)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	var prov ProviderSummary
	var typ AppointmentTypeSummary
	var pat PatientSummary

	dest := append(bookingDest(&d.Booking),
		&prov.DisplayName,
		&prov.Specialty,
		&typ.Name,
		&typ.Duration,
		&pat.Name,
		&pat.FakeMRN,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	prov.ID = d.ProviderID
	typ.ID = d.AppointmentTypeID
	pat.ID = d.PatientID
	d.Provider, d.AppointmentType, d.Patient = &prov, &typ, &pat
	return &d, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var hours []byte

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.DisplayName,
		&p.Specialty,
		&p.Team,
		&p.Bio,
		&hours,
		&p.AcceptsNewPatients,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.WorkingHours = hours
	return &p, nil
}

func scanAppointmentType(row pgx.Row) (*AppointmentType, error) {
	var t AppointmentType

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Duration,
		&t.Description,
		&t.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentTypeNotFound
		}
		return nil, err
	}

	return &t, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	result := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, display_name, specialty, team, bio, working_hours, accepts_new_patients
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, display_name, specialty, team, bio, working_hours, accepts_new_patients
		FROM providers
		ORDER BY display_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return collect(rows, scanProvider)
}

func (r *PgRepository) GetAppointmentType(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, duration, description, is_active
		FROM appointment_types
		WHERE id = $1
	`, id)
	return scanAppointmentType(row)
}

func (r *PgRepository) ListAppointmentTypes(ctx context.Context) ([]AppointmentType, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, duration, description, is_active
		FROM appointment_types
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list appointment types: %w", err)
	}
	return collect(rows, scanAppointmentType)
}

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient

	err := r.db.QueryRow(ctx, `
		SELECT id, name, email, sms_number, can_receive_sms, notification_channel, is_real
		FROM patients
		WHERE id = $1
	`, id).Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.SMSNumber,
		&p.CanReceiveSMS,
		&p.NotificationChannel,
		&p.IsReal,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) CreateBooking(ctx context.Context, b Booking) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO bookings AS b (id, provider_id, patient_id, appointment_type_id, date, time, modality, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, now(), now())
		RETURNING `+bookingColumns,
		b.ID, b.ProviderID, b.PatientID, b.AppointmentTypeID, b.Date, b.Time, b.Modality, b.Status, b.Reason)

	created, err := scanBooking(row)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) GetBookingDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+detailColumns+detailJoins+`
		WHERE b.id = $1
	`, id)
	return scanDetail(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, reason *string, from ...Status) (*Booking, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE bookings AS b
		SET status = $2,
		    cancellation_reason = COALESCE($3, b.cancellation_reason),
		    updated_at = now()
		WHERE b.id = $1
		  AND b.status = ANY($4)
		RETURNING `+bookingColumns,
		id, to, reason, allowed)

	return scanBooking(row)
}

func (r *PgRepository) SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET external_id = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, externalID)
	if err != nil {
		return fmt.Errorf("set external id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgRepository) ListActiveTimes(ctx context.Context, providerID uuid.UUID, date string) ([]BookedTime, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.time, t.duration
		FROM bookings b
		JOIN appointment_types t ON t.id = b.appointment_type_id
		WHERE b.provider_id = $1
		  AND b.date = $2::date
		  AND b.status IN ('pending', 'confirmed')
	`, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked times: %w", err)
	}
	defer rows.Close()

	result := make([]BookedTime, 0)
	for rows.Next() {
		var bt BookedTime
		if err := rows.Scan(&bt.Time, &bt.Duration); err != nil {
			return nil, err
		}
		result = append(result, bt)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListBookings(ctx context.Context, f Filter) ([]Detail, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("b.status = $%d", f.Status)
	}
	if f.ProviderID != nil {
		add("b.provider_id = $%d", *f.ProviderID)
	}
	if f.PatientID != nil {
		add("b.patient_id = $%d", *f.PatientID)
	}
	where := dateRange(f.StartDate, f.EndDate, &conds, add)

	limit := f.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	args = append(args, limit)

	rows, err := r.db.Query(ctx, `
		SELECT `+detailColumns+detailJoins+where+fmt.Sprintf(`
		ORDER BY b.date DESC, b.time DESC
		LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return collect(rows, scanDetail)
}

func (r *PgRepository) ListSyncCandidates(ctx context.Context, limit int) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.status IN ('pending', 'confirmed')
		  AND b.external_id IS NOT NULL
		ORDER BY b.updated_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync candidates: %w", err)
	}
	return collect(rows, scanBooking)
}

func (r *PgRepository) Report(ctx context.Context, startDate, endDate string) (*Report, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	where := dateRange(startDate, endDate, &conds, add)

	rep := &Report{}
	var err error

	if rep.ByStatus, err = r.countBy(ctx, `
		SELECT b.status, COUNT(*)
		FROM bookings b`+where+`
		GROUP BY b.status`, args); err != nil {
		return nil, fmt.Errorf("report by status: %w", err)
	}
	if rep.ByProvider, err = r.countBy(ctx, `
		SELECT p.display_name, COUNT(*)
		FROM bookings b
		JOIN providers p ON p.id = b.provider_id`+where+`
		GROUP BY p.display_name`, args); err != nil {
		return nil, fmt.Errorf("report by provider: %w", err)
	}
	if rep.ByModality, err = r.countBy(ctx, `
		SELECT b.modality, COUNT(*)
		FROM bookings b`+where+`
		GROUP BY b.modality`, args); err != nil {
		return nil, fmt.Errorf("report by modality: %w", err)
	}

	for _, n := range rep.ByStatus {
		rep.Total += n
	}
	return rep, nil
}

func (r *PgRepository) countBy(ctx context.Context, query string, args []any) (map[string]int, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func dateRange(start, end string, conds *[]string, add func(string, any)) string {
	if start != "" {
		add("b.date >= $%d::date", start)
	}
	if end != "" {
		add("b.date <= $%d::date", end)
	}
	if len(*conds) == 0 {
		return ""
	}
	return "\n\t\tWHERE " + strings.Join(*conds, " AND ")
}
