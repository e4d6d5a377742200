package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/audit"
	"github.com/hackgods/clinic-booking/internal/notify"
	"github.com/hackgods/clinic-booking/internal/scheduling"
)

type memRepo struct {
	mu        sync.Mutex
	providers map[uuid.UUID]Provider
	types     map[uuid.UUID]AppointmentType
	patients  map[uuid.UUID]Patient
	bookings  map[uuid.UUID]Booking
	insertErr error
	// beforeUpdate runs inside UpdateStatus with the lock held.
	beforeUpdate func(m *memRepo, id uuid.UUID)
}

func newMemRepo() *memRepo {
	return &memRepo{
		providers: map[uuid.UUID]Provider{},
		types:     map[uuid.UUID]AppointmentType{},
		patients:  map[uuid.UUID]Patient{},
		bookings:  map[uuid.UUID]Booking{},
	}
}

func (m *memRepo) GetProvider(_ context.Context, id uuid.UUID) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (m *memRepo) ListProviders(context.Context) ([]Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Provider, 0, len(m.providers))
	for _, p := range m.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (m *memRepo) GetAppointmentType(_ context.Context, id uuid.UUID) (*AppointmentType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.types[id]
	if !ok {
		return nil, ErrAppointmentTypeNotFound
	}
	return &t, nil
}

func (m *memRepo) ListAppointmentTypes(context.Context) ([]AppointmentType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AppointmentType, 0)
	for _, t := range m.types {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memRepo) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memRepo) CreateBooking(_ context.Context, b Booking) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	m.bookings[b.ID] = b
	return &b, nil
}

func (m *memRepo) GetBooking(_ context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *memRepo) GetBookingDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	b, err := m.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.detail(*b), nil
}

func (m *memRepo) detail(b Booking) *Detail {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, t, pt := m.providers[b.ProviderID], m.types[b.AppointmentTypeID], m.patients[b.PatientID]
	return &Detail{
		Booking:         b,
		Provider:        &ProviderSummary{ID: p.ID, DisplayName: p.DisplayName},
		AppointmentType: &AppointmentTypeSummary{ID: t.ID, Name: t.Name, Duration: t.Duration},
		Patient:         &PatientSummary{ID: pt.ID, Name: pt.Name},
	}
}

func (m *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, to Status, reason *string, from ...Status) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeUpdate != nil {
		hook := m.beforeUpdate
		m.beforeUpdate = nil
		hook(m, id)
	}
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	allowed := false
	for _, s := range from {
		if b.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	if reason != nil {
		r := *reason
		b.CancellationReason = &r
	}
	b.UpdatedAt = time.Now().UTC()
	m.bookings[id] = b
	return &b, nil
}

func (m *memRepo) SetExternalID(_ context.Context, id uuid.UUID, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	b.ExternalID = &externalID
	m.bookings[id] = b
	return nil
}

func (m *memRepo) ListActiveTimes(_ context.Context, providerID uuid.UUID, date string) ([]BookedTime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BookedTime, 0)
	for _, b := range m.bookings {
		if b.ProviderID != providerID || b.Date != date {
			continue
		}
		if b.Status != StatusPending && b.Status != StatusConfirmed {
			continue
		}
		out = append(out, BookedTime{Time: b.Time, Duration: m.types[b.AppointmentTypeID].Duration})
	}
	return out, nil
}

func (m *memRepo) ListBookings(_ context.Context, f Filter) ([]Detail, error) {
	m.mu.Lock()
	var matched []Booking
	for _, b := range m.bookings {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		matched = append(matched, b)
	}
	m.mu.Unlock()

	out := make([]Detail, 0, len(matched))
	for _, b := range matched {
		out = append(out, *m.detail(b))
	}
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memRepo) ListSyncCandidates(_ context.Context, limit int) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Booking, 0)
	for _, b := range m.bookings {
		if b.ExternalID != nil && (b.Status == StatusPending || b.Status == StatusConfirmed) {
			out = append(out, b)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) Report(_ context.Context, _, _ string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep := &Report{ByStatus: map[string]int{}, ByProvider: map[string]int{}, ByModality: map[string]int{}}
	for _, b := range m.bookings {
		rep.Total++
		rep.ByStatus[string(b.Status)]++
		rep.ByProvider[m.providers[b.ProviderID].DisplayName]++
		rep.ByModality[string(b.Modality)]++
	}
	return rep, nil
}

var _ Repository = (*memRepo)(nil)

// scriptedScheduler wraps a real adapter and lets tests inject failures.
type scriptedScheduler struct {
	scheduling.Adapter

	mu          sync.Mutex
	createErr   error
	cancelErr   error
	panicCreate bool
	block       bool
	created     []scheduling.Appointment
	cancelled   []string
	updated     []string
	createCtxOK bool
}

func (s *scriptedScheduler) CreateAppointment(ctx context.Context, appt scheduling.Appointment) (string, error) {
	s.mu.Lock()
	s.created = append(s.created, appt)
	s.createCtxOK = ctx.Err() == nil
	s.mu.Unlock()

	if s.panicCreate {
		panic("scheduler exploded")
	}
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.createErr != nil {
		return "", s.createErr
	}
	return s.Adapter.CreateAppointment(ctx, appt)
}

func (s *scriptedScheduler) CancelAppointment(ctx context.Context, externalID string) error {
	s.mu.Lock()
	s.cancelled = append(s.cancelled, externalID)
	s.mu.Unlock()
	if s.cancelErr != nil {
		return s.cancelErr
	}
	return s.Adapter.CancelAppointment(ctx, externalID)
}

func (s *scriptedScheduler) UpdateAppointment(ctx context.Context, externalID string, upd scheduling.AppointmentUpdate) error {
	s.mu.Lock()
	s.updated = append(s.updated, externalID)
	s.mu.Unlock()
	return s.Adapter.UpdateAppointment(ctx, externalID, upd)
}

type recordingNotifier struct {
	mu     sync.Mutex
	err    error
	emails []notify.Email
	sms    []notify.SMS
	voice  []notify.Voice
}

func (r *recordingNotifier) SendEmail(_ context.Context, e notify.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, e)
	return r.err
}

func (r *recordingNotifier) SendSMS(_ context.Context, s notify.SMS) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sms = append(r.sms, s)
	return r.err
}

func (r *recordingNotifier) SendVoice(_ context.Context, v notify.Voice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voice = append(r.voice, v)
	return r.err
}

func (r *recordingNotifier) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.emails) + len(r.sms) + len(r.voice)
}

// auditStore backs a real audit.Writer so payload redaction is exercised.
type auditStore struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (a *auditStore) Insert(_ context.Context, rec audit.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, rec)
	return nil
}

func (a *auditStore) Count(context.Context, audit.Filter) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records), nil
}

func (a *auditStore) List(context.Context, audit.Filter) ([]audit.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Record(nil), a.records...), nil
}

func (a *auditStore) byAction(action string) []audit.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Record
	for _, r := range a.records {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

var errBoom = errors.New("boom")
