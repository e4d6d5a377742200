package booking

import (
	"context"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/audit"
	"github.com/hackgods/clinic-booking/internal/notify"
	"github.com/hackgods/clinic-booking/internal/scheduling"
)

type fixture struct {
	svc       *Service
	repo      *memRepo
	scheduler *scriptedScheduler
	sim       *scheduling.Simulator
	notifier  *recordingNotifier
	audits    *auditStore

	providerID uuid.UUID
	typeID     uuid.UUID
	patientID  uuid.UUID
}

func strPtr(s string) *string { return &s }

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	sim := scheduling.NewSimulator(scheduling.SimulatorConfig{
		UnavailableRatio: 0,
		Rand:             rand.New(rand.NewSource(1)),
	}, zerolog.Nop())

	f := &fixture{
		repo:       newMemRepo(),
		scheduler:  &scriptedScheduler{Adapter: sim},
		sim:        sim,
		notifier:   &recordingNotifier{},
		audits:     &auditStore{},
		providerID: uuid.New(),
		typeID:     uuid.New(),
		patientID:  uuid.New(),
	}

	f.repo.providers[f.providerID] = Provider{ID: f.providerID, Name: "Dr. Jane Doe", DisplayName: "Dr. Doe", AcceptsNewPatients: true}
	f.repo.types[f.typeID] = AppointmentType{ID: f.typeID, Name: "Physiotherapy", Duration: 30, IsActive: true}
	f.repo.patients[f.patientID] = Patient{
		ID:                  f.patientID,
		Name:                "Ava Test",
		Email:               strPtr("patient@example.com"),
		SMSNumber:           strPtr("+1-519-555-1234"),
		CanReceiveSMS:       true,
		NotificationChannel: ChannelEmail,
	}

	if opts.AdapterTimeout == 0 {
		opts.AdapterTimeout = time.Second
	}
	f.svc = NewService(f.repo, f.scheduler, f.notifier, audit.NewWriter(f.audits, zerolog.Nop()), zerolog.Nop(), opts)
	return f
}

func (f *fixture) input(date, clock string) CreateInput {
	return CreateInput{
		ProviderID:        f.providerID.String(),
		PatientID:         f.patientID.String(),
		AppointmentTypeID: f.typeID.String(),
		Date:              date,
		Time:              clock,
		Modality:          string(ModalityVideo),
		Reason:            strPtr("persistent knee pain"),
	}
}

func (f *fixture) setChannel(ch Channel, canSMS bool, number *string) {
	p := f.repo.patients[f.patientID]
	p.NotificationChannel = ch
	p.CanReceiveSMS = canSMS
	p.SMSNumber = number
	f.repo.patients[f.patientID] = p
}

func slotTimes(slots []scheduling.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time)
	}
	return out
}

func TestGetAvailabilityExcludesActiveBookings(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)
	approved, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "10:00"), Actor{})
	require.NoError(t, err)
	_, err = f.svc.ApproveBooking(ctx, approved.ID, Actor{UserID: "u-1", Role: "admin"})
	require.NoError(t, err)
	cancelled, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "11:00"), Actor{})
	require.NoError(t, err)
	_, err = f.svc.CancelBooking(ctx, cancelled.ID, nil, Actor{})
	require.NoError(t, err)

	slots, err := f.svc.GetAvailability(ctx, f.providerID, "2024-06-01")
	require.NoError(t, err)

	times := slotTimes(slots)
	assert.Len(t, times, 26)
	assert.NotContains(t, times, "09:00")
	assert.NotContains(t, times, "10:00")
	assert.Contains(t, times, "11:00")
	// Exact-match only: the 30 minute booking at 09:00 does not hide 09:15.
	assert.Contains(t, times, "09:15")

	other, err := f.svc.GetAvailability(ctx, f.providerID, "2024-06-02")
	require.NoError(t, err)
	assert.Len(t, other, 28)
}

func TestGetAvailabilityOverlapAware(t *testing.T) {
	f := newFixture(t, Options{OverlapAware: true})
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)

	slots, err := f.svc.GetAvailability(ctx, f.providerID, "2024-06-01")
	require.NoError(t, err)

	times := slotTimes(slots)
	assert.NotContains(t, times, "09:00")
	assert.NotContains(t, times, "09:15")
	assert.Contains(t, times, "09:30")
}

func TestFilterSlots(t *testing.T) {
	slots := []scheduling.Slot{
		{Time: "09:00", Duration: 15},
		{Time: "09:15", Duration: 15},
		{Time: "09:30", Duration: 15},
		{Time: "09:45", Duration: 15},
	}
	booked := []BookedTime{{Time: "09:10", Duration: 20}}

	assert.Equal(t, []string{"09:00", "09:15", "09:30", "09:45"}, slotTimes(filterSlots(slots, booked, false)))
	assert.Equal(t, []string{"09:30", "09:45"}, slotTimes(filterSlots(slots, booked, true)))
	assert.Empty(t, filterSlots(nil, booked, true))
}

func TestGetAvailabilityErrors(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.GetAvailability(ctx, f.providerID, "06/01/2024")
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.GetAvailability(ctx, uuid.New(), "2024-06-01")
	assert.ErrorIs(t, err, ErrProviderNotFound)

	failing := &failingAvailability{Adapter: f.scheduler}
	f.svc.scheduler = failing
	_, err = f.svc.GetAvailability(ctx, f.providerID, "2024-06-01")
	var integ *apperr.IntegrationError
	require.ErrorAs(t, err, &integ)
	assert.Equal(t, "scheduling", integ.Adapter)
}

type failingAvailability struct {
	scheduling.Adapter
}

func (failingAvailability) GetProviderAvailability(context.Context, string, string) ([]scheduling.Slot, error) {
	return nil, errBoom
}

func TestCreateBookingSyncsNotifiesAndAudits(t *testing.T) {
	f := newFixture(t, Options{})

	d, err := f.svc.CreateBooking(context.Background(), f.input("2024-06-01", "09:00"), Actor{Request: &audit.RequestInfo{IP: "10.0.0.1", UserAgent: "test"}})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, d.Status)
	assert.Equal(t, "Dr. Doe", d.Provider.DisplayName)
	assert.Equal(t, 30, d.AppointmentType.Duration)

	require.Len(t, f.scheduler.created, 1)
	assert.Equal(t, d.ID.String(), f.scheduler.created[0].BookingID)
	assert.Equal(t, 30, f.scheduler.created[0].Duration)
	assert.Empty(t, f.scheduler.created[0].Reason)

	stored := f.repo.bookings[d.ID]
	require.NotNil(t, stored.ExternalID)
	assert.Regexp(t, `^POS-\d+-[0-9a-z]+$`, *stored.ExternalID)

	require.Len(t, f.notifier.emails, 1)
	email := f.notifier.emails[0]
	assert.Equal(t, "patient@example.com", email.To)
	assert.Equal(t, notify.TemplateConfirmation, email.Template)
	assert.Equal(t, map[string]string{
		"patientName": "Ava",
		"date":        "2024-06-01",
		"time":        "09:00",
		"bookingId":   d.ID.String(),
	}, email.Data)

	entries := f.audits.byAction(audit.ActionCreateBooking)
	require.Len(t, entries, 1)
	assert.Equal(t, d.ID.String(), *entries[0].ResourceID)
	assert.Equal(t, "10.0.0.1", *entries[0].IPAddress)
	assert.Nil(t, entries[0].UserID)
	assert.Contains(t, string(entries[0].Payload), f.providerID.String())
	assert.Contains(t, string(entries[0].Payload), `"time":"09:00"`)
}

func TestCreateBookingSurvivesAdapterFailures(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"errors", func(f *fixture) {
			f.scheduler.createErr = apperr.Integration("pos", "create", errBoom)
			f.notifier.err = errBoom
		}},
		{"panic", func(f *fixture) {
			f.scheduler.panicCreate = true
			f.notifier.err = errBoom
		}},
		{"audit store down", func(f *fixture) {
			f.scheduler.createErr = errBoom
			f.audits.err = errBoom
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			tc.setup(f)

			d, err := f.svc.CreateBooking(context.Background(), f.input("2024-06-01", "09:00"), Actor{})
			require.NoError(t, err)
			assert.Equal(t, StatusPending, d.Status)
			assert.Nil(t, f.repo.bookings[d.ID].ExternalID)
		})
	}
}

func TestCreateBookingAdapterTimeout(t *testing.T) {
	f := newFixture(t, Options{AdapterTimeout: 20 * time.Millisecond})
	f.scheduler.block = true

	start := time.Now()
	d, err := f.svc.CreateBooking(context.Background(), f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, d.Status)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, f.audits.byAction(audit.ActionCreateBooking), 1)
}

func TestCreateBookingEffectsIgnoreCallerCancellation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)
	assert.True(t, f.scheduler.createCtxOK)
	assert.Len(t, f.notifier.emails, 1)
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	in := f.input("2024-06-01", "9am")
	in.Modality = "carrier-pigeon"
	_, err := f.svc.CreateBooking(ctx, in, Actor{})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	in = f.input("2024-06-01", "09:00")
	in.PatientID = uuid.NewString()
	_, err = f.svc.CreateBooking(ctx, in, Actor{})
	assert.ErrorIs(t, err, ErrPatientNotFound)

	in = f.input("2024-06-01", "09:00")
	in.AppointmentTypeID = uuid.NewString()
	_, err = f.svc.CreateBooking(ctx, in, Actor{})
	assert.ErrorIs(t, err, ErrAppointmentTypeNotFound)

	assert.Empty(t, f.repo.bookings)
	assert.Zero(t, f.notifier.calls())
	assert.Empty(t, f.audits.records)
}

func TestCreateBookingPersistenceFailurePropagates(t *testing.T) {
	f := newFixture(t, Options{})
	f.repo.insertErr = errBoom

	_, err := f.svc.CreateBooking(context.Background(), f.input("2024-06-01", "09:00"), Actor{})
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.scheduler.created)
	assert.Zero(t, f.notifier.calls())
	assert.Empty(t, f.audits.records)
}

func TestNotificationDispatchRule(t *testing.T) {
	cases := []struct {
		name                string
		channel             Channel
		canSMS              bool
		number              *string
		emails, sms, voices int
	}{
		{"email", ChannelEmail, false, nil, 1, 0, 0},
		{"sms allowed", ChannelSMS, true, strPtr("+1-519-555-1234"), 0, 1, 0},
		{"sms without consent", ChannelSMS, false, strPtr("+1-519-555-1234"), 0, 0, 0},
		{"sms without number", ChannelSMS, true, nil, 0, 0, 0},
		{"voice", ChannelVoice, false, strPtr("+1-519-555-1234"), 0, 0, 1},
		{"voice without number", ChannelVoice, true, nil, 0, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.setChannel(tc.channel, tc.canSMS, tc.number)

			d, err := f.svc.CreateBooking(context.Background(), f.input("2024-06-01", "09:00"), Actor{})
			require.NoError(t, err)
			assert.Equal(t, StatusPending, d.Status)

			assert.Len(t, f.notifier.emails, tc.emails)
			assert.Len(t, f.notifier.sms, tc.sms)
			assert.Len(t, f.notifier.voice, tc.voices)

			for _, s := range f.notifier.sms {
				assert.NotContains(t, s.Message, "knee")
				assert.Contains(t, s.Message, d.ID.String())
			}
			for _, v := range f.notifier.voice {
				assert.NotContains(t, v.Script, "knee")
			}
		})
	}
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t, Options{})
	f.setChannel(ChannelSMS, true, strPtr("+1-519-555-1234"))
	ctx := context.Background()

	d, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)
	externalID := *f.repo.bookings[d.ID].ExternalID

	reason := "feeling better"
	b, err := f.svc.CancelBooking(ctx, d.ID, &reason, Actor{UserID: "u-1", Role: "clinic_staff"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	require.NotNil(t, b.CancellationReason)
	assert.Equal(t, "feeling better", *b.CancellationReason)

	assert.Equal(t, []string{externalID}, f.scheduler.cancelled)
	require.Len(t, f.notifier.sms, 2)
	assert.Contains(t, f.notifier.sms[1].Message, "cancelled")
	assert.NotContains(t, f.notifier.sms[1].Message, "feeling better")

	entries := f.audits.byAction(audit.ActionCancelBooking)
	require.Len(t, entries, 1)
	assert.Equal(t, "u-1", *entries[0].UserID)
	assert.JSONEq(t, `{"cancellationReason":"feeling better"}`, string(entries[0].Payload))

	ext, err := f.sim.SyncAppointmentStatus(ctx, externalID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusCancelled, ext.Status)

	// Second cancel: unchanged, no sync or notify, one more audit entry.
	again, err := f.svc.CancelBooking(ctx, d.ID, strPtr("other"), Actor{})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)
	assert.Equal(t, "feeling better", *again.CancellationReason)
	assert.Len(t, f.scheduler.cancelled, 1)
	assert.Len(t, f.notifier.sms, 2)
	assert.Len(t, f.audits.byAction(audit.ActionCancelBooking), 2)
}

func TestCancelBookingLosingConcurrentCancel(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	d, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)
	notified := len(f.notifier.emails)

	// Another request cancels between the read and the guarded update.
	f.repo.beforeUpdate = func(m *memRepo, id uuid.UUID) {
		b := m.bookings[id]
		b.Status = StatusCancelled
		b.CancellationReason = strPtr("first")
		m.bookings[id] = b
	}

	b, err := f.svc.CancelBooking(ctx, d.ID, strPtr("second"), Actor{UserID: "u-2", Role: "clinic_staff"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, "first", *b.CancellationReason)

	assert.Empty(t, f.scheduler.cancelled)
	assert.Len(t, f.notifier.emails, notified)
	entries := f.audits.byAction(audit.ActionCancelBooking)
	require.Len(t, entries, 1)
	assert.Equal(t, "u-2", *entries[0].UserID)
}

func TestApproveLosingConcurrentCancelConflicts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	d, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)

	f.repo.beforeUpdate = func(m *memRepo, id uuid.UUID) {
		b := m.bookings[id]
		b.Status = StatusCancelled
		m.bookings[id] = b
	}

	_, err = f.svc.ApproveBooking(ctx, d.ID, Actor{UserID: "u-1", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestCancelBookingSurvivesAdapterFailures(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	d, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)

	f.scheduler.cancelErr = errBoom
	f.notifier.err = errBoom

	b, err := f.svc.CancelBooking(ctx, d.ID, nil, Actor{})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Len(t, f.audits.byAction(audit.ActionCancelBooking), 1)
}

func TestCancelUnknownBooking(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.CancelBooking(context.Background(), uuid.New(), nil, Actor{})

	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "booking", nf.Resource)
}

func TestCancelBookingWithoutExternalIDUsesBookingID(t *testing.T) {
	f := newFixture(t, Options{})
	f.scheduler.createErr = errBoom
	ctx := context.Background()

	d, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, d.ID, nil, Actor{})
	require.NoError(t, err)
	assert.Equal(t, []string{d.ID.String()}, f.scheduler.cancelled)
}

func TestApproveBooking(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	staff := Actor{UserID: "u-1", Role: "admin"}

	d, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)

	b, err := f.svc.ApproveBooking(ctx, d.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Len(t, f.scheduler.updated, 1)
	assert.Len(t, f.audits.byAction(audit.ActionApproveBooking), 1)

	_, err = f.svc.ApproveBooking(ctx, d.ID, staff)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.svc.CancelBooking(ctx, d.ID, nil, staff)
	require.NoError(t, err)
	_, err = f.svc.ApproveBooking(ctx, d.ID, staff)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, StatusCancelled, f.repo.bookings[d.ID].Status)
}

func TestDeclineBookingDefaultReason(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	d, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)

	b, err := f.svc.DeclineBooking(ctx, d.ID, "", Actor{UserID: "u-1", Role: "clinic_staff"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, DefaultDeclineReason, *b.CancellationReason)
}

var phiPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}|\+1-\d{3}-\d{3}-\d{4}|\b\d{4}-\d{2}-\d{2}\b`)

func TestAuditPayloadsCarryNoPHI(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	d, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)
	reason := "call me at +1-519-555-1234 or patient@example.com, born 1980-01-02"
	_, err = f.svc.CancelBooking(ctx, d.ID, &reason, Actor{})
	require.NoError(t, err)

	require.Len(t, f.audits.records, 2)
	for _, rec := range f.audits.records {
		assert.False(t, phiPattern.Match(rec.Payload), "payload leaked PHI: %s", rec.Payload)
	}
}

func TestBookCancelRebookAvailability(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	d, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)

	slots, err := f.svc.GetAvailability(ctx, f.providerID, "2024-06-01")
	require.NoError(t, err)
	assert.NotContains(t, slotTimes(slots), "09:00")

	_, err = f.svc.CancelBooking(ctx, d.ID, nil, Actor{})
	require.NoError(t, err)

	slots, err = f.svc.GetAvailability(ctx, f.providerID, "2024-06-01")
	require.NoError(t, err)
	assert.Contains(t, slotTimes(slots), "09:00")
}

func TestSyncExternalStatusAppliesExternalCancellations(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	keep, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)
	drop, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "10:00"), Actor{})
	require.NoError(t, err)

	require.NoError(t, f.sim.CancelAppointment(ctx, *f.repo.bookings[drop.ID].ExternalID))

	res, err := f.svc.SyncExternalStatus(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Checked: 2, Cancelled: 1}, res)

	assert.Equal(t, StatusPending, f.repo.bookings[keep.ID].Status)
	dropped := f.repo.bookings[drop.ID]
	assert.Equal(t, StatusCancelled, dropped.Status)
	assert.Equal(t, ExternalCancelReason, *dropped.CancellationReason)

	entries := f.audits.byAction(audit.ActionSyncBookingStatus)
	require.Len(t, entries, 1)
	assert.Equal(t, drop.ID.String(), *entries[0].ResourceID)

	res, err = f.svc.SyncExternalStatus(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Checked: 1}, res)
}

func TestReadOperations(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.input("2024-06-01", "09:00"), Actor{})
	require.NoError(t, err)

	providers, err := f.svc.ListProviders(ctx)
	require.NoError(t, err)
	assert.Len(t, providers, 1)

	_, err = f.svc.GetProvider(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProviderNotFound)

	types, err := f.svc.ListAppointmentTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 1)

	list, err := f.svc.ListBookings(ctx, Filter{Status: StatusPending, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ava Test", list[0].Patient.Name)

	rep, err := f.svc.Report(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Total)
	assert.Equal(t, 1, rep.ByStatus["pending"])
	assert.Equal(t, 1, rep.ByProvider["Dr. Doe"])
	assert.Equal(t, 1, rep.ByModality["video"])
}
