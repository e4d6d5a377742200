package scheduling

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

func newFHIRTestClient(t *testing.T, h http.HandlerFunc) *FHIRClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewFHIRClient(FHIRConfig{BaseURL: srv.URL + "/fhir/", BearerToken: "tok"}, zerolog.Nop())
}

func TestFHIRGetProviderAvailability(t *testing.T) {
	client := newFHIRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fhir/Slot", r.URL.Path)
		assert.Equal(t, "Practitioner/p-1", r.URL.Query().Get("schedule.actor"))
		assert.Equal(t, []string{"ge2024-06-01T00:00:00Z", "lt2024-06-02T00:00:00Z"}, r.URL.Query()["start"])
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_, _ = io.WriteString(w, `{"resourceType":"Bundle","entry":[
			{"resource":{"resourceType":"Slot","id":"s1","status":"free","start":"2024-06-01T09:00:00Z","end":"2024-06-01T09:15:00Z"}},
			{"resource":{"resourceType":"Slot","id":"s2","status":"busy","start":"2024-06-01T09:15:00Z","end":"2024-06-01T09:45:00Z"}}
		]}`)
	})

	slots, err := client.GetProviderAvailability(context.Background(), "p-1", "2024-06-01")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, Slot{ProviderID: "p-1", Date: "2024-06-01", Time: "09:00", Duration: 15, Available: true}, slots[0])
	assert.Equal(t, Slot{ProviderID: "p-1", Date: "2024-06-01", Time: "09:15", Duration: 30, Available: false}, slots[1])
}

func TestFHIRCreateAppointment(t *testing.T) {
	client := newFHIRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/fhir/Appointment", r.URL.Path)

		var body fhirAppointment
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "proposed", body.Status)
		assert.Equal(t, "b-1", body.Identifier[0].Value)
		assert.Equal(t, "Practitioner/p-1", body.Participant[0].Actor.Reference)
		assert.Equal(t, "Patient/pt-1", body.Participant[1].Actor.Reference)
		assert.Equal(t, 30, body.MinutesDuration)
		assert.Empty(t, body.Description)

		w.Header().Set("Location", "/fhir/Appointment/ext-9/_history/1")
		w.WriteHeader(http.StatusCreated)
	})

	id, err := client.CreateAppointment(context.Background(), Appointment{
		BookingID:  "b-1",
		ProviderID: "p-1",
		PatientID:  "pt-1",
		Date:       "2024-06-01",
		Time:       "09:00",
		Duration:   30,
		Modality:   "video",
		Status:     StatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, "ext-9", id)
}

func TestFHIRCancelAppointment(t *testing.T) {
	var put fhirAppointment
	client := newFHIRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fhir/Appointment/ext-9", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"resourceType":"Appointment","id":"ext-9","status":"booked","start":"2024-06-01T09:00:00Z","participant":[]}`)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	require.NoError(t, client.CancelAppointment(context.Background(), "ext-9"))
	assert.Equal(t, "cancelled", put.Status)
}

func TestFHIRSyncAppointmentStatus(t *testing.T) {
	client := newFHIRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, bookingIdentifierSystem+"|b-1", r.URL.Query().Get("identifier"))
		_, _ = io.WriteString(w, `{"resourceType":"Bundle","entry":[{"resource":{
			"resourceType":"Appointment","id":"ext-9","status":"cancelled","start":"2024-06-01T09:00:00Z",
			"participant":[{"actor":{"reference":"Practitioner/p-1"},"status":"accepted"},{"actor":{"reference":"Patient/pt-1"},"status":"accepted"}]
		}}]}`)
	})

	appt, err := client.SyncAppointmentStatus(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "ext-9", appt.ExternalID)
	assert.Equal(t, "b-1", appt.BookingID)
	assert.Equal(t, StatusCancelled, appt.Status)
	assert.Equal(t, "p-1", appt.ProviderID)
	assert.Equal(t, "pt-1", appt.PatientID)
	assert.Equal(t, "09:00", appt.Time)
}

func TestFHIRSyncNotFound(t *testing.T) {
	client := newFHIRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"resourceType":"Bundle"}`)
	})

	_, err := client.SyncAppointmentStatus(context.Background(), "b-1")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestFHIRServerErrorIsIntegrationError(t *testing.T) {
	client := newFHIRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.GetProviderAvailability(context.Background(), "p-1", "2024-06-01")

	var integ *apperr.IntegrationError
	require.ErrorAs(t, err, &integ)
	assert.Equal(t, "fhir", integ.Adapter)

	var se *statusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}

func TestIDFromLocation(t *testing.T) {
	assert.Equal(t, "abc", idFromLocation("http://x/fhir/Appointment/abc/_history/2"))
	assert.Equal(t, "abc", idFromLocation("Appointment/abc"))
	assert.Equal(t, "", idFromLocation(""))
}
