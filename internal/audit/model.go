package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the booking and auth flows.
const (
	ActionLogin             = "login"
	ActionCreateBooking     = "create_booking"
	ActionCancelBooking     = "cancel_booking"
	ActionApproveBooking    = "approve_booking"
	ActionSyncBookingStatus = "sync_booking_status"
)

const (
	ResourceBooking = "booking"
	ResourceUser    = "user"
)

// RequestInfo is the part of the originating HTTP request kept in the log.
type RequestInfo struct {
	IP        string
	UserAgent string
}

// Entry is what callers hand to the writer. Payload is redacted before it
// is stored.
type Entry struct {
	UserID     string
	UserRole   string
	Action     string
	Resource   string
	ResourceID string
	Payload    any
	Request    *RequestInfo
}

// Record is a stored audit log row.
type Record struct {
	ID         uuid.UUID       `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	UserID     *string         `json:"userId,omitempty"`
	UserRole   *string         `json:"userRole,omitempty"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID *string         `json:"resourceId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	IPAddress  *string         `json:"ipAddress,omitempty"`
	UserAgent  *string         `json:"userAgent,omitempty"`
}

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

type Filter struct {
	UserID     string
	Resource   string
	ResourceID string
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

// Page is one newest-first slice of the log plus the total match count.
type Page struct {
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	Logs   []Record `json:"logs"`
}
