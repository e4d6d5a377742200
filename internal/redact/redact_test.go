package redact

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		missing string
	}{
		{"ssn", "SSN: 123-45-6789", "SSN: [REDACTED_SSN]", "123-45-6789"},
		{"mrn", "chart TEST-1234 opened", "chart [REDACTED_MRN] opened", "TEST-1234"},
		{"phone", "Call me at +1-519-555-1234", "Call me at [REDACTED_PHONE]", "555-1234"},
		{"email", "Email: patient@example.com", "Email: [REDACTED_EMAIL]", "patient@example.com"},
		{"dob", "born 1985-03-14", "born [REDACTED_DOB]", "1985-03-14"},
		{"clean", "nothing to see", "nothing to see", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := String(tt.in, Defaults())
			assert.Equal(t, tt.want, got)
			if tt.missing != "" {
				assert.NotContains(t, got, tt.missing)
			}
		})
	}
}

func TestStringDisabled(t *testing.T) {
	in := "SSN: 123-45-6789"
	assert.Equal(t, in, String(in, Options{Enabled: false}))
}

func TestValueSensitiveFields(t *testing.T) {
	in := map[string]any{
		"name":  "John Doe",
		"email": "john@example.com",
		"phone": "+1-519-555-0001",
		"ssn":   "123-45-6789",
	}

	out := Map(in, Defaults())

	assert.Equal(t, "John Doe", out["name"])
	assert.Equal(t, "[REDACTED]", out["email"])
	assert.Equal(t, "[REDACTED]", out["phone"])
	assert.Equal(t, "[REDACTED]", out["ssn"])
	assert.Equal(t, "john@example.com", in["email"], "input must not be mutated")
}

func TestValuePreserveStructure(t *testing.T) {
	out := Map(map[string]any{
		"email":   "a@b.com",
		"fakeMrn": "TEST-1234",
	}, Options{Enabled: true, PreserveStructure: true})

	assert.Equal(t, map[string]any{
		"email":   "[REDACTED_EMAIL]",
		"fakeMrn": "[REDACTED_FAKEMRN]",
	}, out)
}

func TestValueNestedAndSlices(t *testing.T) {
	in := map[string]any{
		"patient": map[string]any{
			"name":  "John Doe",
			"email": "john@example.com",
		},
		"patients": []any{
			map[string]any{"name": "John", "email": "john@example.com"},
			map[string]any{"name": "Jane", "email": "jane@example.com"},
		},
		"note":  "reach me at jane@example.com",
		"count": 3,
		"ok":    true,
		"gone":  nil,
	}

	out := Map(in, Defaults())

	patient := out["patient"].(map[string]any)
	assert.Equal(t, "John Doe", patient["name"])
	assert.Equal(t, "[REDACTED]", patient["email"])

	patients := out["patients"].([]any)
	require.Len(t, patients, 2)
	assert.Equal(t, "[REDACTED]", patients[0].(map[string]any)["email"])
	assert.Equal(t, "[REDACTED]", patients[1].(map[string]any)["email"])

	assert.Equal(t, "reach me at [REDACTED_EMAIL]", out["note"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, true, out["ok"])
	assert.Nil(t, out["gone"])
}

func TestValueCustomFields(t *testing.T) {
	out := Map(map[string]any{"insuranceId": "X-99", "plan": "basic"},
		Options{Enabled: true, PreserveStructure: true, CustomFields: []string{"insuranceId"}})

	assert.Equal(t, "[REDACTED_INSURANCEID]", out["insuranceId"])
	assert.Equal(t, "basic", out["plan"])
}

func TestValueDisabledIsIdentity(t *testing.T) {
	in := map[string]any{
		"email": "a@b.com",
		"list":  []any{"123-45-6789"},
	}
	assert.Equal(t, in, Value(in, Options{Enabled: false}))
}

func TestValueNil(t *testing.T) {
	assert.Nil(t, Value(nil, Defaults()))
	assert.Nil(t, Map(nil, Defaults()))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "pa***@example.com", MaskEmail("patient@example.com"))
	assert.Equal(t, "***@example.com", MaskEmail("a@example.com"))
	assert.Equal(t, "***@example.com", MaskEmail("ab@example.com"))
	assert.Equal(t, "[INVALID_EMAIL]", MaskEmail("invalid-email"))
	assert.Equal(t, "[INVALID_EMAIL]", MaskEmail("a@b@c"))

	masked := MaskEmail("日本語@example.com")
	assert.Equal(t, "日本***@example.com", masked)
	assert.True(t, utf8.ValidString(masked))
	assert.Equal(t, "***@example.com", MaskEmail("éa@example.com"), "two runes are fully masked")
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "***-***-1234", MaskPhone("+1-519-555-1234"))
	assert.Equal(t, "***-***-1234", MaskPhone("5195551234"))
	assert.Equal(t, "[REDACTED_PHONE]", MaskPhone("12"))
}
