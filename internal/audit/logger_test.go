package audit

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRecord_WritesMaskedAuditLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))

	l.Record("auth.login", map[string]string{
		"email":      "learner@example.com",
		"result":     "error",
		"error_code": "unauthorized_device",
	})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("bad json: %v (%s)", err, buf.String())
	}
	if line["audit"] != true || line["action"] != "auth.login" {
		t.Fatalf("unexpected line %v", line)
	}
	if line["email"] != "le***@example.com" {
		t.Fatalf("email not masked: %v", line["email"])
	}
	if line["level"] != "warn" {
		t.Fatalf("errors should log at warn, got %v", line["level"])
	}
}

func TestRecord_CountsGuardOutcomes(t *testing.T) {
	l := New(zerolog.Nop())

	before := testutil.ToFloat64(guardOutcomesTotal.WithLabelValues("first_bind"))
	l.Record("device.authorize", map[string]string{"result": "allowed", "outcome": "first_bind"})
	if got := testutil.ToFloat64(guardOutcomesTotal.WithLabelValues("first_bind")); got != before+1 {
		t.Fatalf("expected counter +1, got %v -> %v", before, got)
	}

	before = testutil.ToFloat64(guardOutcomesTotal.WithLabelValues("device_change_pending"))
	l.Record("device.authorize", map[string]string{"result": "denied", "error_code": "device_change_pending"})
	if got := testutil.ToFloat64(guardOutcomesTotal.WithLabelValues("device_change_pending")); got != before+1 {
		t.Fatalf("expected denial counted")
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                "***",
		"a@b":             "***",
		"a@example.com":   "a***@example.com",
		"bob@example.com": "bo***@example.com",
		"not-an-email":    "***",
	}
	for in, want := range cases {
		if got := maskEmail(in); got != want {
			t.Fatalf("maskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
