package worker

import (
	"strings"
	"testing"
	"time"
)

func TestHelloworldIncludesTimeToken(t *testing.T) {
	orig := Sleep
	defer func() { Sleep = orig }()
	Sleep = func(time.Duration) {}

	raw, err := Helloworld(&Context{JobID: "job-1"}, []any{float64(1)}, map[string]any{})
	if err != nil {
		t.Fatalf("Helloworld: %v", err)
	}

	var s string
	if err := unmarshalString(raw, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(s, "time_=1") {
		t.Fatalf("expected result to contain time_=1, got %q", s)
	}
	if !strings.Contains(s, "[]") || !strings.Contains(s, "{}") {
		t.Fatalf("expected empty args/kwargs rendered as [] and {}, got %q", s)
	}
}

func TestHelloworldDefaultsTimeToZero(t *testing.T) {
	orig := Sleep
	defer func() { Sleep = orig }()
	var slept time.Duration
	Sleep = func(d time.Duration) { slept = d }

	raw, err := Helloworld(&Context{JobID: "job-2"}, nil, nil)
	if err != nil {
		t.Fatalf("Helloworld: %v", err)
	}
	var s string
	if err := unmarshalString(raw, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(s, "time_=0") {
		t.Fatalf("expected time_=0 default, got %q", s)
	}
	if slept != 0 {
		t.Fatalf("expected no sleep for time_=0, got %v", slept)
	}
}

func unmarshalString(raw []byte, out *string) error {
	// Helloworld's result is a JSON-encoded string.
	trimmed := strings.Trim(string(raw), `"`)
	*out = trimmed
	return nil
}
