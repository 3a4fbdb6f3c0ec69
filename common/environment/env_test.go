package environment_test

import (
	"testing"
	"time"

	"github.com/dcosta/orderbot/common/environment"
)

func TestStringOr(t *testing.T) {
	t.Setenv("ORDERBOT_TEST_STR", "value")
	if got := environment.StringOr("ORDERBOT_TEST_STR", "fallback"); got != "value" {
		t.Errorf("got %q, want %q", got, "value")
	}
	if got := environment.StringOr("ORDERBOT_TEST_STR_UNSET", "fallback"); got != "fallback" {
		t.Errorf("got %q, want %q", got, "fallback")
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("ORDERBOT_TEST_REQ", "present")
	v, err := environment.RequiredString("ORDERBOT_TEST_REQ")
	if err != nil || v != "present" {
		t.Errorf("got (%q, %v)", v, err)
	}

	if _, err := environment.RequiredString("ORDERBOT_TEST_REQ_UNSET"); err == nil {
		t.Error("expected error for unset variable")
	}
}

func TestIntOr(t *testing.T) {
	t.Setenv("ORDERBOT_TEST_INT", "42")
	if got := environment.IntOr("ORDERBOT_TEST_INT", 7); got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	t.Setenv("ORDERBOT_TEST_INT_BAD", "not-a-number")
	if got := environment.IntOr("ORDERBOT_TEST_INT_BAD", 7); got != 7 {
		t.Errorf("got %d, want fallback 7", got)
	}

	if got := environment.IntOr("ORDERBOT_TEST_INT_UNSET", 7); got != 7 {
		t.Errorf("got %d, want fallback 7", got)
	}
}

func TestDurationOr(t *testing.T) {
	t.Setenv("ORDERBOT_TEST_DUR", "90s")
	if got := environment.DurationOr("ORDERBOT_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("got %v, want 90s", got)
	}

	t.Setenv("ORDERBOT_TEST_DUR_BAD", "ninety")
	if got := environment.DurationOr("ORDERBOT_TEST_DUR_BAD", time.Minute); got != time.Minute {
		t.Errorf("got %v, want fallback 1m", got)
	}
}
