package ratelimit

import (
	"testing"
	"time"
)

func TestCheckAllowsBurstThenLimits(t *testing.T) {
	l := New(2, time.Minute)
	if err := l.Check("k"); err != nil {
		t.Fatalf("expected first call to pass, got %v", err)
	}
	if err := l.Check("k"); err != nil {
		t.Fatalf("expected second call within burst to pass, got %v", err)
	}
	err := l.Check("k")
	if err == nil {
		t.Fatal("expected third call to be rate-limited")
	}
	var rlErr *Error
	if e, ok := err.(*Error); ok {
		rlErr = e
	} else {
		t.Fatalf("expected *Error, got %T", err)
	}
	if rlErr.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", rlErr.RetryAfter)
	}
}

func TestCheckKeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	if err := l.Check("a"); err != nil {
		t.Fatalf("expected key a to pass, got %v", err)
	}
	if err := l.Check("b"); err != nil {
		t.Fatalf("expected independent key b to pass, got %v", err)
	}
}
