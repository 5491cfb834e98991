package oracle

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestBuildReportDataShortChallenge(t *testing.T) {
	challenge := []byte("test")
	rd := BuildReportData(challenge)
	if !bytes.Equal(rd[:len(challenge)], challenge) {
		t.Fatalf("report_data does not start with challenge bytes: %x", rd)
	}
	for _, b := range rd[len(challenge):] {
		if b != 0 {
			t.Fatalf("expected zero padding after challenge, got %x", rd)
		}
	}
}

func TestBuildReportDataLongChallenge(t *testing.T) {
	challenge := bytes.Repeat([]byte("a"), 100)
	rd := BuildReportData(challenge)
	want := sha256.Sum256(challenge)
	if !bytes.Equal(rd[:32], want[:]) {
		t.Fatalf("report_data does not start with SHA-256(challenge)")
	}
	for _, b := range rd[32:] {
		if b != 0 {
			t.Fatalf("expected zero padding after digest, got %x", rd)
		}
	}
}

func TestStubDeriveKeyLength(t *testing.T) {
	s := NewStub()
	key, err := s.DeriveKey(nil, "app/registry", "")
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}
	if len(key) < 32 {
		t.Fatalf("derived key too short: %d bytes", len(key))
	}
}

func TestStubNotInTEE(t *testing.T) {
	s := NewStub()
	if s.InTEE(nil) {
		t.Fatal("stub should report not in TEE")
	}
}

var _ Oracle = (*Stub)(nil)
var _ Oracle = (*Client)(nil)
