package registry

import (
	"context"
	"testing"

	"github.com/sipeed/picobridge/internal/kv"
	"github.com/sipeed/picobridge/internal/oracle"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	store := kv.New(dir+"/registry.enc", oracle.NewStub(), "app/registry")
	return New(store, true)
}

func TestClaimThenAlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	d, err := r.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "s3cret"})
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if !d.OK() {
		t.Fatalf("expected accepted, got %v", d.Kind)
	}
	if _, err := r.Verify(ctx, "+14155550100", VerifyRequest{OwnershipSecret: "s3cret"}); err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	// Once verified, any re-claim of the same number is already_claimed
	// regardless of the secret supplied (spec §4.3).
	d2, err := r.Claim(ctx, "+1 (415) 555-0100", ClaimRequest{OwnershipSecret: "other"})
	if err != nil {
		t.Fatalf("second Claim error: %v", err)
	}
	if d2.Kind != DecisionAlreadyClaimed {
		t.Fatalf("expected already_claimed for a verified number, got %v", d2.Kind)
	}
}

func TestClaimPendingHijackRejected(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if _, err := r.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "s3cret"}); err != nil {
		t.Fatalf("Claim error: %v", err)
	}

	// A still-Pending record with an ownership hash rejects a re-claim
	// bearing a different secret (spec §8 E2E scenario 2, "hijack rejected").
	d, err := r.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "other"})
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if d.Kind != DecisionOwnershipMismatch {
		t.Fatalf("expected ownership_mismatch, got %v", d.Kind)
	}
}

func TestClaimPendingRetrySameSecretStaysPending(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if _, err := r.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "s3cret"}); err != nil {
		t.Fatalf("Claim error: %v", err)
	}

	d, err := r.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "s3cret"})
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if !d.OK() || d.Record.Status != StatusPending {
		t.Fatalf("expected accepted+pending on matching re-claim, got %v status=%v", d.Kind, d.Record.Status)
	}
}

func TestClaimPendingNoHashAllowsRetryAndAdoptsSecret(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if _, err := r.Claim(ctx, "+14155550100", ClaimRequest{}); err != nil {
		t.Fatalf("Claim error: %v", err)
	}

	// No ownership secret was supplied on the first claim, so the record
	// carries no hash and a retry is allowed unconditionally, adopting
	// whatever secret this retry supplies.
	d, err := r.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "newsecret"})
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if !d.OK() || d.Record.Status != StatusPending {
		t.Fatalf("expected accepted+pending on hash-less retry, got %v status=%v", d.Kind, d.Record.Status)
	}

	// The adopted secret is now enforced.
	mismatch, err := r.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "wrong"})
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if mismatch.Kind != DecisionOwnershipMismatch {
		t.Fatalf("expected ownership_mismatch after secret adoption, got %v", mismatch.Kind)
	}
}

func TestClaimInvalidNumber(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	_, err := r.Claim(ctx, "123", ClaimRequest{OwnershipSecret: "x"})
	if err == nil {
		t.Fatal("expected error for invalid phone number")
	}
}

func TestVerifyWrongSecretThenRightSecret(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if _, err := r.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "s3cret"}); err != nil {
		t.Fatalf("Claim error: %v", err)
	}

	d, err := r.Verify(ctx, "+14155550100", VerifyRequest{OwnershipSecret: "wrong"})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if d.Kind != DecisionOwnershipMismatch {
		t.Fatalf("expected ownership_mismatch, got %v", d.Kind)
	}

	d2, err := r.Verify(ctx, "+14155550100", VerifyRequest{OwnershipSecret: "s3cret"})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !d2.OK() || d2.Record.Status != StatusVerified {
		t.Fatalf("expected accepted+verified, got %v status=%v", d2.Kind, d2.Record.Status)
	}

	d3, err := r.Verify(ctx, "+14155550100", VerifyRequest{OwnershipSecret: "s3cret"})
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if d3.Kind != DecisionNotPending {
		t.Fatalf("expected not_pending on re-verify, got %v", d3.Kind)
	}
}

func TestUnregisterRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	if _, err := r.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "s3cret"}); err != nil {
		t.Fatalf("Claim error: %v", err)
	}

	if d, err := r.Unregister(ctx, "+14155550100", MutateRequest{OwnershipSecret: "wrong"}); err != nil || d.Kind != DecisionOwnershipMismatch {
		t.Fatalf("expected ownership_mismatch, got %v err=%v", d.Kind, err)
	}

	d, err := r.Unregister(ctx, "+14155550100", MutateRequest{OwnershipSecret: "s3cret"})
	if err != nil {
		t.Fatalf("Unregister error: %v", err)
	}
	if !d.OK() {
		t.Fatalf("expected accepted, got %v", d.Kind)
	}
	if _, ok := r.Lookup("+14155550100"); ok {
		t.Fatal("expected number to be gone after unregister")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := kv.New(dir+"/registry.enc", oracle.NewStub(), "app/registry")

	r1 := New(store, true)
	if _, err := r1.Claim(ctx, "+14155550100", ClaimRequest{OwnershipSecret: "s3cret", ModelID: "gpt-test"}); err != nil {
		t.Fatalf("Claim error: %v", err)
	}

	r2 := New(store, true)
	if err := r2.Load(ctx); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	rec, ok := r2.Lookup("+14155550100")
	if !ok {
		t.Fatal("expected record to survive reload")
	}
	if rec.ModelID != "gpt-test" || rec.Status != StatusPending {
		t.Fatalf("unexpected record after reload: %+v", rec)
	}
}

func TestSnapshotSortedByPhoneNumber(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	for _, n := range []string{"+19995550101", "+11115550102", "+15555550103"} {
		if _, err := r.Claim(ctx, n, ClaimRequest{OwnershipSecret: "x"}); err != nil {
			t.Fatalf("Claim(%s) error: %v", n, err)
		}
	}
	snap := r.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i-1].PhoneNumber > snap[i].PhoneNumber {
			t.Fatalf("snapshot not sorted: %+v", snap)
		}
	}
}
