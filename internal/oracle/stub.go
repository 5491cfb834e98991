package oracle

import (
	"context"
	"crypto/sha256"
)

// Stub is a deterministic non-TEE Oracle used for local development and
// tests. It reports InTEE() == false and derives keys via plain
// SHA-256("stub-derive/" + path + "/" + subject) rather than a hardware-measured derivation, so
// behavior is uniform off-TEE without special-casing the rest of the
// system (the teacher's pkg/providers.LLMProvider interface is the model
// for this kind of swappable seam).
type Stub struct {
	AppID       string
	ComposeHash string
	InstanceID  string
}

func NewStub() *Stub {
	return &Stub{
		AppID:       "stub-app",
		ComposeHash: "stub-compose-hash",
		InstanceID:  "stub-instance",
	}
}

func (s *Stub) InTEE(ctx context.Context) bool { return false }

func (s *Stub) GetAppInfo(ctx context.Context) (*AppInfo, error) {
	return &AppInfo{AppID: s.AppID, ComposeHash: s.ComposeHash, InstanceID: s.InstanceID}, nil
}

func (s *Stub) DeriveKey(ctx context.Context, path, subject string) ([]byte, error) {
	sum := sha256.Sum256([]byte("stub-derive/" + path + "/" + subject))
	// Stretch to 32 bytes (already is) — kept explicit so the invariant
	// "derived key length >= 32" is visibly satisfied, not accidental.
	out := make([]byte, 32)
	copy(out, sum[:])
	return out, nil
}

func (s *Stub) GetQuote(ctx context.Context, reportData []byte) (*Quote, error) {
	var framed [64]byte
	copy(framed[:], reportData)
	fake := sha256.Sum256(framed[:])
	return &Quote{QuoteBytes: append([]byte("stub-quote:"), fake[:]...), ReportDataEchoed: framed}, nil
}
