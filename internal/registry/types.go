// Package registry implements the Tenant Registry (spec §3, §4.3): the
// per-tenant claim table, its ownership-proof access control, and its
// persistence through the encrypted KV file. It generalizes the
// teacher's pkg/session.SessionManager shape (an in-memory map guarded
// by sync.RWMutex, persisted to disk on every mutation) to the
// claim/verify/unregister state machine spec.md describes.
package registry

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// TenantRecord is the persisted shape of one claimed phone number.
// JSON field names match spec §6's "Persisted state layout" table.
type TenantRecord struct {
	PhoneNumber         string     `json:"phone_number"`
	RegisteredAt        time.Time  `json:"registered_at"`
	Status              Status     `json:"status"`
	OwnershipProofHash  []byte     `json:"ownership_proof_hash,omitempty"`
	Username            string     `json:"username,omitempty"`
	ModelID             string     `json:"model,omitempty"`
	SystemPromptOverride string    `json:"system_prompt,omitempty"`
	Description         string     `json:"description,omitempty"`
	IdentityKeyFingerprint string  `json:"identity_key_fingerprint,omitempty"`
}

// ClaimRequest carries the optional fields a POST /v1/register body may set.
type ClaimRequest struct {
	OwnershipSecret     string
	ModelID             string
	SystemPromptOverride string
	Username            string
	Description         string
}

// VerifyRequest carries the optional fields a verify call may set.
type VerifyRequest struct {
	OwnershipSecret string
}

// MutateRequest carries the ownership secret for Unregister. The
// username/model/system-prompt/description setters take the secret as
// a plain argument and check ownership the same way (spec §4.3).
type MutateRequest struct {
	OwnershipSecret string
}

// DecisionKind enumerates the claim/verify/unregister outcomes.
type DecisionKind string

const (
	DecisionAccepted         DecisionKind = "accepted"
	DecisionAlreadyClaimed   DecisionKind = "already_claimed"
	DecisionOwnershipMismatch DecisionKind = "ownership_mismatch"
	DecisionNotFound         DecisionKind = "not_found"
	DecisionNotPending       DecisionKind = "not_pending"
)

type Decision struct {
	Kind   DecisionKind
	Record TenantRecord
}

func (d Decision) OK() bool { return d.Kind == DecisionAccepted }
