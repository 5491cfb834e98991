package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sipeed/picobridge/internal/phonenumber"
)

// Kind enumerates registry failure categories (§7).
type Kind string

const (
	KindPersistence Kind = "persistence_failure"
	KindInvalid     Kind = "invalid_phone_number"
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("registry: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Store is the persistence dependency the registry needs: an
// encrypted, atomic single-blob file. internal/kv.Store satisfies it.
type Store interface {
	Save(ctx context.Context, plaintext []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// persisted is the on-disk document shape: a sorted slice, not a map,
// so re-serializing the same state always produces byte-identical
// output (easier to diff, and deterministic for tests).
type persisted struct {
	Records []TenantRecord `json:"records"`
}

// Registry is the in-memory claim table, guarded by an RWMutex the way
// the teacher's pkg/session.SessionManager guards its session map, and
// persisted through Store on every mutation.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]TenantRecord
	store   Store
	persist bool

	// sf deduplicates concurrent claim/verify calls for the same phone
	// number so two racing signal-cli deliveries can't both "win" a
	// pending claim.
	sf singleflight.Group
}

// New constructs an empty registry. Call Load to hydrate it from disk.
func New(store Store, persist bool) *Registry {
	return &Registry{
		tenants: make(map[string]TenantRecord),
		store:   store,
		persist: persist,
	}
}

// Load hydrates the registry from its encrypted blob, if persistence is
// enabled and a blob already exists. A missing blob is not an error: a
// fresh deployment starts empty.
func (r *Registry) Load(ctx context.Context) error {
	if !r.persist {
		return nil
	}
	raw, err := r.store.Load(ctx)
	if err != nil {
		return &Error{Kind: KindPersistence, Err: err}
	}
	if raw == nil {
		return nil
	}
	var doc persisted
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &Error{Kind: KindPersistence, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = make(map[string]TenantRecord, len(doc.Records))
	for _, rec := range doc.Records {
		r.tenants[rec.PhoneNumber] = rec
	}
	return nil
}

// saveLocked serializes the current table and persists it. Callers
// must not hold r.mu: it takes the read lock itself for the snapshot
// portion, and the save runs without the lock held to avoid blocking
// readers on I/O.
func (r *Registry) saveLocked(ctx context.Context) error {
	if !r.persist {
		return nil
	}
	r.mu.RLock()
	doc := persisted{Records: make([]TenantRecord, 0, len(r.tenants))}
	for _, rec := range r.tenants {
		doc.Records = append(doc.Records, rec)
	}
	r.mu.RUnlock()

	sort.Slice(doc.Records, func(i, j int) bool {
		return doc.Records[i].PhoneNumber < doc.Records[j].PhoneNumber
	})

	raw, err := json.Marshal(doc)
	if err != nil {
		return &Error{Kind: KindPersistence, Err: err}
	}
	if err := r.store.Save(ctx, raw); err != nil {
		return &Error{Kind: KindPersistence, Err: err}
	}
	return nil
}

// Lookup returns the record for a phone number, if claimed.
func (r *Registry) Lookup(phone string) (TenantRecord, bool) {
	norm := phonenumber.Normalize(phone)
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tenants[norm]
	return rec, ok
}

// Snapshot returns every record, sorted by phone number, for admin
// listing and for serialization.
func (r *Registry) Snapshot() []TenantRecord {
	r.mu.RLock()
	out := make([]TenantRecord, 0, len(r.tenants))
	for _, rec := range r.tenants {
		out = append(out, rec)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PhoneNumber < out[j].PhoneNumber })
	return out
}

// Claim registers interest in a phone number (spec §4.3). A brand-new
// number is accepted as StatusPending awaiting the challenge-response
// verify step. A Verified record is reported back as already_claimed.
// A Pending or Failed record is a re-claim attempt: if it carries an
// ownership_proof_hash, the supplied secret must match it (rejected as
// OwnershipMismatch otherwise), and a match just resets the timestamp
// and keeps the record Pending; if it carries no hash, the retry is
// allowed unconditionally and adopts the newly supplied secret, if any.
func (r *Registry) Claim(ctx context.Context, phone string, req ClaimRequest) (Decision, error) {
	norm := phonenumber.Normalize(phone)
	if !phonenumber.Valid(norm) {
		return Decision{}, &Error{Kind: KindInvalid, Err: fmt.Errorf("invalid phone number %q", phone)}
	}

	v, err, _ := r.sf.Do("claim:"+norm, func() (interface{}, error) {
		r.mu.Lock()
		existing, ok := r.tenants[norm]
		if !ok {
			rec := TenantRecord{
				PhoneNumber:          norm,
				RegisteredAt:         time.Now().UTC(),
				Status:               StatusPending,
				ModelID:              req.ModelID,
				SystemPromptOverride: req.SystemPromptOverride,
				Username:             req.Username,
				Description:          req.Description,
			}
			if req.OwnershipSecret != "" {
				rec.OwnershipProofHash = hashOwnershipSecret(req.OwnershipSecret)
			}
			r.tenants[norm] = rec
			r.mu.Unlock()

			if err := r.saveLocked(ctx); err != nil {
				return Decision{}, err
			}
			return Decision{Kind: DecisionAccepted, Record: rec}, nil
		}

		if existing.Status == StatusVerified {
			r.mu.Unlock()
			return Decision{Kind: DecisionAlreadyClaimed, Record: existing}, nil
		}

		if len(existing.OwnershipProofHash) > 0 {
			if !checkOwnership(existing, req.OwnershipSecret) {
				r.mu.Unlock()
				return Decision{Kind: DecisionOwnershipMismatch, Record: existing}, nil
			}
		} else if req.OwnershipSecret != "" {
			existing.OwnershipProofHash = hashOwnershipSecret(req.OwnershipSecret)
		}
		existing.RegisteredAt = time.Now().UTC()
		existing.Status = StatusPending
		r.tenants[norm] = existing
		r.mu.Unlock()

		if err := r.saveLocked(ctx); err != nil {
			return Decision{}, err
		}
		return Decision{Kind: DecisionAccepted, Record: existing}, nil
	})
	if err != nil {
		return Decision{}, err
	}
	return v.(Decision), nil
}

// Verify transitions a pending claim to verified once the caller has
// proven ownership of the original secret. It does not itself submit
// the verification code to the chat transport (the HTTP layer does
// that); it only gates the state transition on the ownership proof.
func (r *Registry) Verify(ctx context.Context, phone string, req VerifyRequest) (Decision, error) {
	norm := phonenumber.Normalize(phone)

	v, err, _ := r.sf.Do("verify:"+norm, func() (interface{}, error) {
		r.mu.Lock()
		rec, ok := r.tenants[norm]
		if !ok {
			r.mu.Unlock()
			return Decision{Kind: DecisionNotFound}, nil
		}
		if !checkOwnership(rec, req.OwnershipSecret) {
			r.mu.Unlock()
			return Decision{Kind: DecisionOwnershipMismatch, Record: rec}, nil
		}
		if rec.Status != StatusPending {
			r.mu.Unlock()
			return Decision{Kind: DecisionNotPending, Record: rec}, nil
		}
		rec.Status = StatusVerified
		r.tenants[norm] = rec
		r.mu.Unlock()

		if err := r.saveLocked(ctx); err != nil {
			return Decision{}, err
		}
		return Decision{Kind: DecisionAccepted, Record: rec}, nil
	})
	if err != nil {
		return Decision{}, err
	}
	return v.(Decision), nil
}

// Unregister removes a claim entirely, after checking ownership.
func (r *Registry) Unregister(ctx context.Context, phone string, req MutateRequest) (Decision, error) {
	norm := phonenumber.Normalize(phone)

	r.mu.Lock()
	rec, ok := r.tenants[norm]
	if !ok {
		r.mu.Unlock()
		return Decision{Kind: DecisionNotFound}, nil
	}
	if !checkOwnership(rec, req.OwnershipSecret) {
		r.mu.Unlock()
		return Decision{Kind: DecisionOwnershipMismatch, Record: rec}, nil
	}
	delete(r.tenants, norm)
	r.mu.Unlock()

	if err := r.saveLocked(ctx); err != nil {
		return Decision{}, err
	}
	return Decision{Kind: DecisionAccepted, Record: rec}, nil
}

// ForceUnregister removes a claim without checking ownership. Its
// callers are the debug-gated operator endpoint (spec §4.8) and the
// local admin console's "unregister" command.
func (r *Registry) ForceUnregister(ctx context.Context, phone string) (Decision, error) {
	norm := phonenumber.Normalize(phone)

	r.mu.Lock()
	rec, ok := r.tenants[norm]
	if !ok {
		r.mu.Unlock()
		return Decision{Kind: DecisionNotFound}, nil
	}
	delete(r.tenants, norm)
	r.mu.Unlock()

	if err := r.saveLocked(ctx); err != nil {
		return Decision{}, err
	}
	return Decision{Kind: DecisionAccepted, Record: rec}, nil
}

// mutate is the shared body for the username/model/system-prompt/
// description setters: check ownership, apply fn, persist.
func (r *Registry) mutate(ctx context.Context, phone, secret string, fn func(*TenantRecord)) (Decision, error) {
	norm := phonenumber.Normalize(phone)

	r.mu.Lock()
	rec, ok := r.tenants[norm]
	if !ok {
		r.mu.Unlock()
		return Decision{Kind: DecisionNotFound}, nil
	}
	if !checkOwnership(rec, secret) {
		r.mu.Unlock()
		return Decision{Kind: DecisionOwnershipMismatch, Record: rec}, nil
	}
	fn(&rec)
	r.tenants[norm] = rec
	r.mu.Unlock()

	if err := r.saveLocked(ctx); err != nil {
		return Decision{}, err
	}
	return Decision{Kind: DecisionAccepted, Record: rec}, nil
}

func (r *Registry) SetModel(ctx context.Context, phone, secret, modelID string) (Decision, error) {
	return r.mutate(ctx, phone, secret, func(rec *TenantRecord) { rec.ModelID = modelID })
}

func (r *Registry) SetSystemPrompt(ctx context.Context, phone, secret, prompt string) (Decision, error) {
	return r.mutate(ctx, phone, secret, func(rec *TenantRecord) { rec.SystemPromptOverride = prompt })
}

func (r *Registry) SetUsername(ctx context.Context, phone, secret, username string) (Decision, error) {
	return r.mutate(ctx, phone, secret, func(rec *TenantRecord) { rec.Username = username })
}

func (r *Registry) SetDescription(ctx context.Context, phone, secret, description string) (Decision, error) {
	return r.mutate(ctx, phone, secret, func(rec *TenantRecord) { rec.Description = description })
}
