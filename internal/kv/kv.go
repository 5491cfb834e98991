// Package kv implements the single encrypted blob file the Tenant
// Registry persists through (spec §4.2). It follows the teacher's
// pkg/secrets/secrets.go shape — a small struct wrapping an AEAD key,
// Encrypt/Decrypt methods — but the on-disk format is spec-mandated
// binary AES-256-GCM (nonce‖ciphertext‖tag), not the teacher's
// hex-with-prefix ChaCha20-Poly1305 envelope, and writes are truly
// atomic (temp file + rename) rather than a direct os.WriteFile.
package kv

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
)

// Kind enumerates kv failure categories (§7).
type Kind string

const (
	KindStorageUnavailable Kind = "storage_unavailable"
	KindCrypto             Kind = "crypto_failure"
	KindTampered           Kind = "tampered"
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kv: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("kv: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

const nonceSize = 12

// KeyDeriver is the subset of oracle.Oracle the store needs: a deterministic
// 32+-byte derivation bound to the enclave measurement.
type KeyDeriver interface {
	DeriveKey(ctx context.Context, path, subject string) ([]byte, error)
}

// Store manages one logical encrypted blob on disk.
type Store struct {
	path    string
	derive  KeyDeriver
	keyPath string
	subject string
}

// New creates a Store for the blob at path, deriving its AES-256 key from
// the oracle at the fixed path "<app-scope>/registry" (spec §3's AEAD
// blob description).
func New(path string, derive KeyDeriver, keyPath string) *Store {
	return &Store{path: path, derive: derive, keyPath: keyPath}
}

func (s *Store) deriveAESKey(ctx context.Context) ([]byte, error) {
	raw, err := s.derive.DeriveKey(ctx, s.keyPath, s.subject)
	if err != nil {
		return nil, &Error{Kind: KindCrypto, Err: err}
	}
	if len(raw) < 32 {
		return nil, &Error{Kind: KindCrypto, Err: fmt.Errorf("oracle returned short key material: %d bytes", len(raw))}
	}

	// HKDF-expand the oracle's raw material into an independent,
	// domain-separated AES-256 key rather than using it directly, so a
	// future second use of the same derive_key path (e.g. a different
	// blob) cannot collide with this one.
	h := hkdf.New(sha256New, raw, nil, []byte("picobridge/kv/aes-256-gcm/v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, &Error{Kind: KindCrypto, Err: err}
	}
	return key, nil
}

// Save derives the key, encrypts plaintext with AES-256-GCM under a fresh
// random nonce, and atomically replaces the target file with
// [nonce‖ciphertext‖tag].
func (s *Store) Save(ctx context.Context, plaintext []byte) error {
	key, err := s.deriveAESKey(ctx)
	if err != nil {
		return err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return &Error{Kind: KindCrypto, Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return &Error{Kind: KindCrypto, Err: err}
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return &Error{Kind: KindCrypto, Err: err}
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &Error{Kind: KindStorageUnavailable, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &Error{Kind: KindStorageUnavailable, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &Error{Kind: KindStorageUnavailable, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &Error{Kind: KindStorageUnavailable, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &Error{Kind: KindStorageUnavailable, Err: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &Error{Kind: KindStorageUnavailable, Err: err}
	}
	return nil
}

// Load returns (nil, nil) if the file does not exist. Decryption failure
// is reported as KindTampered; the file is left untouched for operator
// inspection (spec §4.2).
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &Error{Kind: KindStorageUnavailable, Err: err}
	}

	key, err := s.deriveAESKey(ctx)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &Error{Kind: KindCrypto, Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &Error{Kind: KindCrypto, Err: err}
	}

	if len(raw) < nonceSize {
		return nil, &Error{Kind: KindTampered, Err: fmt.Errorf("file too short: %d bytes", len(raw))}
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &Error{Kind: KindTampered, Err: err}
	}
	return plaintext, nil
}
