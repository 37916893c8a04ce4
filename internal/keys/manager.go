package keys

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keymint/keymint-server/internal/logger"
	"github.com/keymint/keymint-server/internal/model"
)

// SigningKey is a parsed key ready for issuance.
type SigningKey struct {
	Kid        string
	PrivateKey *ecdsa.PrivateKey
}

// Manager owns the signing key lifecycle: generation, lazy bootstrap,
// rotation, retirement and public key export. It keeps an explicit cache of
// the current signing key and parsed verification keys; the cache is
// invalidated, never mutated in place, on rotation or retirement. Stale
// readers during a rotation window are acceptable since the old key remains
// valid for verification until retired.
type Manager struct {
	store  model.KeyStore
	logger *logger.Logger

	mu          sync.RWMutex
	current     *SigningKey
	verifyCache map[string]*ecdsa.PublicKey
}

// NewManager creates a key manager backed by the given store.
func NewManager(store model.KeyStore, logger *logger.Logger) *Manager {
	return &Manager{
		store:       store,
		logger:      logger,
		verifyCache: make(map[string]*ecdsa.PublicKey),
	}
}

// GenerateKeyPair produces a fresh ECDSA P-256 key pair with a new kid. It
// does not persist the key.
func (m *Manager) GenerateKeyPair() (model.SigningKey, error) {
	privatePEM, publicPEM, err := generateECDSAKeyPair()
	if err != nil {
		return model.SigningKey{}, fmt.Errorf("%w: %w", model.ErrKeyGeneration, err)
	}

	return model.SigningKey{
		Kid:           uuid.NewString(),
		Algorithm:     model.AlgorithmES256,
		PublicKeyPEM:  publicPEM,
		PrivateKeyPEM: privatePEM,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}, nil
}

// ActivateAndPersist stores the key marked active.
func (m *Manager) ActivateAndPersist(ctx context.Context, key model.SigningKey) error {
	key.IsActive = true
	if err := m.store.Create(ctx, key); err != nil {
		return fmt.Errorf("failed to persist signing key: %w", err)
	}
	m.invalidate()
	return nil
}

// GetSigningKey returns the key used for new signatures. On an empty store
// it bootstraps one; the mutex serializes concurrent cold-start callers in
// this process, and the store's conditional insert backs it up across
// processes via ErrKeyExists retry.
func (m *Manager) GetSigningKey(ctx context.Context) (*SigningKey, error) {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()
	if current != nil {
		return current, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have finished the bootstrap while we waited.
	if m.current != nil {
		return m.current, nil
	}

	key, err := m.loadOrBootstrapLocked(ctx)
	if err != nil {
		return nil, err
	}

	m.current = key
	return key, nil
}

func (m *Manager) loadOrBootstrapLocked(ctx context.Context) (*SigningKey, error) {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active keys: %w", err)
	}
	if len(active) > 0 {
		return parseSigningKey(newestKey(active))
	}

	generated, err := m.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	err = m.store.CreateIfNoneActive(ctx, generated)
	if errors.Is(err, model.ErrKeyExists) {
		// Lost the cold-start race to another process; its key is
		// authoritative.
		active, err := m.store.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to reload active keys: %w", err)
		}
		if len(active) == 0 {
			return nil, model.ErrNoActiveKey
		}
		return parseSigningKey(newestKey(active))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist bootstrap key: %w", err)
	}

	m.logger.Info("Key manager: bootstrapped signing key", "kid", generated.Kid)
	return parseSigningKey(generated)
}

// ListActivePublicKeys returns all active keys for JWKS export. Multiple
// keys may be active during a graceful rotation window.
func (m *Manager) ListActivePublicKeys(ctx context.Context) ([]model.SigningKey, error) {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active keys: %w", err)
	}
	keys := make([]model.SigningKey, 0, len(active))
	for _, k := range active {
		k.PrivateKeyPEM = nil
		keys = append(keys, k)
	}
	return keys, nil
}

// VerificationKey resolves a kid to its public key. Retired keys still
// resolve: tokens signed before a rotation verify until their own expiry.
func (m *Manager) VerificationKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	m.mu.RLock()
	cached, ok := m.verifyCache[kid]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	key, err := m.store.GetByKid(ctx, kid)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key by kid: %w", err)
	}

	pub, err := parseECDSAPublicKey(key.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key %s: %w", kid, err)
	}

	m.mu.Lock()
	m.verifyCache[kid] = pub
	m.mu.Unlock()
	return pub, nil
}

// Retire deactivates a key. It is idempotent for known kids and refuses to
// retire the last active key since issuance would become impossible.
func (m *Manager) Retire(ctx context.Context, kid string) error {
	key, err := m.store.GetByKid(ctx, kid)
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get key by kid: %w", err)
	}

	// Retiring a key twice is a no-op: the caller's intent already holds.
	if !key.IsActive {
		return nil
	}

	activeCount, err := m.store.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to count active keys: %w", err)
	}
	if activeCount <= 1 {
		return model.ErrLastActiveKey
	}

	if err := m.store.Retire(ctx, kid); err != nil {
		// Zero rows here means another caller retired it first.
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to retire key: %w", err)
	}

	m.invalidate()
	m.logger.Info("Key manager: retired signing key", "kid", kid)
	return nil
}

// Rotate generates and activates a new key. With gracefulKeepOld the
// previous keys stay active for a verification grace window; otherwise they
// are retired as part of the same logical operation and exactly one key
// remains active.
func (m *Manager) Rotate(ctx context.Context, gracefulKeepOld bool) (model.SigningKey, error) {
	previous, err := m.store.ListActive(ctx)
	if err != nil {
		return model.SigningKey{}, fmt.Errorf("failed to list active keys: %w", err)
	}

	generated, err := m.GenerateKeyPair()
	if err != nil {
		return model.SigningKey{}, err
	}

	if err := m.store.Create(ctx, generated); err != nil {
		return model.SigningKey{}, fmt.Errorf("failed to persist rotated key: %w", err)
	}

	if !gracefulKeepOld {
		for _, old := range previous {
			if err := m.store.Retire(ctx, old.Kid); err != nil {
				return model.SigningKey{}, fmt.Errorf("failed to retire key %s during rotation: %w", old.Kid, err)
			}
		}
	}

	m.invalidate()
	m.logger.Info("Key manager: rotated signing key",
		"kid", generated.Kid,
		"graceful", gracefulKeepOld,
		"retired", len(previous))

	generated.PrivateKeyPEM = nil
	return generated, nil
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	m.current = nil
	m.verifyCache = make(map[string]*ecdsa.PublicKey)
	m.mu.Unlock()
}

func parseSigningKey(key model.SigningKey) (*SigningKey, error) {
	if key.Algorithm != model.AlgorithmES256 {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedKeyAlg, key.Algorithm)
	}
	private, err := parseECDSAPrivateKey(key.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", key.Kid, err)
	}
	return &SigningKey{Kid: key.Kid, PrivateKey: private}, nil
}

func newestKey(keys []model.SigningKey) model.SigningKey {
	newest := keys[0]
	for _, k := range keys[1:] {
		if k.CreatedAt.After(newest.CreatedAt) {
			newest = k
		}
	}
	return newest
}
