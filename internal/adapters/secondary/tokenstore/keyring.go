package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/99designs/keyring"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// credentialKey is the keyring item holding the JSON-encoded credential.
const credentialKey = "credential"

// KeyringStore persists the credential in the OS keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

var _ ports.TokenStore = (*KeyringStore)(nil)

// OpenKeyring opens the system keyring for service. The encrypted file
// backend under fileDir is used when no native backend is available.
func OpenKeyring(service, fileDir string) (keyring.Keyring, error) {
	if fileDir == "" {
		fileDir = "~/.config/" + service + "/credentials"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// NewKeyringStore wraps an opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Load returns the stored credential, or a zero credential when none is saved.
func (s *KeyringStore) Load(_ context.Context) (domain.Credential, error) {
	item, err := s.ring.Get(credentialKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return domain.Credential{}, nil
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("getting credential: %w", err)
	}

	var cred domain.Credential
	if err := json.Unmarshal(item.Data, &cred); err != nil {
		return domain.Credential{}, fmt.Errorf("decoding credential: %w", err)
	}
	return cred, nil
}

func (s *KeyringStore) Save(ctx context.Context, cred domain.Credential) error {
	if cred.IsZero() {
		return s.Clear(ctx)
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:         credentialKey,
		Data:        data,
		Label:       "service desk credential",
		Description: "access and refresh token",
	})
	if err != nil {
		return fmt.Errorf("setting credential: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear(_ context.Context) error {
	err := s.ring.Remove(credentialKey)
	// The file backend reports a missing item as a missing file.
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}
