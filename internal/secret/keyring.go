package secret

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

const serviceName = "gfmail"

// Store resolves account passwords. The system keyring is the primary source;
// an environment variable per account overrides it, which keeps headless and
// container deployments workable.
type Store struct {
	config keyring.Config
}

// NewStore creates a secret store backed by the system keyring
func NewStore(fileDir string) *Store {
	return &Store{
		config: keyring.Config{
			ServiceName: serviceName,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,
				keyring.SecretServiceBackend,
				keyring.WinCredBackend,
				keyring.PassBackend,
				keyring.FileBackend,
			},
			FileDir:                  fileDir,
			FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
			KeychainTrustApplication: true,
		},
	}
}

func (s *Store) open() (keyring.Keyring, error) {
	ring, err := keyring.Open(s.config)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// GetPassword returns the account's password, preferring the environment
// override when present
func (s *Store) GetPassword(ctx context.Context, account types.Account) (string, error) {
	if fromEnv, ok := os.LookupEnv(EnvVarFor(account.Address)); ok {
		return fromEnv, nil
	}

	ring, err := s.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(account.Address)
	if err != nil {
		return "", fmt.Errorf("getting credential for %q: %w", account.Address, err)
	}
	return string(item.Data), nil
}

// SetPassword stores the account's password in the keyring
func (s *Store) SetPassword(address, password string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	if err := ring.Set(keyring.Item{Key: address, Data: []byte(password)}); err != nil {
		return fmt.Errorf("setting credential for %q: %w", address, err)
	}
	return nil
}

// DeletePassword removes the account's password from the keyring
func (s *Store) DeletePassword(address string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	if err := ring.Remove(address); err != nil {
		return fmt.Errorf("deleting credential for %q: %w", address, err)
	}
	return nil
}

// EnvVarFor returns the environment variable name that overrides the stored
// password for an address, e.g. GFMAIL_PASSWORD_USER_EXAMPLE_ORG
func EnvVarFor(address string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 32
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, address)
	return "GFMAIL_PASSWORD_" + sanitized
}
