package secret

import (
	"errors"

	"github.com/corvid/threadview/shared/keyring"
)

// Keys for the secrets the service reads at runtime.
const (
	KeyExpoAccessToken = "expo_access_token"
	KeySMTPPassword    = "smtp_password"
	KeyAdminToken      = "admin_token"
)

// Provider defines the interface for secret storage backends.
type Provider interface {
	// Get retrieves a secret by key.
	Get(key string) (string, error)

	// Set stores a secret with the given key.
	Set(key string, value string) error

	// Delete removes a secret by key.
	Delete(key string) error
}

// NewKeyringProvider returns the OS-keychain backed provider.
func NewKeyringProvider() Provider {
	return keyring.NewKeyringProvider()
}

// Chain reads from providers in order and returns the first hit. Writes and
// deletes go to the first provider only; the rest are read-only fallbacks.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Get(key string) (string, error) {
	for _, p := range c.providers {
		value, err := p.Get(key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, &keyring.ErrSecretNotFound{}) {
			return "", err
		}
	}
	return "", &keyring.ErrSecretNotFound{Key: key, Err: errors.New("no provider holds this key")}
}

func (c *Chain) Set(key string, value string) error {
	if len(c.providers) == 0 {
		return errors.New("no secret providers configured")
	}
	return c.providers[0].Set(key, value)
}

func (c *Chain) Delete(key string) error {
	if len(c.providers) == 0 {
		return errors.New("no secret providers configured")
	}
	return c.providers[0].Delete(key)
}

var _ Provider = (*Chain)(nil)
