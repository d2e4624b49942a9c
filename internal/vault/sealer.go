package vault

import (
	"context"
)

// TransitSealer encrypts short text fields with a single transit key
type TransitSealer struct {
	client  *Client
	keyName string
}

// NewTransitSealer creates the key if needed and returns a sealer bound to it
func NewTransitSealer(ctx context.Context, client *Client, keyName string) (*TransitSealer, error) {
	if err := client.EnsureKey(ctx, keyName); err != nil {
		return nil, err
	}
	return &TransitSealer{client: client, keyName: keyName}, nil
}

// Seal returns transit ciphertext for plaintext
func (s *TransitSealer) Seal(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return s.client.Encrypt(ctx, s.keyName, []byte(plaintext))
}

// Open decrypts ciphertext. Values that were stored before encryption was
// enabled are returned unchanged.
func (s *TransitSealer) Open(ctx context.Context, ciphertext string) (string, error) {
	if !IsCiphertext(ciphertext) {
		return ciphertext, nil
	}
	plaintext, err := s.client.Decrypt(ctx, s.keyName, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// PlaintextSealer stores text as-is. Used when Vault is disabled.
type PlaintextSealer struct{}

func (PlaintextSealer) Seal(_ context.Context, plaintext string) (string, error) {
	return plaintext, nil
}

func (PlaintextSealer) Open(_ context.Context, ciphertext string) (string, error) {
	return ciphertext, nil
}
