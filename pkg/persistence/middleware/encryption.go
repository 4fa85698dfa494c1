package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

// KeySize is the key length of AES-256.
const KeySize = 32

const envelopeField = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// ParseKey decodes a base64 encoded AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

type encryptionMiddleware struct {
	ports.RunStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals event payloads
// with AES-GCM. Stored payloads become {"__encrypted__": "<base64>"}; run
// records pass through unchanged so they stay queryable.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != KeySize {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.RunStore) ports.RunStore {
		return &encryptionMiddleware{RunStore: next, config: config}
	}
}

func (m *encryptionMiddleware) PushEvents(ctx context.Context, events []*domain.EventRecord) error {
	sealed, err := transformEvents(events, m.seal)
	if err != nil {
		return fmt.Errorf("failed to encrypt events: %w", err)
	}
	return m.RunStore.PushEvents(ctx, sealed)
}

func (m *encryptionMiddleware) GetEvents(ctx context.Context, query domain.EventQuery) ([]*domain.EventRecord, error) {
	events, err := m.RunStore.GetEvents(ctx, query)
	if err != nil {
		return nil, err
	}
	opened, err := transformEvents(events, m.open)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt events: %w", err)
	}
	return opened, nil
}

func (m *encryptionMiddleware) seal(payload json.RawMessage) (json.RawMessage, error) {
	ciphertext, err := encrypt(payload, m.config.ActiveKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{
		envelopeField: base64.StdEncoding.EncodeToString(ciphertext),
	})
}

func (m *encryptionMiddleware) open(payload json.RawMessage) (json.RawMessage, error) {
	// 1. Extract ciphertext
	var envelope map[string]string
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.New("payload is missing encrypted data envelope")
	}
	encoded, ok := envelope[envelopeField]
	if !ok {
		return nil, errors.New("payload is missing encrypted data envelope")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	// 2. Decrypt (Try Active, then Fallback)
	return decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{activeKey}, fallbackKeys...) {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
