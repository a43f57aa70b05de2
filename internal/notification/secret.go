package notification

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// SecretDataKey is the notification data field holding a sealed one-time token
const SecretDataKey = "sealedSecret"

// ErrSecretUnreadable means a sealed token was tampered with, belongs to
// another notification or was sealed with a different key
var ErrSecretUnreadable = errors.New("notification secret cannot be opened")

// SecretBox seals one-time tokens (password resets, invites) carried by a
// notification. Only ciphertext bound to the notification id is stored; the
// email sender opens it while rendering.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox derives the sealing key from secret with HKDF-SHA256
func NewSecretBox(secret string) (*SecretBox, error) {
	if secret == "" {
		return nil, errors.New("notification secret box needs a key")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("nutrition-practice notification secret"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive secret key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &SecretBox{aead: aead}, nil
}

func (b *SecretBox) Seal(notificationID uuid.UUID, plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plaintext)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), notificationID[:])
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (b *SecretBox) Open(notificationID uuid.UUID, sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < b.aead.NonceSize() {
		return "", ErrSecretUnreadable
	}

	nonce, ciphertext := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, notificationID[:])
	if err != nil {
		return "", ErrSecretUnreadable
	}
	return string(plaintext), nil
}

// sealedSecret returns the sealed token stored on n, or "" when it carries none
func sealedSecret(n *domain.Notification) string {
	if len(n.Data) == 0 {
		return ""
	}
	var fields struct {
		Sealed string `json:"sealedSecret"`
	}
	if err := json.Unmarshal(n.Data, &fields); err != nil {
		return ""
	}
	return fields.Sealed
}

// RedactSecret removes the sealed token from n before it leaves the service
func RedactSecret(n *domain.Notification) {
	if sealedSecret(n) == "" {
		return
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(n.Data, &fields); err != nil {
		return
	}
	delete(fields, SecretDataKey)
	if len(fields) == 0 {
		n.Data = nil
		return
	}
	if raw, err := json.Marshal(fields); err == nil {
		n.Data = raw
	}
}
