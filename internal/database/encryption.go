package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"sendlog/internal/constants"
	"sendlog/internal/models"

	"golang.org/x/crypto/pbkdf2"
)

// The send log stores the exact plaintext of outgoing encrypted messages, so
// at-rest encryption of the payload column is available behind an env switch.
type encryptor struct {
	gcm cipher.AEAD
}

func NewEncryptor() (*encryptor, error) {
	// If encryption is disabled, return a nil encryptor
	if !isEncryptionEnabled() {
		return &encryptor{gcm: nil}, nil
	}

	key, err := deriveKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 || e.gcm == nil {
		return plaintext, nil
	}

	nonce := make([]byte, models.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, plaintext, nil)
	// Prepend nonce to ciphertext for storage
	return append(nonce, ciphertext...), nil
}

func (e *encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || e.gcm == nil {
		return ciphertext, nil
	}

	if len(ciphertext) < models.NonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, data := ciphertext[:models.NonceSize], ciphertext[models.NonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

func deriveKey() ([]byte, error) {
	secret := os.Getenv("SENDLOG_ENCRYPTION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("SENDLOG_ENCRYPTION_SECRET environment variable is required when encryption is enabled")
	}

	// Validate secret strength
	if len(secret) < 32 {
		return nil, fmt.Errorf("encryption secret must be at least 32 characters long")
	}

	salt := []byte(constants.EncryptionSalt)

	key := pbkdf2.Key([]byte(secret), salt, models.Iterations, models.KeySize, sha256.New)
	return key, nil
}

func isEncryptionEnabled() bool {
	return os.Getenv("SENDLOG_ENABLE_ENCRYPTION") == "true"
}
