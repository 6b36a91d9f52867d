package crypto

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

const (
	prefix = "ENC[age:"
	suffix = "]"
)

// IsEncrypted reports whether value has the ENC[age:...] form.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, prefix) && strings.HasSuffix(value, suffix)
}

// Encrypt seals plaintext with a passphrase-derived age recipient.
func Encrypt(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("master key is empty")
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return "", fmt.Errorf("failed to create recipient: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("failed to start encryption: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish encryption: %w", err)
	}

	return prefix + base64.StdEncoding.EncodeToString(buf.Bytes()) + suffix, nil
}

// Decrypt opens an ENC[age:...] value. Plain values are returned unchanged.
func Decrypt(value, passphrase string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	payload := strings.TrimSuffix(strings.TrimPrefix(value, prefix), suffix)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("invalid encrypted value: %w", err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return "", fmt.Errorf("failed to create identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(out), nil
}
