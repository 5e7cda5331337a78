// Package secureio wraps plan config bytes with age-based encryption for
// export/import, per the secure-export supplement in SPEC_FULL.md.
package secureio

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// Encrypt wraps plaintext (a serialized config document) as an
// ASCII-armored age payload addressed to recipient.
func Encrypt(w io.Writer, plaintext []byte, recipient age.Recipient) error {
	armorWriter := armor.NewWriter(w)
	encryptWriter, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		return fmt.Errorf("secureio: begin encryption: %w", err)
	}
	if _, err := encryptWriter.Write(plaintext); err != nil {
		return fmt.Errorf("secureio: write ciphertext: %w", err)
	}
	if err := encryptWriter.Close(); err != nil {
		return fmt.Errorf("secureio: close encryption stream: %w", err)
	}
	return armorWriter.Close()
}

// Decrypt reverses Encrypt given the matching identity.
func Decrypt(r io.Reader, identity age.Identity) ([]byte, error) {
	armorReader := armor.NewReader(r)
	decryptReader, err := age.Decrypt(armorReader, identity)
	if err != nil {
		return nil, fmt.Errorf("secureio: begin decryption: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, decryptReader); err != nil {
		return nil, fmt.Errorf("secureio: read plaintext: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateIdentity creates a fresh X25519 identity, for first-time export
// when the caller has not supplied a recipient of their own.
func GenerateIdentity() (*age.X25519Identity, error) {
	return age.GenerateX25519Identity()
}

// ParseRecipient parses a bech32 age public key (age1...).
func ParseRecipient(s string) (age.Recipient, error) {
	return age.ParseX25519Recipient(s)
}

// ParseIdentity parses a bech32 age private key (AGE-SECRET-KEY-1...).
func ParseIdentity(s string) (age.Identity, error) {
	return age.ParseX25519Identity(s)
}
